package shader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// ErrNoEntryPoint is returned when a module has no entry point for the requested stage or name.
var ErrNoEntryPoint = errors.New("no matching entry point")

// CompileError carries the WGSL front-end diagnostics for a shader that failed to parse,
// lower or validate. Log holds the diagnostics joined one per line.
type CompileError struct {
	Key string
	Log string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shader %s: compilation failed:\n%s", e.Key, e.Log)
}

// compileModule runs the WGSL front-end and returns the validated module.
//
// Parameters:
//   - key: the shader key used in diagnostics
//   - source: the WGSL source
//
// Returns:
//   - *ir.Module: the validated module
//   - error: a *CompileError carrying the diagnostics on failure
func compileModule(key, source string) (*ir.Module, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, &CompileError{Key: key, Log: err.Error()}
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, &CompileError{Key: key, Log: err.Error()}
	}

	diagnostics, err := naga.Validate(module)
	if err != nil {
		return nil, &CompileError{Key: key, Log: err.Error()}
	}
	if len(diagnostics) > 0 {
		lines := make([]string, 0, len(diagnostics))
		for _, d := range diagnostics {
			lines = append(lines, d.Error())
		}
		return nil, &CompileError{Key: key, Log: strings.Join(lines, "\n")}
	}
	return module, nil
}

// selectEntryPoint returns the entry point named name, or the first entry point of the stage when name is empty.
func selectEntryPoint(module *ir.Module, stage ShaderType, name string) (ir.EntryPoint, error) {
	want := irStage(stage)
	for _, ep := range module.EntryPoints {
		if ep.Stage != want {
			continue
		}
		if name == "" || ep.Name == name {
			return ep, nil
		}
	}
	if name != "" {
		return ir.EntryPoint{}, fmt.Errorf("%w: @%s fn %s", ErrNoEntryPoint, stage, name)
	}
	return ir.EntryPoint{}, fmt.Errorf("%w: no @%s entry point", ErrNoEntryPoint, stage)
}

func irStage(t ShaderType) ir.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return ir.StageVertex
	case ShaderTypeFragment:
		return ir.StageFragment
	default:
		return ir.StageCompute
	}
}
