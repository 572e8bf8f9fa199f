// Package config loads the demo configuration from TOML or YAML and watches it for changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-sphere/engine/geometry"
	"github.com/Carmen-Shannon/oxy-sphere/engine/logger"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for a config file whose extension is not .toml, .yaml or .yml.
var ErrUnknownFormat = errors.New("unknown config format")

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full demo configuration.
type Config struct {
	Window   Window              `toml:"window" yaml:"window"`
	Renderer Renderer            `toml:"renderer" yaml:"renderer"`
	Sphere   geometry.Parameters `toml:"sphere" yaml:"sphere"`
	Camera   Camera              `toml:"camera" yaml:"camera"`
	Compute  Compute             `toml:"compute" yaml:"compute"`
	Log      logger.Config       `toml:"log" yaml:"log"`
	Metrics  Metrics             `toml:"metrics" yaml:"metrics"`
}

// Window configures the demo window.
type Window struct {
	Title  string `toml:"title" yaml:"title"`
	Width  int    `toml:"width" yaml:"width"`
	Height int    `toml:"height" yaml:"height"`

	Resizable bool `toml:"resizable" yaml:"resizable"`
}

// Renderer configures the renderer.
type Renderer struct {
	// Backend is "wgpu" or "headless".
	Backend string `toml:"backend" yaml:"backend"`
	// PresentMode is "vsync" or "uncapped".
	PresentMode string `toml:"present_mode" yaml:"present_mode"`
	// MSAA is the sample count: 1, 4, 8 or 16.
	MSAA uint32 `toml:"msaa" yaml:"msaa"`
	// Background is the RGB clear color in [0, 1].
	Background [3]float64 `toml:"background" yaml:"background"`
	// ForceFallbackAdapter requests a software wgpu adapter.
	ForceFallbackAdapter bool `toml:"force_fallback_adapter" yaml:"force_fallback_adapter"`
	// PointColor is the RGBA color points are drawn in.
	PointColor [4]float32 `toml:"point_color" yaml:"point_color"`
}

// Camera configures the initial camera placement around the sphere.
type Camera struct {
	// Elevation rotates the camera about the focal point's horizontal axis, in degrees.
	Elevation float32 `toml:"elevation" yaml:"elevation"`
	// Azimuth rotates the camera about the view up axis, in degrees.
	Azimuth float32 `toml:"azimuth" yaml:"azimuth"`
	// FOV is the vertical field of view in degrees.
	FOV float32 `toml:"fov" yaml:"fov"`
}

// Compute configures the software compute backend used by the headless renderer.
type Compute struct {
	// Workers is the worker count; 0 uses one per CPU.
	Workers int `toml:"workers" yaml:"workers"`
}

// Metrics configures the prometheus endpoint.
type Metrics struct {
	// Addr is the listen address of /metrics; empty disables the endpoint.
	Addr string `toml:"addr" yaml:"addr"`
}

// Default returns an 800x600 window showing a radius 5 sphere of 100x100 slices on a dark blue
// background, viewed from elevation -90.
func Default() Config {
	return Config{
		Window: Window{
			Title:  "oxy-sphere",
			Width:  800,
			Height: 600,

			Resizable: true,
		},
		Renderer: Renderer{
			Backend:     "wgpu",
			PresentMode: "vsync",
			MSAA:        4,
			Background:  [3]float64{0.1, 0.2, 0.31},
			PointColor:  [4]float32{1, 1, 1, 1},
		},
		Sphere: geometry.DefaultParameters(),
		Camera: Camera{
			Elevation: -90,
			FOV:       30,
		},
		Log: logger.Config{
			Environment: "development",
			Level:       "info",
		},
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	switch c.Renderer.Backend {
	case "wgpu", "headless":
	default:
		errs = append(errs, fmt.Errorf("renderer backend %q must be wgpu or headless", c.Renderer.Backend))
	}
	switch c.Renderer.PresentMode {
	case "vsync", "uncapped":
	default:
		errs = append(errs, fmt.Errorf("present mode %q must be vsync or uncapped", c.Renderer.PresentMode))
	}
	switch c.Renderer.MSAA {
	case 1, 4, 8, 16:
	default:
		errs = append(errs, fmt.Errorf("msaa %d must be 1, 4, 8 or 16", c.Renderer.MSAA))
	}
	for i, v := range c.Renderer.Background {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("background component %d = %v is outside [0, 1]", i, v))
		}
	}
	if err := c.Sphere.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !(c.Camera.FOV > 0 && c.Camera.FOV < 180) {
		errs = append(errs, fmt.Errorf("camera fov %v must be in (0, 180)", c.Camera.FOV))
	}
	if c.Compute.Workers < 0 {
		errs = append(errs, fmt.Errorf("compute workers %d must not be negative", c.Compute.Workers))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Load reads the file at path over Default and validates the result. The format follows the
// extension: .toml, .yaml or .yml.
//
// Parameters:
//   - path: the config file
//
// Returns:
//   - Config: the loaded config
//   - error: an error if the file cannot be read, decoded or validated
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Decode(filepath.Ext(path), data)
}

// Decode decodes data in the format named by ext over Default and validates the result.
//
// Parameters:
//   - ext: the file extension, with or without the leading dot
//   - data: the encoded config
//
// Returns:
//   - Config: the decoded config
//   - error: ErrUnknownFormat, a decode error, or a validation error wrapping ErrInvalid
func Decode(ext string, data []byte) (Config, error) {
	cfg := Default()

	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("failed to decode toml config: %w", err)
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// an empty document leaves the defaults in place
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("failed to decode yaml config: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
