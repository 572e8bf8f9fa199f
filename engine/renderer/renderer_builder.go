package renderer

import (
	"github.com/Carmen-Shannon/oxy-sphere/engine/compute"
	"go.uber.org/zap"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithMSAA sets the multisample anti-aliasing sample count for the renderer.
// When not specified, the default is MSAA4x. Use MSAAOff to disable MSAA entirely.
// Higher values (MSAA8x, MSAA16x) are adapter-dependent and may not be supported
// by all hardware.
//
// Parameters:
//   - count: the MSAASampleCount to use (MSAAOff, MSAA4x, MSAA8x, or MSAA16x)
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option to a renderer
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingMSAA = &count
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithClearColor sets the color frames are cleared to.
//
// Parameters:
//   - color: RGBA in [0, 1]
//
// Returns:
//   - RendererBuilderOption: a function that applies the clear color to a renderer
func WithClearColor(color [4]float64) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingClearColor = &color
	}
}

// WithLogger sets the logger used by the renderer and its backend.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - RendererBuilderOption: a function that sets the logger
func WithLogger(logger *zap.Logger) RendererBuilderOption {
	return func(r *renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithHeadlessSize sets the surface size of a headless renderer. A zero size leaves the
// graphics context not current.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - RendererBuilderOption: a function that sets the size
func WithHeadlessSize(width, height int) RendererBuilderOption {
	return func(r *renderer) {
		r.headlessWidth = width
		r.headlessHeight = height
	}
}

// WithDrawHook sets the function a headless renderer calls for every draw.
//
// Parameters:
//   - hook: the hook
//
// Returns:
//   - RendererBuilderOption: a function that sets the hook
func WithDrawHook(hook DrawHook) RendererBuilderOption {
	return func(r *renderer) {
		r.drawHook = hook
	}
}

// WithSoftwareCompute sets the options of the software compute backend a headless renderer hands out.
//
// Parameters:
//   - options: software backend options
//
// Returns:
//   - RendererBuilderOption: a function that sets the compute options
func WithSoftwareCompute(options ...compute.SoftwareBackendOption) RendererBuilderOption {
	return func(r *renderer) {
		r.softwareCompute = append(r.softwareCompute, options...)
	}
}
