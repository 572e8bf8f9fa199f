package geometry

import (
	"github.com/Carmen-Shannon/oxy-sphere/engine/metrics"
	"go.uber.org/zap"
)

// SphereBuilderOption is a functional option used to configure a Sphere during construction.
type SphereBuilderOption func(*sphere)

// WithParameters sets the initial tesselation parameters. Invalid parameters are ignored.
//
// Parameters:
//   - p: the parameters
//
// Returns:
//   - SphereBuilderOption: a function that sets the parameters
func WithParameters(p Parameters) SphereBuilderOption {
	return func(s *sphere) {
		if p.Validate() == nil {
			s.params = p
		}
	}
}

// WithName sets the mapper name used in logs and metric labels.
//
// Parameters:
//   - name: the mapper name
//
// Returns:
//   - SphereBuilderOption: a function that sets the name
func WithName(name string) SphereBuilderOption {
	return func(s *sphere) {
		s.name = name
	}
}

// WithLogger sets the logger.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - SphereBuilderOption: a function that sets the logger
func WithLogger(logger *zap.Logger) SphereBuilderOption {
	return func(s *sphere) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the instruments dispatches and state changes are recorded on.
//
// Parameters:
//   - m: the metrics
//
// Returns:
//   - SphereBuilderOption: a function that sets the metrics
func WithMetrics(m *metrics.Metrics) SphereBuilderOption {
	return func(s *sphere) {
		s.metrics = m
	}
}

// WithPipelineKey sets the render pipeline the sphere draws with.
//
// Parameters:
//   - key: the pipeline key
//
// Returns:
//   - SphereBuilderOption: a function that sets the pipeline key
func WithPipelineKey(key string) SphereBuilderOption {
	return func(s *sphere) {
		s.pipelineKey = key
	}
}

// WithKernelSource replaces the WGSL source of the tesselation kernel. The source must define
// a tesselate_sphere entry point with the same bindings.
//
// Parameters:
//   - source: the WGSL source
//
// Returns:
//   - SphereBuilderOption: a function that sets the kernel source
func WithKernelSource(source string) SphereBuilderOption {
	return func(s *sphere) {
		s.source = source
	}
}
