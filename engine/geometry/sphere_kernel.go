package geometry

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-sphere/engine/compute"
	"github.com/Carmen-Shannon/oxy-sphere/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sphere/engine/renderer/shader"
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// KernelName is the compute entry point that tesselates the sphere.
	KernelName = "tesselate_sphere"

	// PointsPipelineKey is the default render pipeline key mappers draw points with.
	PointsPipelineKey = "points"
)

//go:embed assets/tesselate_sphere.wgsl
var tesselateSphereSource string

//go:embed assets/points.wgsl
var pointsSource string

func init() {
	compute.RegisterHostKernel(KernelName, tesselateSphere)
}

// tesselateSphere is the host form of the tesselate_sphere kernel.
func tesselateSphere(id compute.WorkItem, args compute.HostArgs) {
	radius := args.Float32(0)
	phiSlices := args.Uint32(1)
	thetaSlices := args.Uint32(2)

	phi := float32(id.X) * 2 * math32.Pi / float32(phiSlices)
	theta := float32(id.Y) * 2 * math32.Pi / float32(thetaSlices)

	// the row stride is phiSlices for both indices; out of range stores are dropped
	index := int(id.X*phiSlices + id.Y)
	args.Buffer(0).Store(index, [4]float32{
		radius * math32.Cos(theta) * math32.Cos(phi),
		radius * math32.Cos(theta) * math32.Sin(phi),
		radius * math32.Sin(theta),
		1,
	})
}

// TesselateSphereSource returns the WGSL source of the tesselation kernel.
func TesselateSphereSource() string {
	return tesselateSphereSource
}

// NewPointsPipeline builds the render pipeline mappers draw their vertex buffers with: a point
// list of vec4<f32> positions transformed by the frame uniform and shaded in one flat color.
//
// Parameters:
//   - key: the pipeline key to register under
//
// Returns:
//   - pipeline.Pipeline: the pipeline description
//   - error: an error if the shaders fail to compile
func NewPointsPipeline(key string) (pipeline.Pipeline, error) {
	vs, err := shader.NewShader(key, shader.ShaderTypeVertex, pointsSource)
	if err != nil {
		return nil, err
	}
	fs, err := shader.NewShader(key, shader.ShaderTypeFragment, pointsSource)
	if err != nil {
		return nil, err
	}
	return pipeline.NewPipeline(key, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithTopology(wgpu.PrimitiveTopologyPointList),
	), nil
}
