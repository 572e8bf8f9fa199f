package compute

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sphere/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuBackend struct {
	adapter *wgpu.Adapter
	device  *wgpu.Device
	queue   *wgpu.Queue
}

var _ Backend = &wgpuBackend{}

// NewWGPUBackend creates a backend that runs kernels as compute pipelines on the renderer's
// WebGPU device. Buffers created by the renderer live on that device, so sharing needs no copy
// and the queue's submission order provides the acquire/release ordering.
//
// Parameters:
//   - adapter: the adapter the device was requested from
//   - device: the renderer's device
//   - queue: the renderer's queue
//
// Returns:
//   - Backend: the WebGPU backend
func NewWGPUBackend(adapter *wgpu.Adapter, device *wgpu.Device, queue *wgpu.Queue) Backend {
	return &wgpuBackend{
		adapter: adapter,
		device:  device,
		queue:   queue,
	}
}

func (b *wgpuBackend) Type() BackendType {
	return BackendTypeWGPU
}

func (b *wgpuBackend) Devices() []Device {
	if b.adapter == nil || b.device == nil {
		return nil
	}
	info := b.adapter.GetInfo()
	limits := b.adapter.GetLimits().Limits
	return []Device{NewDevice(info.Name, BackendTypeWGPU, Capabilities{
		Sharing:                     limits.MaxStorageBuffersPerShaderStage > 0,
		MaxWorkgroupsPerDimension:   uint32(limits.MaxComputeWorkgroupsPerDimension),
		MaxStorageBufferBindingSize: uint64(limits.MaxStorageBufferBindingSize),
	}, b.device)}
}

func (b *wgpuBackend) bind(dev Device, gfx GraphicsContext) (contextBackend, error) {
	gfxDevice, ok := gfx.Native().(*wgpu.Device)
	if !ok || gfxDevice != dev.Native() {
		return nil, fmt.Errorf("%w: graphics context is not on device %q", ErrUnsupportedSharing, dev.Name())
	}
	return &wgpuContext{device: b.device, queue: b.queue}, nil
}

type wgpuContext struct {
	device *wgpu.Device
	queue  *wgpu.Queue
}

type wgpuKernel struct {
	pipeline pipeline.Pipeline
	layout   *wgpu.BindGroupLayout
}

func (c *wgpuContext) importBuffer(gb GraphicsBuffer) (any, error) {
	buf, ok := gb.Native().(*wgpu.Buffer)
	if !ok || buf == nil {
		return nil, fmt.Errorf("%w: buffer %d is %T, not a device buffer", ErrUnsupportedSharing, gb.ID(), gb.Native())
	}
	return buf, nil
}

// compileProgram runs the device's own compiler over the source so driver-side rejections
// surface as build errors too.
func (c *wgpuContext) compileProgram(p *program) (any, error) {
	module, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "kernel program",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: p.source,
		},
	})
	if err != nil {
		return nil, &BuildError{Log: err.Error()}
	}
	return module, nil
}

func (c *wgpuContext) makeKernel(k *kernel) (any, error) {
	module := k.program.handle.(*wgpu.ShaderModule)

	desc, ok := k.shader.BindGroupLayoutDescriptors()[0]
	if !ok {
		desc = wgpu.BindGroupLayoutDescriptor{Label: k.name}
	}
	bgl, err := c.device.CreateBindGroupLayout(&desc)
	if err != nil {
		return nil, fmt.Errorf("kernel %q: failed to create bind group layout: %w", k.name, err)
	}

	layout, err := c.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            k.name,
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		return nil, err
	}
	defer layout.Release()

	created, err := c.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  k.name + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: k.name,
		},
	})
	if err != nil {
		bgl.Release()
		return nil, &BuildError{Log: err.Error()}
	}

	p := pipeline.NewPipeline(k.name, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(k.shader))
	p.SetComputePipeline(created)
	return &wgpuKernel{pipeline: p, layout: bgl}, nil
}

// dispatch encodes one compute pass and submits it. The uniform buffer and bind group are
// released right after submission; the queue keeps them alive until the pass has run.
func (c *wgpuContext) dispatch(k *kernel, _ [2]uint32, groups [2]uint32) error {
	wk := k.handle.(*wgpuKernel)

	views, err := k.views()
	if err != nil {
		return err
	}

	var entries []wgpu.BindGroupEntry
	for i, b := range k.storage {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: b.Binding,
			Buffer:  views[i].(*wgpu.Buffer),
			Size:    wgpu.WholeSize,
		})
	}

	if k.uniform != nil {
		data := make([]byte, roundUp16(len(k.uniformData)))
		copy(data, k.uniformData)
		ub, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: k.name + " Uniform Buffer",
			Size:  uint64(len(data)),
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return err
		}
		defer ub.Release()
		c.queue.WriteBuffer(ub, 0, data)
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: k.uniform.Binding,
			Buffer:  ub,
			Size:    wgpu.WholeSize,
		})
	}

	bindGroup, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   k.name + " Bind Group",
		Layout:  wk.layout,
		Entries: entries,
	})
	if err != nil {
		return err
	}
	defer bindGroup.Release()

	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(wk.pipeline.Pipeline().(*wgpu.ComputePipeline))
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(groups[0], groups[1], 1)
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer commandBuffer.Release()

	c.queue.Submit(commandBuffer)
	return nil
}

func (c *wgpuContext) finish() error {
	c.device.Poll(true, nil)
	return nil
}

func roundUp16(n int) int {
	return (n + 15) &^ 15
}
