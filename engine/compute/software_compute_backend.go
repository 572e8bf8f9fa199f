package compute

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// maxSoftwareTasks bounds the tasks one dispatch submits so they always fit the pool queue.
const maxSoftwareTasks = 256

type softwareBackend struct {
	name    string
	sharing bool
	empty   bool
	workers int
	kernels map[string]HostKernelFunc

	pool worker.DynamicWorkerPool
}

var _ Backend = &softwareBackend{}

// NewSoftwareBackend creates a backend that runs kernels as Go functions on host memory buffers
// allocated by a headless renderer. Kernel source is still compiled and validated; the work
// itself is done by the HostKernelFunc registered under the entry point name.
//
// Parameters:
//   - options: a variadic list of SoftwareBackendOption functions
//
// Returns:
//   - Backend: the software backend
func NewSoftwareBackend(options ...SoftwareBackendOption) Backend {
	b := &softwareBackend{
		name:    "software",
		sharing: true,
		workers: runtime.NumCPU(),
		kernels: make(map[string]HostKernelFunc),
	}
	for _, option := range options {
		option(b)
	}
	b.pool = worker.NewDynamicWorkerPool(b.workers, maxSoftwareTasks, 1*time.Second)
	return b
}

func (b *softwareBackend) Type() BackendType {
	return BackendTypeSoftware
}

func (b *softwareBackend) Devices() []Device {
	if b.empty {
		return nil
	}
	return []Device{NewDevice(b.name, BackendTypeSoftware, Capabilities{
		Sharing:                     b.sharing,
		MaxWorkgroupsPerDimension:   65535,
		MaxStorageBufferBindingSize: 1 << 30,
	}, nil)}
}

func (b *softwareBackend) bind(_ Device, _ GraphicsContext) (contextBackend, error) {
	return &softwareContext{backend: b}, nil
}

type softwareContext struct {
	backend *softwareBackend
}

func (c *softwareContext) importBuffer(gb GraphicsBuffer) (any, error) {
	data, ok := gb.Native().([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d is %T, not host memory", ErrUnsupportedSharing, gb.ID(), gb.Native())
	}
	if uint64(len(data)) < gb.Size() {
		return nil, fmt.Errorf("%w: buffer %d holds %d of %d bytes", ErrBufferSize, gb.ID(), len(data), gb.Size())
	}
	return data[:gb.Size()], nil
}

func (c *softwareContext) compileProgram(_ *program) (any, error) {
	return nil, nil
}

func (c *softwareContext) makeKernel(k *kernel) (any, error) {
	if fn, ok := c.backend.kernels[k.name]; ok {
		return fn, nil
	}
	if fn, ok := lookupHostKernel(k.name); ok {
		return fn, nil
	}
	return nil, fmt.Errorf("%w: no host implementation registered for %q", ErrKernelNotFound, k.name)
}

// dispatch splits the rows of the global range into at most maxSoftwareTasks contiguous bands and
// runs them on the worker pool, returning once every band has finished.
func (c *softwareContext) dispatch(k *kernel, global [2]uint32, _ [2]uint32) error {
	fn := k.handle.(HostKernelFunc)

	views, err := k.views()
	if err != nil {
		return err
	}
	args := HostArgs{scalars: k.scalars, buffers: make([]Vec4View, len(views))}
	for i, v := range views {
		args.buffers[i] = newVec4View(v.([]byte))
	}

	rows := global[0]
	tasks := min(rows, maxSoftwareTasks)
	band := ceilDiv(rows, tasks)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for t := uint32(0); t < tasks; t++ {
		lo := t * band
		hi := min(lo+band, rows)
		if lo >= hi {
			break
		}
		wg.Add(1)
		c.backend.pool.SubmitTask(worker.Task{
			ID: int(t),
			Do: func() (result any, err error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						mu.Lock()
						errs = append(errs, fmt.Errorf("kernel %q panicked on rows [%d,%d): %v", k.name, lo, hi, r))
						mu.Unlock()
					}
				}()
				for x := lo; x < hi; x++ {
					for y := uint32(0); y < global[1]; y++ {
						fn(WorkItem{X: x, Y: y}, args)
					}
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

// finish has nothing to wait for: dispatch returns once the work is done.
func (c *softwareContext) finish() error {
	return nil
}
