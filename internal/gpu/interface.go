package gpu

import "context"

// BufferUsage is a bit set of the ways a buffer may be bound.
type BufferUsage uint32

const (
	UsageStorage BufferUsage = 1 << iota
	UsageUniform
	UsageCopySrc
	UsageCopyDst
	UsageMapRead
)

// AdapterInfo describes a physical or software adapter.
type AdapterInfo struct {
	Name     string
	Backend  string
	Vendor   string
	Software bool
	Cores    int
}

// Limits bounds what a device accepts.
type Limits struct {
	MaxBufferSize        int
	MaxWorkgroupsPerDim  int
	MaxBindingsPerKernel int
}

// DefaultLimits mirrors the portable WebGPU defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxBufferSize:        256 << 20,
		MaxWorkgroupsPerDim:  65535,
		MaxBindingsPerKernel: 8,
	}
}

// Adapter is a handle to a compute backend before a device is opened.
type Adapter interface {
	Info() AdapterInfo
	RequestDevice(ctx context.Context) (Device, error)
}

// Device owns buffers, compiled pipelines and a submission queue.
type Device interface {
	Limits() Limits
	CreateBuffer(label string, size int, usage BufferUsage) (Buffer, error)
	CreateBufferInit(label string, data []byte, usage BufferUsage) (Buffer, error)
	CreatePipeline(k Kernel) (Pipeline, error)
	// Dispatch queues workgroups of p with bindings in binding order.
	Dispatch(p Pipeline, bindings []Buffer, workgroups int) (Submission, error)
	CopyBufferToBuffer(src, dst Buffer, size int) error
	Close() error
}

// Buffer is device memory. Read requires UsageMapRead.
type Buffer interface {
	Label() string
	Size() int
	Usage() BufferUsage
	Read() ([]byte, error)
	Release()
}

// Pipeline is a compiled kernel entry point.
type Pipeline interface {
	Kernel() Kernel
}

// Submission completes once the queued work has run. Work always runs to
// completion once submitted.
type Submission interface {
	Wait() error
}
