package gpu

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sync/errgroup"
)

// softwareAdapter runs kernels on the CPU, one goroutine per workgroup
// bounded by GOMAXPROCS. It is selected by Options.ForceFallbackAdapter.
type softwareAdapter struct {
	info AdapterInfo
}

func newSoftwareAdapter() *softwareAdapter {
	name := strings.TrimSpace(cpuid.CPU.BrandName)
	if name == "" {
		name = "generic " + runtime.GOARCH
	}
	return &softwareAdapter{info: AdapterInfo{
		Name:     name,
		Backend:  "software",
		Vendor:   cpuid.CPU.VendorString,
		Software: true,
		Cores:    cpuid.CPU.LogicalCores,
	}}
}

func (a *softwareAdapter) Info() AdapterInfo { return a.info }

func (a *softwareAdapter) RequestDevice(ctx context.Context) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &softwareDevice{limits: DefaultLimits(), parallelism: runtime.GOMAXPROCS(0)}, nil
}

type softwareDevice struct {
	mu          sync.Mutex
	limits      Limits
	parallelism int
	closed      bool
}

func (d *softwareDevice) Limits() Limits { return d.limits }

func (d *softwareDevice) CreateBuffer(label string, size int, usage BufferUsage) (Buffer, error) {
	if err := d.checkOpen("CreateBuffer"); err != nil {
		return nil, err
	}
	if size < 0 || size > d.limits.MaxBufferSize {
		return nil, deviceError(ErrBuffer, "CreateBuffer",
			fmt.Sprintf("%s: size %d outside [0, %d]", label, size, d.limits.MaxBufferSize))
	}
	return &softwareBuffer{label: label, usage: usage, data: make([]byte, size)}, nil
}

func (d *softwareDevice) CreateBufferInit(label string, data []byte, usage BufferUsage) (Buffer, error) {
	b, err := d.CreateBuffer(label, len(data), usage)
	if err != nil {
		return nil, err
	}
	copy(b.(*softwareBuffer).data, data)
	return b, nil
}

func (d *softwareDevice) CreatePipeline(k Kernel) (Pipeline, error) {
	if err := d.checkOpen("CreatePipeline"); err != nil {
		return nil, err
	}
	// The software device only knows how to run the similarity kernel.
	if k.EntryPoint != SimilarityKernel.EntryPoint || !strings.Contains(k.WGSL, "fn "+k.EntryPoint+"(") {
		return nil, deviceError(ErrShader, "CreatePipeline",
			fmt.Sprintf("%s: entry point %q not found", k.Name, k.EntryPoint))
	}
	return softwarePipeline{kernel: k}, nil
}

func (d *softwareDevice) Dispatch(p Pipeline, bindings []Buffer, workgroups int) (Submission, error) {
	if err := d.checkOpen("Dispatch"); err != nil {
		return nil, err
	}
	if _, ok := p.(softwarePipeline); !ok {
		return nil, deviceError(ErrDevice, "Dispatch", "pipeline was not created by this device")
	}
	if len(bindings) != numBindings {
		return nil, deviceError(ErrBuffer, "Dispatch",
			fmt.Sprintf("got %d bindings, kernel declares %d", len(bindings), numBindings))
	}
	if workgroups < 0 || workgroups > d.limits.MaxWorkgroupsPerDim {
		return nil, deviceError(ErrDevice, "Dispatch",
			fmt.Sprintf("workgroup count %d exceeds limit %d", workgroups, d.limits.MaxWorkgroupsPerDim))
	}

	bufs := make([]*softwareBuffer, numBindings)
	for i, b := range bindings {
		sb, ok := b.(*softwareBuffer)
		if !ok || sb.released {
			return nil, deviceError(ErrBuffer, "Dispatch", fmt.Sprintf("binding %d is not a live buffer of this device", i))
		}
		bufs[i] = sb
	}
	if bufs[bindParams].usage&UsageUniform == 0 || len(bufs[bindParams].data) < 16 {
		return nil, deviceError(ErrBuffer, "Dispatch", "params binding must be a 16-byte uniform buffer")
	}
	for _, i := range []int{bindQueries, bindDatabase, bindOutput} {
		if bufs[i].usage&UsageStorage == 0 {
			return nil, deviceError(ErrBuffer, "Dispatch", fmt.Sprintf("%s is not a storage buffer", bufs[i].label))
		}
	}

	params := paramsFromBytes(bufs[bindParams].data)
	words := params.wordsPerVector()
	total := int(params.QueryCount) * int(params.DBCount)
	switch {
	case len(bufs[bindQueries].data) < int(params.QueryCount)*int(words)*4,
		len(bufs[bindDatabase].data) < int(params.DBCount)*int(words)*4,
		len(bufs[bindOutput].data) < total*4:
		return nil, deviceError(ErrBuffer, "Dispatch", "buffer smaller than params require")
	}

	sub := &softwareSubmission{done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		queries := bytesToWords(bufs[bindQueries].data)
		database := bytesToWords(bufs[bindDatabase].data)
		output := make([]float32, total)

		var g errgroup.Group
		g.SetLimit(d.parallelism)
		for wg := 0; wg < workgroups; wg++ {
			g.Go(func() error {
				base := uint32(wg * WorkgroupSize)
				for local := uint32(0); local < WorkgroupSize; local++ {
					similarityInvocation(base+local, queries, database, output, params)
				}
				return nil
			})
		}
		sub.err = g.Wait()
		floatsToBytes(bufs[bindOutput].data, output)
	}()
	return sub, nil
}

func (d *softwareDevice) CopyBufferToBuffer(src, dst Buffer, size int) error {
	s, ok1 := src.(*softwareBuffer)
	t, ok2 := dst.(*softwareBuffer)
	switch {
	case !ok1 || !ok2:
		return deviceError(ErrBuffer, "CopyBufferToBuffer", "buffers were not created by this device")
	case s.usage&UsageCopySrc == 0 || t.usage&UsageCopyDst == 0:
		return deviceError(ErrBuffer, "CopyBufferToBuffer", "missing COPY_SRC or COPY_DST usage")
	case size > len(s.data) || size > len(t.data):
		return deviceError(ErrBuffer, "CopyBufferToBuffer", fmt.Sprintf("copy of %d bytes overruns a buffer", size))
	}
	copy(t.data[:size], s.data[:size])
	return nil
}

func (d *softwareDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *softwareDevice) checkOpen(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return deviceError(ErrDevice, op, "device is closed")
	}
	return nil
}

type softwareBuffer struct {
	label    string
	usage    BufferUsage
	data     []byte
	released bool
}

func (b *softwareBuffer) Label() string      { return b.label }
func (b *softwareBuffer) Size() int          { return len(b.data) }
func (b *softwareBuffer) Usage() BufferUsage { return b.usage }

func (b *softwareBuffer) Read() ([]byte, error) {
	if b.usage&UsageMapRead == 0 {
		return nil, deviceError(ErrBuffer, "Buffer.Read", b.label+": buffer is not MAP_READ")
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

func (b *softwareBuffer) Release() {
	b.released = true
	b.data = nil
}

type softwarePipeline struct {
	kernel Kernel
}

func (p softwarePipeline) Kernel() Kernel { return p.kernel }

type softwareSubmission struct {
	done chan struct{}
	err  error
}

func (s *softwareSubmission) Wait() error {
	<-s.done
	return s.err
}
