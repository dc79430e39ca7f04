//go:build gpu && darwin && arm64

package gpu

/*
#cgo CFLAGS: -x objective-c -fobjc-arc
#cgo LDFLAGS: -framework Metal -framework Foundation

#import <Foundation/Foundation.h>
#import <Metal/Metal.h>
#include <stdlib.h>
#include <string.h>

void* mtl_create_device(void) {
    @autoreleasepool {
        id<MTLDevice> device = MTLCreateSystemDefaultDevice();
        if (!device) {
            return NULL;
        }
        return (__bridge_retained void*)device;
    }
}

const char* mtl_device_name(void* dev) {
    @autoreleasepool {
        id<MTLDevice> device = (__bridge id<MTLDevice>)dev;
        return strdup([[device name] UTF8String]);
    }
}

unsigned long mtl_max_buffer_length(void* dev) {
    id<MTLDevice> device = (__bridge id<MTLDevice>)dev;
    return (unsigned long)[device maxBufferLength];
}

void* mtl_new_queue(void* dev) {
    @autoreleasepool {
        id<MTLDevice> device = (__bridge id<MTLDevice>)dev;
        id<MTLCommandQueue> queue = [device newCommandQueue];
        if (!queue) {
            return NULL;
        }
        return (__bridge_retained void*)queue;
    }
}

void* mtl_new_buffer(void* dev, const void* bytes, unsigned long length) {
    @autoreleasepool {
        id<MTLDevice> device = (__bridge id<MTLDevice>)dev;
        id<MTLBuffer> buffer;
        if (length == 0) {
            length = 4;
        }
        if (bytes) {
            buffer = [device newBufferWithBytes:bytes length:length options:MTLResourceStorageModeShared];
        } else {
            buffer = [device newBufferWithLength:length options:MTLResourceStorageModeShared];
        }
        if (!buffer) {
            return NULL;
        }
        return (__bridge_retained void*)buffer;
    }
}

void* mtl_buffer_contents(void* buf) {
    id<MTLBuffer> buffer = (__bridge id<MTLBuffer>)buf;
    return [buffer contents];
}

void* mtl_new_pipeline(void* dev, const char* source, const char* entry, char** errOut) {
    @autoreleasepool {
        id<MTLDevice> device = (__bridge id<MTLDevice>)dev;
        NSError* error = nil;
        id<MTLLibrary> library = [device newLibraryWithSource:[NSString stringWithUTF8String:source]
                                                      options:nil
                                                        error:&error];
        if (!library) {
            *errOut = strdup([[error localizedDescription] UTF8String]);
            return NULL;
        }
        id<MTLFunction> fn = [library newFunctionWithName:[NSString stringWithUTF8String:entry]];
        if (!fn) {
            *errOut = strdup("entry point not found");
            return NULL;
        }
        id<MTLComputePipelineState> pipeline = [device newComputePipelineStateWithFunction:fn error:&error];
        if (!pipeline) {
            *errOut = strdup([[error localizedDescription] UTF8String]);
            return NULL;
        }
        return (__bridge_retained void*)pipeline;
    }
}

void* mtl_dispatch(void* q, void* p, void** buffers, int count, unsigned long groups, unsigned long groupSize) {
    @autoreleasepool {
        id<MTLCommandQueue> queue = (__bridge id<MTLCommandQueue>)q;
        id<MTLComputePipelineState> pipeline = (__bridge id<MTLComputePipelineState>)p;
        id<MTLCommandBuffer> cmd = [queue commandBuffer];
        id<MTLComputeCommandEncoder> enc = [cmd computeCommandEncoder];
        [enc setComputePipelineState:pipeline];
        for (int i = 0; i < count; i++) {
            [enc setBuffer:(__bridge id<MTLBuffer>)buffers[i] offset:0 atIndex:i];
        }
        [enc dispatchThreadgroups:MTLSizeMake(groups, 1, 1) threadsPerThreadgroup:MTLSizeMake(groupSize, 1, 1)];
        [enc endEncoding];
        [cmd commit];
        return (__bridge_retained void*)cmd;
    }
}

int mtl_wait(void* c) {
    @autoreleasepool {
        id<MTLCommandBuffer> cmd = (__bridge id<MTLCommandBuffer>)c;
        [cmd waitUntilCompleted];
        return [cmd status] == MTLCommandBufferStatusCompleted ? 0 : -1;
    }
}

void mtl_release(void* obj) {
    if (obj) {
        CFRelease(obj);
    }
}
*/
import "C"

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"unsafe"
)

type metalAdapter struct {
	device unsafe.Pointer
	name   string
}

func requestHardwareAdapter(ctx context.Context) (Adapter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dev := C.mtl_create_device()
	if dev == nil {
		return nil, deviceError(ErrNoAdapter, "RequestAdapter", "no Metal device")
	}
	cname := C.mtl_device_name(dev)
	defer C.free(unsafe.Pointer(cname))
	return &metalAdapter{device: dev, name: C.GoString(cname)}, nil
}

func (a *metalAdapter) Info() AdapterInfo {
	return AdapterInfo{Name: a.name, Backend: "metal", Vendor: "Apple", Cores: runtime.NumCPU()}
}

func (a *metalAdapter) RequestDevice(ctx context.Context) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queue := C.mtl_new_queue(a.device)
	if queue == nil {
		return nil, deviceError(ErrDevice, "RequestDevice", "failed to create Metal command queue")
	}
	limits := DefaultLimits()
	if maxLen := int(C.mtl_max_buffer_length(a.device)); maxLen < limits.MaxBufferSize {
		limits.MaxBufferSize = maxLen
	}
	d := &metalDevice{device: a.device, queue: queue, limits: limits}
	runtime.SetFinalizer(d, (*metalDevice).Close)
	return d, nil
}

type metalDevice struct {
	mu     sync.Mutex
	device unsafe.Pointer
	queue  unsafe.Pointer
	limits Limits
	closed bool
}

func (d *metalDevice) Limits() Limits { return d.limits }

func (d *metalDevice) CreateBuffer(label string, size int, usage BufferUsage) (Buffer, error) {
	return d.newBuffer(label, nil, size, usage)
}

func (d *metalDevice) CreateBufferInit(label string, data []byte, usage BufferUsage) (Buffer, error) {
	return d.newBuffer(label, data, len(data), usage)
}

func (d *metalDevice) newBuffer(label string, data []byte, size int, usage BufferUsage) (Buffer, error) {
	if size < 0 || size > d.limits.MaxBufferSize {
		return nil, deviceError(ErrBuffer, "CreateBuffer",
			fmt.Sprintf("%s: size %d outside [0, %d]", label, size, d.limits.MaxBufferSize))
	}
	var src unsafe.Pointer
	if len(data) > 0 {
		src = unsafe.Pointer(&data[0])
	}
	buf := C.mtl_new_buffer(d.device, src, C.ulong(size))
	if buf == nil {
		return nil, deviceError(ErrBuffer, "CreateBuffer", label+": Metal allocation failed")
	}
	return &metalBuffer{label: label, usage: usage, size: size, handle: buf}, nil
}

func (d *metalDevice) CreatePipeline(k Kernel) (Pipeline, error) {
	src := C.CString(k.MSL)
	defer C.free(unsafe.Pointer(src))
	entry := C.CString(k.EntryPoint)
	defer C.free(unsafe.Pointer(entry))

	var cerr *C.char
	p := C.mtl_new_pipeline(d.device, src, entry, &cerr)
	if p == nil {
		msg := "unknown error"
		if cerr != nil {
			msg = C.GoString(cerr)
			C.free(unsafe.Pointer(cerr))
		}
		return nil, deviceError(ErrShader, "CreatePipeline", k.Name+": "+msg)
	}
	return &metalPipeline{kernel: k, handle: p}, nil
}

func (d *metalDevice) Dispatch(p Pipeline, bindings []Buffer, workgroups int) (Submission, error) {
	mp, ok := p.(*metalPipeline)
	if !ok {
		return nil, deviceError(ErrDevice, "Dispatch", "pipeline was not created by this device")
	}
	if workgroups > d.limits.MaxWorkgroupsPerDim {
		return nil, deviceError(ErrDevice, "Dispatch",
			fmt.Sprintf("workgroup count %d exceeds limit %d", workgroups, d.limits.MaxWorkgroupsPerDim))
	}
	handles := (*[numBindings]unsafe.Pointer)(C.malloc(C.size_t(numBindings) * C.size_t(unsafe.Sizeof(uintptr(0)))))
	defer C.free(unsafe.Pointer(handles))
	if len(bindings) != numBindings {
		return nil, deviceError(ErrBuffer, "Dispatch", "wrong number of bindings")
	}
	for i, b := range bindings {
		mb, ok := b.(*metalBuffer)
		if !ok || mb.handle == nil {
			return nil, deviceError(ErrBuffer, "Dispatch", fmt.Sprintf("binding %d is not a live Metal buffer", i))
		}
		handles[i] = mb.handle
	}
	cmd := C.mtl_dispatch(d.queue, mp.handle, (*unsafe.Pointer)(unsafe.Pointer(handles)),
		C.int(numBindings), C.ulong(workgroups), C.ulong(WorkgroupSize))
	return &metalSubmission{cmd: cmd}, nil
}

func (d *metalDevice) CopyBufferToBuffer(src, dst Buffer, size int) error {
	s, ok1 := src.(*metalBuffer)
	t, ok2 := dst.(*metalBuffer)
	if !ok1 || !ok2 || size > s.size || size > t.size {
		return deviceError(ErrBuffer, "CopyBufferToBuffer", "invalid copy")
	}
	if size == 0 {
		return nil
	}
	// Shared storage mode: both buffers are CPU-visible.
	C.memcpy(C.mtl_buffer_contents(t.handle), C.mtl_buffer_contents(s.handle), C.size_t(size))
	return nil
}

func (d *metalDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	C.mtl_release(d.queue)
	d.queue = nil
	d.closed = true
	return nil
}

type metalBuffer struct {
	label  string
	usage  BufferUsage
	size   int
	handle unsafe.Pointer
}

func (b *metalBuffer) Label() string      { return b.label }
func (b *metalBuffer) Size() int          { return b.size }
func (b *metalBuffer) Usage() BufferUsage { return b.usage }

func (b *metalBuffer) Read() ([]byte, error) {
	if b.usage&UsageMapRead == 0 {
		return nil, deviceError(ErrBuffer, "Buffer.Read", b.label+": buffer is not MAP_READ")
	}
	if b.size == 0 {
		return []byte{}, nil
	}
	return C.GoBytes(C.mtl_buffer_contents(b.handle), C.int(b.size)), nil
}

func (b *metalBuffer) Release() {
	C.mtl_release(b.handle)
	b.handle = nil
}

type metalPipeline struct {
	kernel Kernel
	handle unsafe.Pointer
}

func (p *metalPipeline) Kernel() Kernel { return p.kernel }

type metalSubmission struct {
	cmd unsafe.Pointer
}

func (s *metalSubmission) Wait() error {
	defer C.mtl_release(s.cmd)
	if C.mtl_wait(s.cmd) != 0 {
		return deviceError(ErrDevice, "Submission.Wait", "Metal command buffer failed")
	}
	return nil
}
