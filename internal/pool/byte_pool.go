// Package pool recycles scratch buffers on hot paths.
package pool

import (
	"sync"

	"github.com/23skdu/genovec/internal/metrics"
)

// BytePool pools byte slices used to stage vectors before a device upload.
type BytePool struct {
	pool sync.Pool
}

// NewBytePool creates a new slice pool.
func NewBytePool() *BytePool {
	return &BytePool{
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, 0)
				return &b
			},
		},
	}
}

// Get returns a slice of length n. The slice is guaranteed to be zeroed.
func (p *BytePool) Get(n int) []byte {
	metrics.BufferPoolOperations.WithLabelValues("get").Inc()
	bp := p.pool.Get().(*[]byte)
	if cap(*bp) < n {
		metrics.BufferPoolOperations.WithLabelValues("grow").Inc()
		return make([]byte, n)
	}
	b := (*bp)[:n]
	clear(b)
	return b
}

// Put returns a slice to the pool. The caller must not use it afterwards.
func (p *BytePool) Put(b []byte) {
	metrics.BufferPoolOperations.WithLabelValues("put").Inc()
	b = b[:0]
	p.pool.Put(&b)
}
