package pool

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/23skdu/genovec/internal/metrics"
)

func TestBytePool(t *testing.T) {
	p := NewBytePool()

	b1 := p.Get(16)
	assert.Len(t, b1, 16)
	for i := range b1 {
		b1[i] = 0xff
	}
	p.Put(b1)

	// Recycled or fresh, the slice comes back zeroed.
	b2 := p.Get(8)
	assert.Len(t, b2, 8)
	assert.Equal(t, make([]byte, 8), b2)
	p.Put(b2)

	big := p.Get(1 << 12)
	assert.Len(t, big, 1<<12)
	p.Put(big)
}

func TestBytePool_Metrics(t *testing.T) {
	p := NewBytePool()
	gets := testutil.ToFloat64(metrics.BufferPoolOperations.WithLabelValues("get"))
	puts := testutil.ToFloat64(metrics.BufferPoolOperations.WithLabelValues("put"))

	p.Put(p.Get(4))

	assert.Equal(t, gets+1, testutil.ToFloat64(metrics.BufferPoolOperations.WithLabelValues("get")))
	assert.Equal(t, puts+1, testutil.ToFloat64(metrics.BufferPoolOperations.WithLabelValues("put")))
}

func BenchmarkBytePool(b *testing.B) {
	p := NewBytePool()
	b.Run("Make", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := make([]byte, 1252*64)
			_ = buf
		}
	})
	b.Run("PoolGet", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			p.Put(p.Get(1252 * 64))
		}
	})
}
