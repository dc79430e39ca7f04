package hdc

import "sync"

// Count buffers for bundling are recycled across calls. Zeroing happens on
// get, so a stale buffer can never leak counts into the next bundle.
var (
	countPool = sync.Pool{
		New: func() any {
			buf := make([]int32, Dim)
			return &buf
		},
	}
	weightPool = sync.Pool{
		New: func() any {
			buf := make([]float64, Dim)
			return &buf
		},
	}
)

func getCounts() *[]int32 {
	bp := countPool.Get().(*[]int32)
	buf := *bp
	for i := range buf {
		buf[i] = 0
	}
	return bp
}

func putCounts(bp *[]int32) { countPool.Put(bp) }

func getWeights() *[]float64 {
	bp := weightPool.Get().(*[]float64)
	buf := *bp
	for i := range buf {
		buf[i] = 0
	}
	return bp
}

func putWeights(bp *[]float64) { weightPool.Put(bp) }
