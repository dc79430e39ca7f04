package batch

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// Stats describes one batch run.
type Stats struct {
	ProcessingTime time.Duration
	// Chunks is ceil(n / ChunkSize), whether or not the run was parallel.
	Chunks int
	// AvgMicros is wall time per successful item; 0 when nothing succeeded.
	AvgMicros float64
	// Throughput is successful items per second.
	Throughput float64
}

// Result holds the outcome of a batch run. Items are in input order and
// ItemIndices[i] is the input position of Items[i].
type Result[T any] struct {
	Items         []T
	ItemIndices   []int
	FailedIndices []int
	FailedCount   int
	Errors        map[int]error
	Stats         Stats
}

func (r *Result[T]) SuccessCount() int { return len(r.Items) }

func (r *Result[T]) TotalCount() int { return len(r.Items) + r.FailedCount }

// SuccessRate is 0 for an empty batch.
func (r *Result[T]) SuccessRate() float64 {
	total := r.TotalCount()
	if total == 0 {
		return 0
	}
	return float64(len(r.Items)) / float64(total)
}

// FailedSet returns the failed input positions as a bitmap.
func (r *Result[T]) FailedSet() *roaring.Bitmap {
	bm := roaring.New()
	for _, idx := range r.FailedIndices {
		bm.Add(uint32(idx))
	}
	return bm
}

// slot is what one worker writes for one input position.
type slot[T any] struct {
	item T
	err  error
}

func collect[T any](slots []slot[T], elapsed time.Duration, chunkSize int) *Result[T] {
	res := &Result[T]{
		Items:       make([]T, 0, len(slots)),
		ItemIndices: make([]int, 0, len(slots)),
		Errors:      make(map[int]error),
	}
	for i, s := range slots {
		if s.err != nil {
			res.FailedIndices = append(res.FailedIndices, i)
			res.Errors[i] = s.err
			continue
		}
		res.Items = append(res.Items, s.item)
		res.ItemIndices = append(res.ItemIndices, i)
	}
	res.FailedCount = len(res.FailedIndices)

	res.Stats = Stats{
		ProcessingTime: elapsed,
		Chunks:         (len(slots) + chunkSize - 1) / chunkSize,
	}
	if n := len(res.Items); n > 0 {
		res.Stats.AvgMicros = float64(elapsed.Microseconds()) / float64(n)
		if secs := elapsed.Seconds(); secs > 0 {
			res.Stats.Throughput = float64(n) / secs
		}
	}
	return res
}
