// Package similarity provides searchable collections of encoded vectors.
package similarity

import (
	"sort"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

// SearchResult is one hit. Position is the insertion order of the vector.
type SearchResult struct {
	ID         string
	Position   int
	Similarity float64
}

// Index is an exact (brute force) index scored by normalized cosine
// similarity. It is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	ids     []string
	vectors []hdc.Vector
}

func NewIndex() *Index { return NewIndexWithCapacity(0) }

func NewIndexWithCapacity(capacity int) *Index {
	return &Index{
		ids:     make([]string, 0, capacity),
		vectors: make([]hdc.Vector, 0, capacity),
	}
}

// Add appends v under id and returns its position. IDs need not be unique.
func (x *Index) Add(id string, v hdc.Vector) int {
	x.mu.Lock()
	pos := len(x.vectors)
	x.ids = append(x.ids, id)
	x.vectors = append(x.vectors, v)
	x.mu.Unlock()

	metrics.IndexVectors.WithLabelValues("flat").Inc()
	return pos
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

func (x *Index) IsEmpty() bool { return x.Len() == 0 }

// Get returns the entry at pos.
func (x *Index) Get(pos int) (string, hdc.Vector, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if pos < 0 || pos >= len(x.vectors) {
		return "", hdc.Vector{}, false
	}
	return x.ids[pos], x.vectors[pos], true
}

// Range calls fn for each entry in insertion order until fn returns false.
func (x *Index) Range(fn func(pos int, id string, v hdc.Vector) bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	for i := range x.vectors {
		if !fn(i, x.ids[i], x.vectors[i]) {
			return
		}
	}
}

// Search returns the k most similar entries, best first. Equal scores keep
// insertion order.
func (x *Index) Search(query hdc.Vector, k int) []SearchResult {
	start := time.Now()
	defer func() {
		metrics.SearchDurationSeconds.WithLabelValues("flat").Observe(time.Since(start).Seconds())
	}()

	results := x.score(query, -1)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if k < 0 {
		k = 0
	}
	if k < len(results) {
		results = results[:k]
	}
	return results
}

// SearchThreshold returns, in insertion order, every entry scoring >= threshold.
func (x *Index) SearchThreshold(query hdc.Vector, threshold float64) []SearchResult {
	return x.score(query, threshold)
}

// SearchThresholdSet is SearchThreshold reduced to a bitmap of positions.
func (x *Index) SearchThresholdSet(query hdc.Vector, threshold float64) *roaring.Bitmap {
	bm := roaring.New()
	for _, r := range x.score(query, threshold) {
		bm.Add(uint32(r.Position))
	}
	return bm
}

// MemorySize is the bytes held by IDs and vectors.
func (x *Index) MemorySize() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := len(x.vectors) * hdc.Bytes
	for _, id := range x.ids {
		n += len(id)
	}
	return n
}

// score compares query against every entry; a negative threshold keeps all.
func (x *Index) score(query hdc.Vector, threshold float64) []SearchResult {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]SearchResult, 0, len(x.vectors))
	for i, v := range x.vectors {
		s := hdc.NormalizedCosineSimilarity(query, v)
		if threshold >= 0 && s < threshold {
			continue
		}
		out = append(out, SearchResult{ID: x.ids[i], Position: i, Similarity: s})
	}
	metrics.SimilarityComparisonsTotal.WithLabelValues("cpu").Add(float64(len(x.vectors)))
	return out
}
