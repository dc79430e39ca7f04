package similarity

import (
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"

	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

// ANNConfig tunes the HNSW graph.
type ANNConfig struct {
	M        int
	EfSearch int
	// Oversample multiplies k for the graph search before exact rescoring.
	Oversample int
}

func DefaultANNConfig() ANNConfig {
	return ANNConfig{M: 16, EfSearch: 64, Oversample: 4}
}

// ANNIndex is an approximate index. Vectors are projected to bipolar
// float32 form (bit 1 → +1, bit 0 → −1), where cosine distance is a linear
// function of Hamming distance, and candidates from the graph are rescored
// exactly against the stored binary vectors.
type ANNIndex struct {
	mu      sync.RWMutex
	cfg     ANNConfig
	graph   *hnsw.Graph[uint32]
	ids     []string
	vectors []hdc.Vector
}

func NewANNIndex(cfg ANNConfig) *ANNIndex {
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = 64
	}
	if cfg.Oversample < 1 {
		cfg.Oversample = 1
	}
	g := hnsw.NewGraph[uint32]()
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	g.Distance = hnsw.CosineDistance
	return &ANNIndex{cfg: cfg, graph: g}
}

// Add inserts v under id and returns its position.
func (a *ANNIndex) Add(id string, v hdc.Vector) int {
	a.mu.Lock()
	pos := len(a.vectors)
	a.ids = append(a.ids, id)
	a.vectors = append(a.vectors, v)
	a.graph.Add(hnsw.MakeNode(uint32(pos), Bipolar(v)))
	a.mu.Unlock()

	metrics.IndexVectors.WithLabelValues("ann").Inc()
	return pos
}

func (a *ANNIndex) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.vectors)
}

// Search returns up to k approximate nearest entries, best first, scored by
// normalized cosine similarity.
func (a *ANNIndex) Search(query hdc.Vector, k int) []SearchResult {
	if k <= 0 {
		return nil
	}
	start := time.Now()
	defer func() {
		metrics.SearchDurationSeconds.WithLabelValues("ann").Observe(time.Since(start).Seconds())
	}()

	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.vectors) == 0 {
		return nil
	}

	nodes := a.graph.Search(Bipolar(query), k*a.cfg.Oversample)
	results := make([]SearchResult, 0, len(nodes))
	for _, n := range nodes {
		pos := int(n.Key)
		results = append(results, SearchResult{
			ID:         a.ids[pos],
			Position:   pos,
			Similarity: hdc.NormalizedCosineSimilarity(query, a.vectors[pos]),
		})
	}
	metrics.SimilarityComparisonsTotal.WithLabelValues("ann").Add(float64(len(nodes)))

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Position < results[j].Position
	})
	if k < len(results) {
		results = results[:k]
	}
	return results
}

// Bipolar maps v to ±1 float32 components.
func Bipolar(v hdc.Vector) []float32 {
	out := make([]float32, hdc.Dim)
	words := v.Words()
	for i := range out {
		if words[i>>6]>>(uint(i)&63)&1 == 1 {
			out[i] = 1
		} else {
			out[i] = -1
		}
	}
	return out
}
