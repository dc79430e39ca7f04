package batch

import (
	"sort"
	"time"

	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

// Match is a corpus position and its similarity to a query.
type Match struct {
	Index      int
	Similarity float64
}

// TopKSimilar ranks corpus by Hamming similarity to query and keeps the
// best k. Equal scores keep corpus order.
func TopKSimilar(query hdc.Vector, corpus []hdc.Vector, k int) []Match {
	start := time.Now()
	matches := make([]Match, len(corpus))
	for i, v := range corpus {
		matches[i] = Match{Index: i, Similarity: hdc.HammingSimilarity(query, v)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if k < 0 {
		k = 0
	}
	if k < len(matches) {
		matches = matches[:k]
	}

	metrics.SimilarityComparisonsTotal.WithLabelValues("cpu").Add(float64(len(corpus)))
	metrics.BatchDurationSeconds.WithLabelValues("top_k").Observe(time.Since(start).Seconds())
	return matches
}

// FindAboveThreshold returns, in corpus order, every entry scoring >= threshold.
func FindAboveThreshold(query hdc.Vector, corpus []hdc.Vector, threshold float64) []Match {
	var out []Match
	for i, v := range corpus {
		if s := hdc.HammingSimilarity(query, v); s >= threshold {
			out = append(out, Match{Index: i, Similarity: s})
		}
	}
	metrics.SimilarityComparisonsTotal.WithLabelValues("cpu").Add(float64(len(corpus)))
	return out
}
