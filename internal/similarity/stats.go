package similarity

import (
	"math"

	"github.com/23skdu/genovec/internal/hdc"
)

// Stats summarises a distribution of similarity scores.
type Stats struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64 // population standard deviation
	Count  int
}

// StatsFromValues returns the zero Stats for no values.
func StatsFromValues(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	st := Stats{Min: math.Inf(1), Max: math.Inf(-1), Count: len(values)}
	sum := 0.0
	for _, v := range values {
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
		sum += v
	}
	st.Mean = sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - st.Mean
		variance += d * d
	}
	st.StdDev = math.Sqrt(variance / float64(len(values)))
	return st
}

// PairwiseSimilarities lists the upper triangle (i < j) of normalized
// cosine similarities in row-major order.
func PairwiseSimilarities(vectors []hdc.Vector) []float64 {
	n := len(vectors)
	if n < 2 {
		return nil
	}
	out := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, hdc.NormalizedCosineSimilarity(vectors[i], vectors[j]))
		}
	}
	return out
}

// KnnAccuracy is the fraction of results whose label (looked up by ID)
// equals queryLabel. Unlabelled results count as wrong; no results score 0.
func KnnAccuracy(queryLabel string, results []SearchResult, labels map[string]string) float64 {
	if len(results) == 0 {
		return 0
	}
	correct := 0
	for _, r := range results {
		if l, ok := labels[r.ID]; ok && l == queryLabel {
			correct++
		}
	}
	return float64(correct) / float64(len(results))
}
