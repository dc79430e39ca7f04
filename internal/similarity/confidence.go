package similarity

import (
	"math"
	"sort"

	"github.com/23skdu/genovec/internal/batch"
	"github.com/23skdu/genovec/internal/gpu"
	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

// Confidence bands a similarity score for reporting.
type Confidence int

const (
	ConfidenceVeryLow Confidence = iota
	ConfidenceLow
	ConfidenceModerate
	ConfidenceHigh
	ConfidenceVeryHigh
)

// Lower bounds of each band. Unrelated vectors sit near 0.5.
const (
	VeryHighThreshold = 0.85
	HighThreshold     = 0.70
	ModerateThreshold = 0.58
	LowThreshold      = 0.52
)

// ConfidenceFor returns the band containing similarity.
func ConfidenceFor(similarity float64) Confidence {
	switch {
	case similarity >= VeryHighThreshold:
		return ConfidenceVeryHigh
	case similarity >= HighThreshold:
		return ConfidenceHigh
	case similarity >= ModerateThreshold:
		return ConfidenceModerate
	case similarity >= LowThreshold:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

func (c Confidence) String() string {
	switch c {
	case ConfidenceVeryHigh:
		return "very_high"
	case ConfidenceHigh:
		return "high"
	case ConfidenceModerate:
		return "moderate"
	case ConfidenceLow:
		return "low"
	default:
		return "very_low"
	}
}

// MarshalText encodes the band by name.
func (c Confidence) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c Confidence) Description() string {
	switch c {
	case ConfidenceVeryHigh:
		return "Very high confidence - strong match"
	case ConfidenceHigh:
		return "High confidence - likely match"
	case ConfidenceModerate:
		return "Moderate confidence - possible match"
	case ConfidenceLow:
		return "Low confidence - weak match"
	default:
		return "Very low confidence - likely unrelated"
	}
}

// Probability is the estimated chance that a match in this band is real.
func (c Confidence) Probability() float64 {
	switch c {
	case ConfidenceVeryHigh:
		return 0.97
	case ConfidenceHigh:
		return 0.90
	case ConfidenceModerate:
		return 0.77
	case ConfidenceLow:
		return 0.60
	default:
		return 0.35
	}
}

// Scored is a similarity with its band and its distance from the random
// baseline: for independent random vectors the similarity is approximately
// N(0.5, 0.25/Dim).
type Scored struct {
	Similarity      float64    `json:"similarity"`
	Confidence      Confidence `json:"confidence"`
	ZScore          float64    `json:"z_score"`
	BitsAboveRandom int        `json:"bits_above_random"`
	PValue          float64    `json:"p_value"`
}

var randomStdDev = math.Sqrt(0.25 / hdc.Dim)

// Score computes the confidence metrics for one similarity.
func Score(similarity float64) Scored {
	z := (similarity - 0.5) / randomStdDev
	c := ConfidenceFor(similarity)
	metrics.MatchConfidenceTotal.WithLabelValues(c.String()).Inc()
	return Scored{
		Similarity:      similarity,
		Confidence:      c,
		ZScore:          z,
		BitsAboveRandom: int(hdc.Dim*similarity) - hdc.Dim/2,
		PValue:          0.5 * math.Erfc(z/math.Sqrt2), // upper tail
	}
}

// Compare scores the normalized cosine similarity of a and b.
func Compare(a, b hdc.Vector) Scored {
	return Score(hdc.NormalizedCosineSimilarity(a, b))
}

// IsSignificant reports p < alpha.
func (s Scored) IsSignificant(alpha float64) bool { return s.PValue < alpha }

// ClinicalGrade reports a high or very high band.
func (s Scored) ClinicalGrade() bool { return s.Confidence >= ConfidenceHigh }

// ScoreResults scores Index and ANNIndex search results, keeping order.
func ScoreResults(results []SearchResult) []Scored {
	out := make([]Scored, len(results))
	for i, r := range results {
		out[i] = Score(r.Similarity)
	}
	return out
}

// ScoreMatches scores batch.TopKSimilar output, keeping order.
func ScoreMatches(matches []batch.Match) []Scored {
	out := make([]Scored, len(matches))
	for i, m := range matches {
		out[i] = Score(m.Similarity)
	}
	return out
}

// ScoreGPUMatches scores one row of gpu.Engine.TopKSimilarity output.
func ScoreGPUMatches(matches []gpu.Match) []Scored {
	out := make([]Scored, len(matches))
	for i, m := range matches {
		out[i] = Score(float64(m.Similarity))
	}
	return out
}

// ConfidenceStats summarises a batch of similarities with their bands.
type ConfidenceStats struct {
	Stats
	Scores []Scored
	// HighConfidence counts clinical-grade scores.
	HighConfidence int
}

// ConfidenceStatsFrom scores every value.
func ConfidenceStatsFrom(values []float64) ConfidenceStats {
	cs := ConfidenceStats{Stats: StatsFromValues(values), Scores: make([]Scored, len(values))}
	for i, v := range values {
		cs.Scores[i] = Score(v)
		if cs.Scores[i].ClinicalGrade() {
			cs.HighConfidence++
		}
	}
	return cs
}

// TopMatches returns the n highest scores, best first.
func (cs ConfidenceStats) TopMatches(n int) []Scored {
	top := append([]Scored(nil), cs.Scores...)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Similarity > top[j].Similarity })
	if n < 0 {
		n = 0
	}
	if n < len(top) {
		top = top[:n]
	}
	return top
}
