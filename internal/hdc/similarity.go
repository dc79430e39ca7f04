package hdc

import "github.com/23skdu/genovec/internal/simd"

// Distance returns the number of differing bits.
func Distance(a, b Vector) int {
	return simd.HammingDistance(a.w[:], b.w[:])
}

// HammingSimilarity is the fraction of matching bits, in [0, 1].
func HammingSimilarity(a, b Vector) float64 {
	return 1 - float64(Distance(a, b))/Dim
}

// CosineSimilarity reads bits as ±1 and returns (2·matching − Dim)/Dim, in [−1, 1].
func CosineSimilarity(a, b Vector) float64 {
	matching := Dim - Distance(a, b)
	return float64(2*matching-Dim) / Dim
}

// NormalizedCosineSimilarity maps CosineSimilarity onto [0, 1]. For binary
// vectors it coincides with HammingSimilarity.
func NormalizedCosineSimilarity(a, b Vector) float64 {
	return (CosineSimilarity(a, b) + 1) / 2
}

// JaccardSimilarity is |a∧b| / |a∨b|; two zero vectors score 1.
func JaccardSimilarity(a, b Vector) float64 {
	union := simd.OrCount(a.w[:], b.w[:])
	if union == 0 {
		return 1
	}
	return float64(simd.AndCount(a.w[:], b.w[:])) / float64(union)
}

// Similarity is the default score used across encoders (normalized cosine).
func (v Vector) Similarity(o Vector) float64 {
	return NormalizedCosineSimilarity(v, o)
}
