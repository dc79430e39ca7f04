package encoding

import (
	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

// DefaultLocusWeights weights Class II loci (DRB1, DQB1) twice Class I.
var DefaultLocusWeights = LocusWeights{1, 1, 1, 2, 2}

// LocusEncodedHLA holds one bundled vector per locus.
type LocusEncodedHLA struct {
	Loci    [NumLoci]hdc.Vector
	Weights LocusWeights
}

// LocusWeightedHLAEncoder bundles each locus' allele pair separately so
// loci can be weighted when comparing typings.
type LocusWeightedHLAEncoder struct {
	seed    hdc.Seed
	weights LocusWeights
}

// NewLocusWeightedHLAEncoder uses DefaultLocusWeights.
func NewLocusWeightedHLAEncoder(seed hdc.Seed) *LocusWeightedHLAEncoder {
	return NewLocusWeightedHLAEncoderWithWeights(seed, DefaultLocusWeights)
}

// NewLocusWeightedHLAEncoderWithWeights uses custom per-locus weights.
func NewLocusWeightedHLAEncoderWithWeights(seed hdc.Seed, w LocusWeights) *LocusWeightedHLAEncoder {
	return &LocusWeightedHLAEncoder{seed: seed, weights: w}
}

// EncodeTyping requires exactly AllelesPerTyping alleles in locus order.
func (e *LocusWeightedHLAEncoder) EncodeTyping(alleles []string) (LocusEncodedHLA, error) {
	if err := checkAlleleCount("hla_locus", alleles); err != nil {
		return LocusEncodedHLA{}, err
	}
	out := LocusEncodedHLA{Weights: e.weights}
	for l, name := range Loci {
		prefix := "HLA-" + name + ":"
		out.Loci[l] = hdc.Bundle(
			hdc.Random(e.seed, prefix+alleles[2*l]),
			hdc.Random(e.seed, prefix+alleles[2*l+1]),
		)
	}
	metrics.VectorsGeneratedTotal.WithLabelValues("hla_locus").Inc()
	return out, nil
}

// MatchScore encodes both typings and returns their weighted similarity.
func (e *LocusWeightedHLAEncoder) MatchScore(a, b []string) (float64, error) {
	ea, err := e.EncodeTyping(a)
	if err != nil {
		return 0, err
	}
	eb, err := e.EncodeTyping(b)
	if err != nil {
		return 0, err
	}
	return ea.WeightedSimilarity(eb), nil
}

// FindBestMatches ranks donors by weighted similarity to recipient.
func (e *LocusWeightedHLAEncoder) FindBestMatches(recipient []string, donors []Donor, k int) ([]HLAMatch, error) {
	re, err := e.EncodeTyping(recipient)
	if err != nil {
		return nil, err
	}
	return rankDonors(donors, k, func(d Donor) (float64, bool) {
		de, err := e.EncodeTyping(d.Alleles)
		if err != nil {
			return 0, false
		}
		return re.WeightedSimilarity(de), true
	}), nil
}

// WeightedSimilarity is Σ wᵢ·simᵢ / Σ wᵢ over loci, using the receiver's weights.
// A zero weight sum scores 0.
func (h LocusEncodedHLA) WeightedSimilarity(o LocusEncodedHLA) float64 {
	total := weightSum(h.Weights)
	if total == 0 {
		return 0
	}
	sims := h.PerLocusSimilarity(o)
	sum := 0.0
	for l := range sims {
		sum += sims[l] * h.Weights[l]
	}
	return sum / total
}

// PerLocusSimilarity returns the normalized cosine similarity of each locus.
func (h LocusEncodedHLA) PerLocusSimilarity(o LocusEncodedHLA) [NumLoci]float64 {
	var sims [NumLoci]float64
	for l := range sims {
		sims[l] = hdc.NormalizedCosineSimilarity(h.Loci[l], o.Loci[l])
	}
	return sims
}

// Combined folds the loci into one vector for storage or export. Each locus
// is permuted by its index and votes with its weight.
func (h LocusEncodedHLA) Combined() hdc.Vector {
	items := make([]hdc.Weighted, 0, NumLoci)
	for l, v := range h.Loci {
		items = append(items, hdc.Weighted{Vector: v.Permute(l), Weight: h.Weights[l]})
	}
	return hdc.WeightedBundle(items...)
}
