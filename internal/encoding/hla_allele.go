package encoding

import (
	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

// IdentityThreshold is the similarity above which two allele vectors are the
// same allele. Item vectors are deterministic, so equal keys score exactly 1.
const IdentityThreshold = 0.999

// DefaultAlleleWeights favours DRB1, then DQB1, with C weighted lowest.
var DefaultAlleleWeights = LocusWeights{1, 1, 0.5, 2, 1.5}

// AlleleEncodedHLA keeps every allele vector separate, two per locus.
type AlleleEncodedHLA struct {
	Alleles [AllelesPerTyping]hdc.Vector
	Weights LocusWeights
}

// AlleleHLAEncoder encodes each allele under a locus-qualified key so
// identical alleles can be detected exactly.
type AlleleHLAEncoder struct {
	seed    hdc.Seed
	weights LocusWeights
}

// NewAlleleHLAEncoder uses DefaultAlleleWeights.
func NewAlleleHLAEncoder(seed hdc.Seed) *AlleleHLAEncoder {
	return NewAlleleHLAEncoderWithWeights(seed, DefaultAlleleWeights)
}

// NewAlleleHLAEncoderWithWeights uses custom per-locus weights.
func NewAlleleHLAEncoderWithWeights(seed hdc.Seed, w LocusWeights) *AlleleHLAEncoder {
	return &AlleleHLAEncoder{seed: seed, weights: w}
}

// EncodeTyping requires exactly AllelesPerTyping alleles in locus order.
func (e *AlleleHLAEncoder) EncodeTyping(alleles []string) (AlleleEncodedHLA, error) {
	if err := checkAlleleCount("hla_allele", alleles); err != nil {
		return AlleleEncodedHLA{}, err
	}
	out := AlleleEncodedHLA{Weights: e.weights}
	for i, a := range alleles {
		out.Alleles[i] = hdc.Random(e.seed, "ALLELE:"+Loci[i/2]+":"+a)
	}
	metrics.VectorsGeneratedTotal.WithLabelValues("hla_allele").Inc()
	return out, nil
}

// MatchScore encodes both typings and compares them allele by allele.
func (e *AlleleHLAEncoder) MatchScore(a, b []string) (float64, error) {
	ea, err := e.EncodeTyping(a)
	if err != nil {
		return 0, err
	}
	eb, err := e.EncodeTyping(b)
	if err != nil {
		return 0, err
	}
	return ea.MatchScore(eb), nil
}

// FindBestMatches ranks donors by allele-level match score.
func (e *AlleleHLAEncoder) FindBestMatches(recipient []string, donors []Donor, k int) ([]HLAMatch, error) {
	re, err := e.EncodeTyping(recipient)
	if err != nil {
		return nil, err
	}
	return rankDonors(donors, k, func(d Donor) (float64, bool) {
		de, err := e.EncodeTyping(d.Alleles)
		if err != nil {
			return 0, false
		}
		return re.MatchScore(de), true
	}), nil
}

// MatchScore is the weighted mean over loci of matched slots / 2.
// A zero weight sum scores 0.
func (h AlleleEncodedHLA) MatchScore(o AlleleEncodedHLA) float64 {
	total := weightSum(h.Weights)
	if total == 0 {
		return 0
	}
	per := h.PerLocusMatches(o)
	sum := 0.0
	for l := range per {
		sum += per[l] * h.Weights[l]
	}
	return sum / total
}

// PerLocusMatches returns, per locus, the fraction (0, 0.5 or 1) of allele
// slots that pair with a distinct identical allele on the other side.
func (h AlleleEncodedHLA) PerLocusMatches(o AlleleEncodedHLA) [NumLoci]float64 {
	var out [NumLoci]float64
	for l := range out {
		var same [2][2]bool
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				sim := hdc.NormalizedCosineSimilarity(h.Alleles[2*l+i], o.Alleles[2*l+j])
				same[i][j] = sim > IdentityThreshold
			}
		}
		out[l] = float64(maxSlotMatching(same)) / 2
	}
	return out
}

// maxSlotMatching is the size of a maximum matching in the 2x2 bipartite
// graph where edge (i, j) means slot i on one side equals slot j on the other.
// Each slot is used at most once.
func maxSlotMatching(same [2][2]bool) int {
	switch {
	case same[0][0] && same[1][1], same[0][1] && same[1][0]:
		return 2
	case same[0][0] || same[0][1] || same[1][0] || same[1][1]:
		return 1
	default:
		return 0
	}
}

// Combined bundles the allele vectors into one.
func (h AlleleEncodedHLA) Combined() hdc.Vector {
	return hdc.Bundle(h.Alleles[:]...)
}
