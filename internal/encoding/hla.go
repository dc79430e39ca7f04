package encoding

import (
	"fmt"
	"sort"

	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

// NumLoci is the number of typed HLA loci.
const NumLoci = 5

// AllelesPerTyping is the number of alleles a locus-aware typing must carry:
// two per locus, ordered A1 A2 B1 B2 C1 C2 DRB1 DRB1 DQB1 DQB1.
const AllelesPerTyping = 2 * NumLoci

// Loci names the typed loci in typing order.
var Loci = [NumLoci]string{"A", "B", "C", "DRB1", "DQB1"}

// LocusWeights holds one weight per locus in Loci order.
type LocusWeights [NumLoci]float64

// HLAMatch is one ranked donor.
type HLAMatch struct {
	DonorID string
	Score   float64
}

// Donor is a candidate typing in a match search.
type Donor struct {
	ID      string
	Alleles []string
}

// HLAEncoder is the coarse encoder: it bundles one vector per allele name
// without regard to locus.
type HLAEncoder struct {
	seed hdc.Seed
}

// NewHLAEncoder returns the basic HLA encoder.
func NewHLAEncoder(seed hdc.Seed) *HLAEncoder {
	return &HLAEncoder{seed: seed}
}

// EncodeTyping bundles "HLA:<allele>" item vectors. Any number of alleles is accepted.
func (e *HLAEncoder) EncodeTyping(alleles []string) (hdc.Vector, error) {
	if len(alleles) == 0 {
		return hdc.Vector{}, reject("hla_basic", ErrEmptyInput, "typing has no alleles")
	}
	acc := hdc.NewAccumulator()
	defer acc.Release()
	for _, a := range alleles {
		acc.Add(hdc.Random(e.seed, "HLA:"+a))
	}
	metrics.VectorsGeneratedTotal.WithLabelValues("hla_basic").Inc()
	return acc.Vector(), nil
}

// MatchScore is the normalized cosine similarity of the two bundles.
func (e *HLAEncoder) MatchScore(a, b []string) (float64, error) {
	va, err := e.EncodeTyping(a)
	if err != nil {
		return 0, err
	}
	vb, err := e.EncodeTyping(b)
	if err != nil {
		return 0, err
	}
	return hdc.NormalizedCosineSimilarity(va, vb), nil
}

// FindBestMatches ranks donors against recipient. Donors whose typing fails
// to encode are left out.
func (e *HLAEncoder) FindBestMatches(recipient []string, donors []Donor, k int) ([]HLAMatch, error) {
	rv, err := e.EncodeTyping(recipient)
	if err != nil {
		return nil, err
	}
	return rankDonors(donors, k, func(d Donor) (float64, bool) {
		dv, err := e.EncodeTyping(d.Alleles)
		if err != nil {
			return 0, false
		}
		return hdc.NormalizedCosineSimilarity(rv, dv), true
	}), nil
}

// rankDonors scores every donor, sorts descending (ties keep donor order)
// and truncates to k.
func rankDonors(donors []Donor, k int, score func(Donor) (float64, bool)) []HLAMatch {
	matches := make([]HLAMatch, 0, len(donors))
	for _, d := range donors {
		if s, ok := score(d); ok {
			matches = append(matches, HLAMatch{DonorID: d.ID, Score: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k >= 0 && k < len(matches) {
		matches = matches[:k]
	}
	return matches
}

func checkAlleleCount(encoder string, alleles []string) error {
	if len(alleles) != AllelesPerTyping {
		return reject(encoder, ErrAlleleCount,
			fmt.Sprintf("got %d alleles, want %d (2 per locus for A, B, C, DRB1, DQB1)", len(alleles), AllelesPerTyping)).
			WithContext("alleles", len(alleles))
	}
	return nil
}

func weightSum(w LocusWeights) float64 {
	total := 0.0
	for _, x := range w {
		total += x
	}
	return total
}
