package encoding

import (
	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

// SNP is one observed allele at a marker, e.g. {"rs1234", "A"}.
type SNP struct {
	MarkerID string
	Allele   string
}

// Key is the item key of the marker/allele pair.
func (s SNP) Key() string {
	return s.MarkerID + ":" + s.Allele
}

// SNPEncoder bundles one item vector per marker/allele pair.
type SNPEncoder struct {
	seed hdc.Seed
}

// NewSNPEncoder returns an SNP panel encoder.
func NewSNPEncoder(seed hdc.Seed) *SNPEncoder {
	return &SNPEncoder{seed: seed}
}

// EncodePanel encodes panel. An empty panel is ErrEmptyInput.
func (e *SNPEncoder) EncodePanel(panel []SNP) (hdc.Vector, error) {
	if len(panel) == 0 {
		return hdc.Vector{}, reject("snp", ErrEmptyInput, "panel has no markers")
	}
	acc := hdc.NewAccumulator()
	defer acc.Release()
	for _, s := range panel {
		acc.Add(hdc.Random(e.seed, s.Key()))
	}
	metrics.VectorsGeneratedTotal.WithLabelValues("snp").Inc()
	return acc.Vector(), nil
}
