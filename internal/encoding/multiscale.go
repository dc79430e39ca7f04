package encoding

import (
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

// DefaultScales are the k-mer lengths used by NewMultiScaleEncoder when none are given.
var DefaultScales = []int{4, 6, 8}

// ScaleVector is the encoding of one sequence at one k.
type ScaleVector struct {
	K         int
	KmerCount int
	Vector    hdc.Vector
}

// MultiScaleEncoded combines per-scale encodings into one vector.
type MultiScaleEncoded struct {
	Vector         hdc.Vector
	Scales         []ScaleVector
	SequenceLength int
}

// ScaleSimilarity is the similarity of two encodings at one k.
type ScaleSimilarity struct {
	K          int
	Similarity float64
}

// MultiScaleEncoder encodes a sequence at several k-mer lengths and bundles
// the per-scale vectors, capturing local and longer-range motifs together.
type MultiScaleEncoder struct {
	encoders []*DNAEncoder
}

// NewMultiScaleEncoder builds one DNA encoder per scale.
func NewMultiScaleEncoder(seed hdc.Seed, scales ...int) (*MultiScaleEncoder, error) {
	if len(scales) == 0 {
		scales = DefaultScales
	}
	m := &MultiScaleEncoder{}
	for _, k := range scales {
		enc, err := NewDNAEncoder(seed, k)
		if err != nil {
			return nil, err
		}
		m.encoders = append(m.encoders, enc)
	}
	return m, nil
}

// Scales returns the configured k values in order.
func (m *MultiScaleEncoder) Scales() []int {
	out := make([]int, len(m.encoders))
	for i, e := range m.encoders {
		out[i] = e.K()
	}
	return out
}

// EncodeSequence encodes seq at every scale that fits it. Scales longer than
// the sequence are skipped; if none fit, ErrSequenceTooShort is returned.
func (m *MultiScaleEncoder) EncodeSequence(seq string) (MultiScaleEncoded, error) {
	out := MultiScaleEncoded{SequenceLength: len(seq)}
	vectors := make([]hdc.Vector, 0, len(m.encoders))

	for _, enc := range m.encoders {
		if len(seq) < enc.K() {
			continue
		}
		es, err := enc.EncodeSequence(seq)
		if stderrors.Is(err, ErrSequenceTooShort) {
			continue
		}
		if err != nil {
			return MultiScaleEncoded{}, err
		}
		out.Scales = append(out.Scales, ScaleVector{K: es.K, KmerCount: es.KmerCount, Vector: es.Vector})
		vectors = append(vectors, es.Vector)
	}

	if len(vectors) == 0 {
		minK := m.minScale()
		return MultiScaleEncoded{}, reject("multiscale", ErrSequenceTooShort,
			fmt.Sprintf("length %d < smallest scale %d", len(seq), minK)).
			WithContext("length", len(seq)).
			WithContext("k", minK)
	}

	out.Vector = hdc.Bundle(vectors...)
	metrics.VectorsGeneratedTotal.WithLabelValues("multiscale").Inc()
	return out, nil
}

// EncodeBatch encodes each sequence in order.
func (m *MultiScaleEncoder) EncodeBatch(seqs []string) ([]MultiScaleEncoded, []error) {
	out := make([]MultiScaleEncoded, len(seqs))
	errs := make([]error, len(seqs))
	for i, s := range seqs {
		out[i], errs[i] = m.EncodeSequence(s)
	}
	return out, errs
}

func (m *MultiScaleEncoder) minScale() int {
	ks := m.Scales()
	if len(ks) == 0 {
		return 0
	}
	sort.Ints(ks)
	return ks[0]
}

// Similarity is the Hamming similarity of the combined vectors.
func (e MultiScaleEncoded) Similarity(o MultiScaleEncoded) float64 {
	return hdc.HammingSimilarity(e.Vector, o.Vector)
}

// PerScaleSimilarity compares the scales both encodings share, in e's order.
func (e MultiScaleEncoded) PerScaleSimilarity(o MultiScaleEncoded) []ScaleSimilarity {
	byK := make(map[int]hdc.Vector, len(o.Scales))
	for _, s := range o.Scales {
		byK[s.K] = s.Vector
	}
	var out []ScaleSimilarity
	for _, s := range e.Scales {
		if v, ok := byK[s.K]; ok {
			out = append(out, ScaleSimilarity{K: s.K, Similarity: hdc.HammingSimilarity(s.Vector, v)})
		}
	}
	return out
}
