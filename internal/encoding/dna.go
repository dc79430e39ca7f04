// Package encoding turns genetic records (DNA sequences, SNP panels, VCF
// variants, HLA typings) into hypervectors.
package encoding

import (
	"fmt"
	"strings"
	"time"

	"github.com/23skdu/genovec/internal/codebook"
	gverr "github.com/23skdu/genovec/internal/errors"
	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

// DefaultKmerLength is the k used when none is configured.
const DefaultKmerLength = 6

// EncodedSequence is a DNA encoding plus its provenance.
type EncodedSequence struct {
	Vector         hdc.Vector
	KmerCount      int
	K              int
	SequenceLength int
}

// SequenceResult is one outcome of EncodeBatch.
type SequenceResult struct {
	Encoded EncodedSequence
	Err     error
}

// DNAEncoder performs positional k-mer encoding: the item vector of the
// k-mer starting at offset i is permuted by i, and all of them are bundled.
type DNAEncoder struct {
	seed hdc.Seed
	k    int
}

// NewDNAEncoder returns an encoder for k-mers of length k.
func NewDNAEncoder(seed hdc.Seed, k int) (*DNAEncoder, error) {
	if k < 1 {
		return nil, gverr.WrapConfigurationError(ErrInvalidKmerLength, "encoding.NewDNAEncoder",
			fmt.Sprintf("k=%d", k))
	}
	return &DNAEncoder{seed: seed, k: k}, nil
}

// K returns the k-mer length.
func (e *DNAEncoder) K() int { return e.k }

// EncodeSequence encodes seq. Lowercase input is accepted.
func (e *DNAEncoder) EncodeSequence(seq string) (EncodedSequence, error) {
	start := time.Now()
	seq, err := e.prepare("dna", seq)
	if err != nil {
		return EncodedSequence{}, err
	}

	acc := hdc.NewAccumulator()
	defer acc.Release()
	for i := 0; i+e.k <= len(seq); i++ {
		acc.Add(hdc.Random(e.seed, seq[i:i+e.k]).Permute(i))
	}

	return e.finish("dna", acc, len(seq), start)
}

// EncodeWithCodebook encodes seq using precomputed item vectors. k-mers the
// codebook does not hold are skipped and not counted.
func (e *DNAEncoder) EncodeWithCodebook(seq string, cb *codebook.Codebook) (EncodedSequence, error) {
	start := time.Now()
	seq, err := e.prepare("dna", seq)
	if err != nil {
		return EncodedSequence{}, err
	}

	acc := hdc.NewAccumulator()
	defer acc.Release()
	for i := 0; i+e.k <= len(seq); i++ {
		if v, ok := cb.Get(seq[i : i+e.k]); ok {
			acc.Add(v.Permute(i))
		}
	}

	return e.finish("dna", acc, len(seq), start)
}

// EncodeBatch encodes each sequence in order.
func (e *DNAEncoder) EncodeBatch(seqs []string) []SequenceResult {
	out := make([]SequenceResult, len(seqs))
	for i, s := range seqs {
		out[i].Encoded, out[i].Err = e.EncodeSequence(s)
	}
	return out
}

// CreateCodebook returns the shared codebook for this encoder's seed and k.
func (e *DNAEncoder) CreateCodebook() (*codebook.Codebook, error) {
	return codebook.Shared().Get(e.seed, e.k)
}

// prepare uppercases seq and validates length before alphabet.
func (e *DNAEncoder) prepare(encoder, seq string) (string, error) {
	seq = strings.ToUpper(seq)
	if len(seq) < e.k {
		return "", reject(encoder, ErrSequenceTooShort,
			fmt.Sprintf("length %d < k-mer length %d", len(seq), e.k)).
			WithContext("length", len(seq)).
			WithContext("k", e.k)
	}
	for i, c := range seq {
		switch c {
		case 'A', 'C', 'G', 'T':
		default:
			return "", reject(encoder, ErrInvalidNucleotide,
				fmt.Sprintf("%q at position %d", c, i)).
				WithContext("char", string(c)).
				WithContext("position", i)
		}
	}
	return seq, nil
}

func (e *DNAEncoder) finish(encoder string, acc *hdc.Accumulator, length int, start time.Time) (EncodedSequence, error) {
	if acc.Len() == 0 {
		return EncodedSequence{}, reject(encoder, ErrEmptyInput, "no k-mers encoded")
	}
	metrics.VectorsGeneratedTotal.WithLabelValues(encoder).Inc()
	metrics.EncodeDurationSeconds.WithLabelValues(encoder).Observe(time.Since(start).Seconds())
	return EncodedSequence{
		Vector:         acc.Vector(),
		KmerCount:      acc.Len(),
		K:              e.k,
		SequenceLength: length,
	}, nil
}

// GCContent returns the fraction of G and C in seq, case-insensitively.
// An empty sequence has GC content 0.
func GCContent(seq string) float64 {
	if len(seq) == 0 {
		return 0
	}
	gc := 0
	for i := 0; i < len(seq); i++ {
		switch seq[i] {
		case 'G', 'C', 'g', 'c':
			gc++
		}
	}
	return float64(gc) / float64(len(seq))
}
