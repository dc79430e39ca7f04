package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/genovec/internal/codebook"
	gverr "github.com/23skdu/genovec/internal/errors"
	"github.com/23skdu/genovec/internal/hdc"
)

var testSeed = hdc.SeedFromString("encoding-test")

func newDNA(t *testing.T, k int) *DNAEncoder {
	t.Helper()
	enc, err := NewDNAEncoder(testSeed, k)
	require.NoError(t, err)
	return enc
}

func TestDNAEncoder_KmerCount(t *testing.T) {
	enc := newDNA(t, 6)
	es, err := enc.EncodeSequence("ACGTACGTACGT")
	require.NoError(t, err)
	assert.Equal(t, 7, es.KmerCount)
	assert.Equal(t, 6, es.K)
	assert.Equal(t, 12, es.SequenceLength)
}

func TestDNAEncoder_Deterministic(t *testing.T) {
	enc := newDNA(t, 6)
	a, err := enc.EncodeSequence("ACGTACGTACGT")
	require.NoError(t, err)
	b, err := enc.EncodeSequence("acgtacgtacgt")
	require.NoError(t, err)

	assert.True(t, a.Vector.Equal(b.Vector))
	assert.Equal(t, a.KmerCount, b.KmerCount)
	assert.Greater(t, a.Vector.Similarity(b.Vector), 0.99)
}

func TestDNAEncoder_UnrelatedSequenceScoresLower(t *testing.T) {
	enc := newDNA(t, 6)
	a, _ := enc.EncodeSequence("ACGTACGTACGT")
	b, err := enc.EncodeSequence("TGCATGCATGCA")
	require.NoError(t, err)

	assert.Less(t, a.Vector.Similarity(b.Vector), a.Vector.Similarity(a.Vector))
}

func TestDNAEncoder_SingleMutationLowersSimilarity(t *testing.T) {
	enc := newDNA(t, 4)
	orig := "ACGTTGCAACGGTACCATGGCATTAGCCGATAGCTAGCTTACG"
	mut := []byte(orig)
	mut[20] = 'T'
	if orig[20] == 'T' {
		mut[20] = 'A'
	}

	a, err := enc.EncodeSequence(orig)
	require.NoError(t, err)
	b, err := enc.EncodeSequence(string(mut))
	require.NoError(t, err)

	self := a.Vector.Similarity(a.Vector)
	mutated := a.Vector.Similarity(b.Vector)
	assert.Less(t, mutated, self)
	assert.Greater(t, mutated, 0.55, "a point mutation should leave most k-mers intact")
}

func TestDNAEncoder_PositionMatters(t *testing.T) {
	enc := newDNA(t, 3)
	a, _ := enc.EncodeSequence("AAACCC")
	b, _ := enc.EncodeSequence("CCCAAA")
	assert.False(t, a.Vector.Equal(b.Vector))
}

func TestDNAEncoder_Errors(t *testing.T) {
	enc := newDNA(t, 6)

	_, err := enc.EncodeSequence("ACGT")
	assert.ErrorIs(t, err, ErrSequenceTooShort)
	assert.True(t, gverr.IsValidation(err))

	_, err = enc.EncodeSequence("ACGTNACGT")
	assert.ErrorIs(t, err, ErrInvalidNucleotide)
	var se *gverr.StructuredError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "N", se.Context["char"])
	assert.Equal(t, 4, se.Context["position"])

	// length is checked before the alphabet
	_, err = enc.EncodeSequence("NN")
	assert.ErrorIs(t, err, ErrSequenceTooShort)

	_, err = NewDNAEncoder(testSeed, 0)
	assert.ErrorIs(t, err, ErrInvalidKmerLength)
}

func TestDNAEncoder_CodebookAgreesWithDirect(t *testing.T) {
	enc := newDNA(t, 4)
	cb, err := enc.CreateCodebook()
	require.NoError(t, err)

	seq := "GATTACAGATTACACCGGTT"
	direct, err := enc.EncodeSequence(seq)
	require.NoError(t, err)
	viaCB, err := enc.EncodeWithCodebook(seq, cb)
	require.NoError(t, err)

	assert.True(t, direct.Vector.Equal(viaCB.Vector))
	assert.Equal(t, direct.KmerCount, viaCB.KmerCount)
}

func TestDNAEncoder_CodebookMismatchIsEmpty(t *testing.T) {
	enc := newDNA(t, 4)
	cb, err := codebook.New(testSeed, 3)
	require.NoError(t, err)

	_, err = enc.EncodeWithCodebook("ACGTACGT", cb)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestDNAEncoder_EncodeBatch(t *testing.T) {
	enc := newDNA(t, 3)
	res := enc.EncodeBatch([]string{"ACGTAC", "AC", "ACGXAC"})
	require.Len(t, res, 3)
	assert.NoError(t, res[0].Err)
	assert.Equal(t, 4, res[0].Encoded.KmerCount)
	assert.ErrorIs(t, res[1].Err, ErrSequenceTooShort)
	assert.ErrorIs(t, res[2].Err, ErrInvalidNucleotide)
}

func TestGCContent(t *testing.T) {
	assert.Equal(t, 0.5, GCContent("ACGT"))
	assert.Equal(t, 1.0, GCContent("gcGC"))
	assert.Equal(t, 0.0, GCContent("ATAT"))
	assert.Equal(t, 0.0, GCContent(""))
}

func TestMultiScaleEncoder(t *testing.T) {
	m, err := NewMultiScaleEncoder(testSeed)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 6, 8}, m.Scales())

	es, err := m.EncodeSequence("ACGTACG")
	require.NoError(t, err)
	require.Len(t, es.Scales, 2, "k=8 is longer than the sequence")
	assert.Equal(t, 4, es.Scales[0].K)
	assert.Equal(t, 4, es.Scales[0].KmerCount)
	assert.Equal(t, 6, es.Scales[1].K)

	full, err := m.EncodeSequence("ACGTACGTACGTACGTACGT")
	require.NoError(t, err)
	assert.Len(t, full.Scales, 3)
	assert.Equal(t, 1.0, full.Similarity(full))

	per := es.PerScaleSimilarity(full)
	require.Len(t, per, 2)
	assert.Equal(t, 4, per[0].K)

	_, err = m.EncodeSequence("ACG")
	assert.ErrorIs(t, err, ErrSequenceTooShort)

	_, err = m.EncodeSequence("ACGTNNNN")
	assert.ErrorIs(t, err, ErrInvalidNucleotide)
}

func TestSNPEncoder(t *testing.T) {
	enc := NewSNPEncoder(testSeed)

	v, err := enc.EncodePanel([]SNP{{"rs1234", "A"}, {"rs5678", "G"}})
	require.NoError(t, err)
	assert.False(t, v.IsZero())

	same, _ := enc.EncodePanel([]SNP{{"rs1234", "A"}, {"rs5678", "G"}})
	assert.True(t, v.Equal(same))

	_, err = enc.EncodePanel(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Equal(t, "rs1:T", SNP{"rs1", "T"}.Key())
}

func TestSNPEncoder_SharedMarkersRaiseSimilarity(t *testing.T) {
	enc := NewSNPEncoder(testSeed)
	base := []SNP{{"rs1", "A"}, {"rs2", "C"}, {"rs3", "G"}, {"rs4", "T"}, {"rs5", "A"}}
	near := append(append([]SNP(nil), base[:4]...), SNP{"rs5", "G"})
	far := []SNP{{"rs6", "A"}, {"rs7", "C"}, {"rs8", "G"}, {"rs9", "T"}, {"rs10", "A"}}

	vb, _ := enc.EncodePanel(base)
	vn, _ := enc.EncodePanel(near)
	vf, _ := enc.EncodePanel(far)
	assert.Greater(t, vb.Similarity(vn), vb.Similarity(vf))
}
