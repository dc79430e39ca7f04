package encoding

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/genovec/internal/hdc"
)

const testVCF = `##fileformat=VCFv4.2
##INFO=<ID=DP,Number=1,Type=Integer,Description="Total Depth">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	SAMPLE1
chr1	100	rs123	A	G	30	PASS	DP=10	GT	0/1
chr1	200	rs456	C	T	40	PASS	DP=20	GT	1/1
chr2	300	rs789	G	A	50	PASS	DP=15	GT	0/0
`

func parseTestVCF(t *testing.T) *VCF {
	t.Helper()
	vcf, err := ReadVCF(strings.NewReader(testVCF))
	require.NoError(t, err)
	return vcf
}

func TestReadVCF(t *testing.T) {
	vcf := parseTestVCF(t)

	require.Len(t, vcf.Variants, 3)
	assert.Len(t, vcf.Header, 2)
	assert.Equal(t, []string{"SAMPLE1"}, vcf.Samples)

	v := vcf.Variants[0]
	assert.Equal(t, "rs123", v.ID)
	assert.Equal(t, "chr1", v.Chrom)
	assert.Equal(t, uint64(100), v.Pos)
	assert.Equal(t, []string{"G"}, v.Alts)
	assert.True(t, v.HasQual)
	assert.Equal(t, 30.0, v.Qual)
	assert.Equal(t, "PASS", v.Filter)
	assert.Equal(t, Het, v.Genotype)
	assert.Equal(t, HomAlt, vcf.Variants[1].Genotype)
	assert.Equal(t, HomRef, vcf.Variants[2].Genotype)
	assert.Equal(t, "chr1:100:A:G:1", v.Key())
}

func TestReadVCF_SkipsMalformedLines(t *testing.T) {
	in := "chr1\t100\trs1\tA\n" + // too few columns
		"chr1\tabc\trs2\tA\tG\t.\tPASS\t.\n" + // bad position
		"chr1\t5\trs3\tA\tG,T\t.\tPASS\t.\n"
	vcf, err := ReadVCF(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, vcf.Variants, 1)

	v := vcf.Variants[0]
	assert.Equal(t, []string{"G", "T"}, v.Alts)
	assert.False(t, v.HasQual)
	assert.False(t, v.HasGenotype)
}

func TestParseGenotype(t *testing.T) {
	tests := []struct {
		in   string
		want Genotype
	}{
		{"0/0", HomRef},
		{"0|0:35", HomRef},
		{"0/1", Het},
		{"1|0", Het},
		{"1/1:12:99", HomAlt},
		{"./.", Missing},
		{".|.", Missing},
		{"1/2", Other},
		{"", Other},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseGenotype(tt.in), tt.in)
	}
	assert.Equal(t, "het", Het.String())
	assert.Equal(t, "missing", Missing.String())
}

func TestVCFEncoder_EncodeVariants(t *testing.T) {
	vcf := parseTestVCF(t)
	enc := NewVCFEncoder(hdc.SeedFromString("test-vcf"))

	v, err := enc.EncodeVariants(vcf.Variants)
	require.NoError(t, err)
	assert.Len(t, v.Bytes(), hdc.Bytes)
	assert.False(t, v.IsZero())

	again, err := enc.EncodeVariants(vcf.Variants)
	require.NoError(t, err)
	assert.True(t, v.Equal(again))
}

func TestVCFEncoder_MissingGenotypesAreSkipped(t *testing.T) {
	vcf := parseTestVCF(t)
	enc := NewVCFEncoder(testSeed)

	withMissing := append([]Variant(nil), vcf.Variants...)
	withMissing = append(withMissing, Variant{Chrom: "chr3", Pos: 1, Ref: "A", Alts: []string{"C"},
		Genotype: Missing, HasGenotype: true})
	withMissing = append(withMissing, Variant{Chrom: "chr3", Pos: 2, Ref: "A", Alts: []string{"C"}})

	a, err := enc.EncodeVariants(vcf.Variants)
	require.NoError(t, err)
	b, err := enc.EncodeVariants(withMissing)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	_, err = enc.EncodeVariants(withMissing[3:])
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestVCFEncoder_Positional(t *testing.T) {
	vcf := parseTestVCF(t)
	enc := NewVCFEncoder(testSeed)

	reversed := []Variant{vcf.Variants[2], vcf.Variants[1], vcf.Variants[0]}
	a, err := enc.EncodeVariantsPositional(vcf.Variants)
	require.NoError(t, err)
	b, err := enc.EncodeVariantsPositional(reversed)
	require.NoError(t, err)
	assert.False(t, a.Equal(b))

	// bag encoding ignores order
	c, _ := enc.EncodeVariants(vcf.Variants)
	d, _ := enc.EncodeVariants(reversed)
	assert.True(t, c.Equal(d))
}

func TestVCFEncoder_EncodePanel(t *testing.T) {
	vcf := parseTestVCF(t)
	enc := NewVCFEncoder(testSeed)

	one, err := enc.EncodePanel(vcf.Variants, []string{"rs456", "rs999"})
	require.NoError(t, err)
	assert.True(t, one.Equal(hdc.Random(testSeed, vcf.Variants[1].Key())))

	_, err = enc.EncodePanel(vcf.Variants, []string{"rs999"})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestOpenVCF_Gzip(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "sample.vcf")
	require.NoError(t, os.WriteFile(plain, []byte(testVCF), 0o600))

	gzPath := filepath.Join(dir, "sample.vcf.gz")
	fh, err := os.Create(gzPath)
	require.NoError(t, err)
	zw := gzip.NewWriter(fh)
	_, err = zw.Write([]byte(testVCF))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, fh.Close())

	a, err := OpenVCF(plain)
	require.NoError(t, err)
	b, err := OpenVCF(gzPath)
	require.NoError(t, err)
	assert.Equal(t, a.Variants, b.Variants)
	assert.Len(t, b.Variants, 3)

	_, err = OpenVCF(filepath.Join(dir, "missing.vcf"))
	assert.Error(t, err)
}
