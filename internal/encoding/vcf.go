package encoding

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

// Genotype is the called genotype of the first sample column.
type Genotype uint8

// Genotype codes as they appear in variant item keys.
const (
	HomRef  Genotype = 0
	Het     Genotype = 1
	HomAlt  Genotype = 2
	Other   Genotype = 3
	Missing Genotype = 255
)

// ParseGenotype reads the GT subfield of a sample column ("0/1:35:...").
func ParseGenotype(field string) Genotype {
	gt, _, _ := strings.Cut(field, ":")
	switch gt {
	case "0/0", "0|0":
		return HomRef
	case "0/1", "1/0", "0|1", "1|0":
		return Het
	case "1/1", "1|1":
		return HomAlt
	case "./.", ".|.":
		return Missing
	default:
		return Other
	}
}

func (g Genotype) String() string {
	switch g {
	case HomRef:
		return "hom_ref"
	case Het:
		return "het"
	case HomAlt:
		return "hom_alt"
	case Missing:
		return "missing"
	default:
		return "other"
	}
}

// Variant is one VCF data line.
type Variant struct {
	Chrom       string
	Pos         uint64
	ID          string
	Ref         string
	Alts        []string
	Qual        float64
	HasQual     bool
	Filter      string
	Genotype    Genotype
	HasGenotype bool
}

// VCF is a parsed variant file for a single sample.
type VCF struct {
	Header   []string
	Samples  []string
	Variants []Variant
}

const maxVCFLine = 16 * 1024 * 1024

// ReadVCF parses r. Meta lines ("##") are kept in Header; the "#CHROM" line
// supplies sample names. Data lines with fewer than 8 columns or an
// unparsable position are skipped.
func ReadVCF(r io.Reader) (*VCF, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxVCFLine)

	out := &VCF{}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "##"):
			out.Header = append(out.Header, line)
		case strings.HasPrefix(line, "#CHROM"):
			if cols := strings.Split(line, "\t"); len(cols) > 9 {
				out.Samples = append([]string(nil), cols[9:]...)
			}
		case strings.HasPrefix(line, "#"):
			continue
		default:
			if v, ok := parseVariantLine(line); ok {
				out.Variants = append(out.Variants, v)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vcf: %w", err)
	}
	return out, nil
}

// OpenVCF reads a VCF from path. "-" means stdin; gzip input is detected by
// its magic bytes.
func OpenVCF(path string) (*VCF, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		fh, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer fh.Close()
		r = fh
	}

	br := bufio.NewReader(r)
	if sig, err := br.Peek(2); err == nil && sig[0] == 0x1f && sig[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open vcf %s: %w", path, err)
		}
		defer zr.Close()
		return ReadVCF(zr)
	}
	return ReadVCF(br)
}

func parseVariantLine(line string) (Variant, bool) {
	cols := strings.Split(line, "\t")
	if len(cols) < 8 {
		return Variant{}, false
	}
	pos, err := strconv.ParseUint(cols[1], 10, 64)
	if err != nil {
		return Variant{}, false
	}
	v := Variant{
		Chrom:  cols[0],
		Pos:    pos,
		ID:     cols[2],
		Ref:    cols[3],
		Alts:   strings.Split(cols[4], ","),
		Filter: cols[6],
	}
	if q, err := strconv.ParseFloat(cols[5], 64); err == nil {
		v.Qual, v.HasQual = q, true
	}
	if len(cols) > 9 {
		v.Genotype, v.HasGenotype = ParseGenotype(cols[9]), true
	}
	return v, true
}

// called reports whether v carries a usable genotype.
func (v Variant) called() bool {
	return v.HasGenotype && v.Genotype != Missing
}

// Key identifies the variant and genotype: "chrom:pos:ref:alts:code".
func (v Variant) Key() string {
	return fmt.Sprintf("%s:%d:%s:%s:%d", v.Chrom, v.Pos, v.Ref, strings.Join(v.Alts, ","), v.Genotype)
}

// positionFreeKey omits the coordinate; order is carried by permutation instead.
func (v Variant) positionFreeKey() string {
	return fmt.Sprintf("%s:%s:%s:%d", v.Chrom, v.Ref, strings.Join(v.Alts, ","), v.Genotype)
}

// VCFEncoder bundles one item vector per called variant.
type VCFEncoder struct {
	seed hdc.Seed
}

// NewVCFEncoder returns a variant-set encoder.
func NewVCFEncoder(seed hdc.Seed) *VCFEncoder {
	return &VCFEncoder{seed: seed}
}

// EncodeVariants skips uncalled variants; if nothing remains the result is ErrEmptyInput.
func (e *VCFEncoder) EncodeVariants(variants []Variant) (hdc.Vector, error) {
	acc := hdc.NewAccumulator()
	defer acc.Release()
	for _, v := range variants {
		if v.called() {
			acc.Add(hdc.Random(e.seed, v.Key()))
		}
	}
	return e.finish(acc, len(variants))
}

// EncodeVariantsPositional permutes each variant vector by its index mod 1000,
// so the same variant set in a different order encodes differently.
func (e *VCFEncoder) EncodeVariantsPositional(variants []Variant) (hdc.Vector, error) {
	acc := hdc.NewAccumulator()
	defer acc.Release()
	for i, v := range variants {
		if v.called() {
			acc.Add(hdc.Random(e.seed, v.positionFreeKey()).Permute(i % 1000))
		}
	}
	return e.finish(acc, len(variants))
}

// EncodePanel encodes only variants whose ID is in rsids.
func (e *VCFEncoder) EncodePanel(variants []Variant, rsids []string) (hdc.Vector, error) {
	want := make(map[string]struct{}, len(rsids))
	for _, id := range rsids {
		want[id] = struct{}{}
	}
	filtered := make([]Variant, 0, len(rsids))
	for _, v := range variants {
		if _, ok := want[v.ID]; ok {
			filtered = append(filtered, v)
		}
	}
	if len(filtered) == 0 {
		return hdc.Vector{}, reject("vcf", ErrEmptyInput, "no variant matches the panel").
			WithContext("panel_size", len(rsids))
	}
	return e.EncodeVariants(filtered)
}

func (e *VCFEncoder) finish(acc *hdc.Accumulator, total int) (hdc.Vector, error) {
	if acc.Len() == 0 {
		return hdc.Vector{}, reject("vcf", ErrEmptyInput, "no called variants").
			WithContext("variants", total)
	}
	metrics.VectorsGeneratedTotal.WithLabelValues("vcf").Inc()
	return acc.Vector(), nil
}
