package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/23skdu/genovec/internal/batch"
	"github.com/23skdu/genovec/internal/encoding"
	"github.com/23skdu/genovec/internal/export"
	"github.com/23skdu/genovec/internal/gpu"
	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/privacy"
	"github.com/23skdu/genovec/internal/similarity"
)

func (a *app) seed() hdc.Seed { return ParseSeed(a.cfg.Seed) }

// release applies randomized response when -dp-epsilon is set. The noise is
// keyed by the input sequence, so rerunning on the same input releases the
// same vector.
func (a *app) release(v hdc.Vector, input string) (hdc.Vector, error) {
	if a.cfg.DPEpsilon == 0 {
		return v, nil
	}
	p, err := privacy.Pure(a.cfg.DPEpsilon)
	if err != nil {
		return hdc.Vector{}, err
	}
	n, err := privacy.Randomize(v, p, a.seed(), input)
	if err != nil {
		return hdc.Vector{}, err
	}
	return n.Vector, nil
}

func (a *app) withPrivacy(md map[string]any) map[string]any {
	if a.cfg.DPEpsilon > 0 {
		md["dp_epsilon"] = a.cfg.DPEpsilon
	}
	return md
}

func (a *app) runDNA(_ context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: dna takes one sequence", errUsage)
	}
	seq := args[0]
	if seq == "-" {
		b, err := io.ReadAll(a.stdin)
		if err != nil {
			return err
		}
		seq = strings.TrimSpace(string(b))
	}

	enc, err := encoding.NewDNAEncoder(a.seed(), a.cfg.KmerLength)
	if err != nil {
		return err
	}
	out, err := enc.EncodeSequence(seq)
	if err != nil {
		return err
	}
	vec, err := a.release(out.Vector, seq)
	if err != nil {
		return err
	}
	return a.emit(encodingResult{
		EncodingType: "dna_sequence",
		KmerLength:   out.K,
		KmerCount:    out.KmerCount,
		Metadata: a.withPrivacy(map[string]any{
			"sequence_length": out.SequenceLength,
			"gc_content":      encoding.GCContent(seq),
		}),
	}, vec)
}

func (a *app) runVCF(_ context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: vcf takes one file", errUsage)
	}
	vcf, err := encoding.OpenVCF(args[0])
	if err != nil {
		return err
	}

	variants := make([]encoding.Variant, 0, len(vcf.Variants))
	for _, v := range vcf.Variants {
		if a.chrom != "" && v.Chrom != a.chrom {
			continue
		}
		if a.passOnly && v.Filter != "PASS" {
			continue
		}
		variants = append(variants, v)
	}

	vec, err := encoding.NewVCFEncoder(a.seed()).EncodeVariants(variants)
	if err != nil {
		return err
	}
	return a.emit(encodingResult{
		EncodingType: "vcf_variants",
		Metadata: map[string]any{
			"variant_count": len(variants),
			"samples":       vcf.Samples,
			"file":          args[0],
		},
	}, vec)
}

func (a *app) runSNP(_ context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: snp takes one comma-separated panel", errUsage)
	}
	panel, err := parsePanel(args[0])
	if err != nil {
		return err
	}
	vec, err := encoding.NewSNPEncoder(a.seed()).EncodePanel(panel)
	if err != nil {
		return err
	}
	keys := make([]string, len(panel))
	for i, s := range panel {
		keys[i] = s.Key()
	}
	return a.emit(encodingResult{
		EncodingType: "snp_panel",
		Metadata:     map[string]any{"snp_count": len(panel), "snps": keys},
	}, vec)
}

// parsePanel reads "rs123:A,rs456:G".
func parsePanel(s string) ([]encoding.SNP, error) {
	var panel []encoding.SNP
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, allele, ok := strings.Cut(item, ":")
		if !ok || id == "" || allele == "" {
			return nil, fmt.Errorf("%w: invalid SNP %q, expected rsID:allele", errUsage, item)
		}
		panel = append(panel, encoding.SNP{MarkerID: id, Allele: allele})
	}
	return panel, nil
}

func (a *app) runHLA(_ context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: hla takes alleles", errUsage)
	}
	seed := a.seed()
	res := encodingResult{
		EncodingType: "hla_typing",
		Metadata:     map[string]any{"allele_count": len(args), "alleles": args, "encoding_mode": a.cfg.HLAMode},
	}

	var vec hdc.Vector
	switch a.cfg.HLAMode {
	case "locus":
		enc, err := encoding.NewLocusWeightedHLAEncoder(seed).EncodeTyping(args)
		if err != nil {
			return err
		}
		vec = enc.Combined()
	case "allele":
		enc, err := encoding.NewAlleleHLAEncoder(seed).EncodeTyping(args)
		if err != nil {
			return err
		}
		vec = enc.Combined()
	default:
		var err error
		if vec, err = encoding.NewHLAEncoder(seed).EncodeTyping(args); err != nil {
			return err
		}
	}
	return a.emit(res, vec)
}

func (a *app) runBatch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: batch takes one file", errUsage)
	}
	records, err := a.readSequences(args[0])
	if err != nil {
		return err
	}

	enc, err := batch.NewEncoder(a.seed(), a.cfg.Batch, a.logger)
	if err != nil {
		return err
	}
	res, err := enc.EncodeSequences(ctx, sequenceStrings(records))
	if err != nil {
		return err
	}

	out := batchResult{
		TotalSequences: res.TotalCount(),
		Successful:     res.SuccessCount(),
		Failed:         res.FailedCount,
		Throughput:     res.Stats.Throughput,
		Errors:         []string{},
	}
	rows := make([]export.Row, len(res.Items))
	for i, item := range res.Items {
		idx := res.ItemIndices[i]
		vec, err := a.release(item.Vector, records[idx].Seq)
		if err != nil {
			return err
		}
		rows[i] = export.Row{
			ID:        records[idx].ID,
			Vector:    vec,
			KmerCount: int32(item.KmerCount),
			Length:    int32(item.SequenceLength),
		}
		r := encodingResult{
			EncodingType: "dna_sequence",
			KmerLength:   item.K,
			KmerCount:    item.KmerCount,
			Metadata:     a.withPrivacy(map[string]any{"id": records[idx].ID, "index": idx, "sequence_length": item.SequenceLength}),
		}
		a.fillVector(&r, vec)
		out.Results = append(out.Results, r)
	}
	for _, idx := range res.FailedIndices {
		out.Errors = append(out.Errors, fmt.Sprintf("sequence %d (%s): %v", idx, records[idx].ID, res.Errors[idx]))
	}

	if isExportPath(a.cfg.Output) {
		if err := export.WriteFile(a.cfg.Output, rows); err != nil {
			return err
		}
		a.logger.Info().Str("path", a.cfg.Output).Int("rows", len(rows)).Msg("Exported batch")
		out.Results = nil
	}
	return a.write(out)
}

func (a *app) runQuery(ctx context.Context, args []string) error {
	if len(args) != 1 || a.dbPath == "" {
		return fmt.Errorf("%w: query takes a queries file and -db", errUsage)
	}
	queries, err := a.readSequences(args[0])
	if err != nil {
		return err
	}
	corpus, err := a.readSequences(a.dbPath)
	if err != nil {
		return err
	}

	enc, err := batch.NewEncoder(a.seed(), a.cfg.Batch, a.logger)
	if err != nil {
		return err
	}
	qRes, err := enc.EncodeSequences(ctx, sequenceStrings(queries))
	if err != nil {
		return err
	}
	cRes, err := enc.EncodeSequences(ctx, sequenceStrings(corpus))
	if err != nil {
		return err
	}
	qVecs, cVecs := vectorsOf(qRes), vectorsOf(cRes)

	var ranked [][]batch.Match
	switch {
	case a.cfg.UseGPU:
		ranked, err = a.rankGPU(ctx, qVecs, cVecs)
	case a.useANN:
		ranked = rankANN(qVecs, cVecs, a.cfg.TopK)
	default:
		ranked = make([][]batch.Match, len(qVecs))
		for i, q := range qVecs {
			ranked[i] = batch.TopKSimilar(q, cVecs, a.cfg.TopK)
		}
	}
	if err != nil {
		return err
	}

	out := make([]queryResult, len(ranked))
	for i, matches := range ranked {
		qi := qRes.ItemIndices[i]
		out[i] = queryResult{QueryID: queries[qi].ID, QueryIndex: qi, Matches: []matchResult{}}
		var scored []similarity.Scored
		if a.withConfidence {
			scored = similarity.ScoreMatches(matches)
		}
		for j, m := range matches {
			if m.Similarity < a.cfg.Threshold {
				continue
			}
			ci := cRes.ItemIndices[m.Index]
			mr := matchResult{ID: corpus[ci].ID, Index: ci, Similarity: m.Similarity}
			if scored != nil {
				mr.Confidence = newConfidenceResult(scored[j])
			}
			out[i].Matches = append(out[i].Matches, mr)
		}
	}
	return a.write(out)
}

// rankGPU scores on a hardware adapter, falling back to the CPU path when
// none exists.
func (a *app) rankGPU(ctx context.Context, queries, corpus []hdc.Vector) ([][]batch.Match, error) {
	engine, err := gpu.NewEngine(ctx, gpu.Options{Logger: a.logger})
	if gpu.IsUnavailable(err) {
		a.logger.Warn().Err(err).Msg("No GPU adapter, using CPU")
		out := make([][]batch.Match, len(queries))
		for i, q := range queries {
			out[i] = batch.TopKSimilar(q, corpus, a.cfg.TopK)
		}
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = engine.Close() }()
	a.logger.Info().Str("device", engine.Info()).Msg("Using GPU engine")

	top, err := engine.TopKSimilarity(ctx, queries, corpus, a.cfg.TopK)
	if err != nil {
		return nil, err
	}
	out := make([][]batch.Match, len(top))
	for i, row := range top {
		out[i] = make([]batch.Match, len(row))
		for j, m := range row {
			out[i][j] = batch.Match{Index: m.Index, Similarity: float64(m.Similarity)}
		}
	}
	return out, nil
}

func rankANN(queries, corpus []hdc.Vector, k int) [][]batch.Match {
	idx := similarity.NewANNIndex(similarity.DefaultANNConfig())
	for i, v := range corpus {
		idx.Add(fmt.Sprint(i), v)
	}
	out := make([][]batch.Match, len(queries))
	for i, q := range queries {
		for _, r := range idx.Search(q, k) {
			out[i] = append(out[i], batch.Match{Index: r.Position, Similarity: r.Similarity})
		}
	}
	return out
}

type sequenceRecord struct {
	ID  string
	Seq string
}

// readSequences reads one sequence per line or FASTA. FASTA records may span
// lines; plain lines are named seq_<n>.
func (a *app) readSequences(path string) ([]sequenceRecord, error) {
	var r io.Reader = a.stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var out []sequenceRecord
	current := -1
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			current = -1
		case strings.HasPrefix(line, ">"):
			id := strings.Fields(line[1:] + " ")
			name := fmt.Sprintf("seq_%d", len(out))
			if len(id) > 0 {
				name = id[0]
			}
			out = append(out, sequenceRecord{ID: name})
			current = len(out) - 1
		case current >= 0:
			out[current].Seq += line
		default:
			out = append(out, sequenceRecord{ID: fmt.Sprintf("seq_%d", len(out)), Seq: line})
		}
	}
	return out, sc.Err()
}

func sequenceStrings(records []sequenceRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Seq
	}
	return out
}

func vectorsOf(res *batch.Result[encoding.EncodedSequence]) []hdc.Vector {
	out := make([]hdc.Vector, len(res.Items))
	for i, item := range res.Items {
		out[i] = item.Vector
	}
	return out
}
