package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/23skdu/genovec/internal/logging"
)

const usage = `genovec encodes genetic data into hypervectors.

Usage:
  genovec dna [flags] <sequence|->
  genovec vcf [flags] <file.vcf[.gz]>
  genovec snp [flags] <rsid:allele,...>
  genovec hla [flags] <allele>...
  genovec batch [flags] <sequences-file|->
  genovec query [flags] -db <corpus-file> <queries-file|->
`

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app is one CLI invocation.
type app struct {
	cfg    Config
	stdin  io.Reader
	stdout io.Writer
	logger zerolog.Logger

	// subcommand-only flags
	chrom          string
	passOnly       bool
	dbPath         string
	useANN         bool
	withConfidence bool
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := LoadConfig(".env")
	if err != nil {
		fmt.Fprintf(stderr, "genovec: config: %v\n", err)
		return 1
	}

	cmd, rest := args[0], args[1:]
	a := &app{stdin: stdin, stdout: stdout}
	fs := a.flags(cmd, &cfg, stderr)
	if err := fs.Parse(rest); err != nil {
		return 2
	}
	cfg.Batch = cfg.Batch.WithKmerLength(cfg.KmerLength)
	if err := ValidateConfig(&cfg); err != nil {
		fmt.Fprintf(stderr, "genovec: %v\n", err)
		return 1
	}
	a.cfg = cfg

	a.logger, err = logging.NewLogger(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel, Output: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "genovec: %v\n", err)
		return 1
	}

	var handler func(context.Context, []string) error
	switch cmd {
	case "dna":
		handler = a.runDNA
	case "vcf":
		handler = a.runVCF
	case "snp":
		handler = a.runSNP
	case "hla":
		handler = a.runHLA
	case "batch":
		handler = a.runBatch
	case "query":
		handler = a.runQuery
	default:
		fmt.Fprintf(stderr, "genovec: unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if err := handler(ctx, fs.Args()); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "genovec %s: %v\n\n%s", cmd, err, usage)
			return 2
		}
		a.logger.Error().Err(err).Str("command", cmd).Msg("Command failed")
		return 1
	}
	return 0
}

func (a *app) flags(cmd string, cfg *Config, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.Seed, "seed", cfg.Seed, "encoding seed: 64 hex characters or any string")
	fs.IntVar(&cfg.KmerLength, "k", cfg.KmerLength, "k-mer length")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "output format: json, hex, base64")
	fs.StringVar(&cfg.Output, "out", cfg.Output, "output file; .arrow or .parquet exports batch results")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	switch cmd {
	case "dna", "batch":
		fs.Float64Var(&cfg.DPEpsilon, "dp-epsilon", cfg.DPEpsilon, "release vectors under epsilon-DP randomized response (0 disables)")
	}
	switch cmd {
	case "vcf":
		fs.StringVar(&a.chrom, "chrom", "", "only encode variants on this chromosome")
		fs.BoolVar(&a.passOnly, "pass-only", false, "only encode PASS variants")
	case "hla":
		fs.StringVar(&cfg.HLAMode, "hla-mode", cfg.HLAMode, "HLA encoding: basic, locus, allele")
	case "batch":
		fs.BoolVar(&cfg.Batch.Parallel, "parallel", cfg.Batch.Parallel, "encode in parallel")
		fs.BoolVar(&cfg.Batch.SkipInvalid, "skip-invalid", cfg.Batch.SkipInvalid, "do not log invalid sequences")
		fs.BoolVar(&cfg.Batch.UseCodebook, "codebook", cfg.Batch.UseCodebook, "use a precomputed k-mer codebook")
	case "query":
		fs.StringVar(&a.dbPath, "db", "", "corpus sequences file")
		fs.IntVar(&cfg.TopK, "top-k", cfg.TopK, "matches per query")
		fs.Float64Var(&cfg.Threshold, "threshold", cfg.Threshold, "minimum similarity")
		fs.BoolVar(&cfg.UseGPU, "gpu", cfg.UseGPU, "score on the GPU engine")
		fs.BoolVar(&a.useANN, "ann", false, "search an approximate HNSW index")
		fs.BoolVar(&a.withConfidence, "with-confidence", false, "report a confidence band per match")
	}
	return fs
}
