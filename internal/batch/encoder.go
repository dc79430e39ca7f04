// Package batch encodes many records at once over a bounded worker pool and
// runs CPU similarity searches over the resulting vectors.
package batch

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/23skdu/genovec/internal/codebook"
	"github.com/23skdu/genovec/internal/encoding"
	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

// Encoder fans DNA and SNP encoding out over a worker pool. It holds no
// mutable state after construction and is safe for concurrent use.
type Encoder struct {
	seed   hdc.Seed
	cfg    Config
	dna    *encoding.DNAEncoder
	snp    *encoding.SNPEncoder
	cb     *codebook.Codebook
	logger zerolog.Logger
}

// NewEncoder validates cfg and prepares the per-record encoders.
//
//nolint:gocritic // Logger passed by value for constructor simplicity
func NewEncoder(seed hdc.Seed, cfg Config, logger zerolog.Logger) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dna, err := encoding.NewDNAEncoder(seed, cfg.KmerLength)
	if err != nil {
		return nil, err
	}
	e := &Encoder{
		seed:   seed,
		cfg:    cfg,
		dna:    dna,
		snp:    encoding.NewSNPEncoder(seed),
		logger: logger.With().Str("component", "batch").Str("seed", seed.String()).Logger(),
	}
	if cfg.UseCodebook {
		if e.cb, err = dna.CreateCodebook(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Encoder) Config() Config { return e.cfg }

func (e *Encoder) Seed() hdc.Seed { return e.seed }

// EncodeSequences encodes every sequence. Item failures never fail the
// batch; they are reported in FailedIndices and Errors. The only error
// returned is a context error.
func (e *Encoder) EncodeSequences(ctx context.Context, seqs []string) (*Result[encoding.EncodedSequence], error) {
	encode := e.dna.EncodeSequence
	if e.cb != nil {
		encode = func(s string) (encoding.EncodedSequence, error) {
			return e.dna.EncodeWithCodebook(s, e.cb)
		}
	}
	return run(ctx, e, "encode_sequences", len(seqs), func(i int) (encoding.EncodedSequence, error) {
		return encode(seqs[i])
	})
}

// EncodeSNPPanels encodes one vector per panel.
func (e *Encoder) EncodeSNPPanels(ctx context.Context, panels [][]encoding.SNP) (*Result[hdc.Vector], error) {
	return run(ctx, e, "encode_snp_panels", len(panels), func(i int) (hdc.Vector, error) {
		return e.snp.EncodePanel(panels[i])
	})
}

// EncodeToVectors returns only the vectors of the sequences that encoded,
// in input order.
func (e *Encoder) EncodeToVectors(ctx context.Context, seqs []string) ([]hdc.Vector, error) {
	res, err := e.EncodeSequences(ctx, seqs)
	if err != nil {
		return nil, err
	}
	out := make([]hdc.Vector, len(res.Items))
	for i, it := range res.Items {
		out[i] = it.Vector
	}
	return out, nil
}

// PairwiseSimilarity uses the encoder's worker count.
func (e *Encoder) PairwiseSimilarity(ctx context.Context, vectors []hdc.Vector) (*SimilarityMatrix, error) {
	return PairwiseSimilarity(ctx, vectors, e.cfg.workers())
}

// run executes fn for indices [0, n). Each call writes only its own slot.
func run[T any](ctx context.Context, e *Encoder, op string, n int, fn func(int) (T, error)) (*Result[T], error) {
	start := time.Now()
	slots := make([]slot[T], n)

	process := func(ctx context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			item, err := fn(i)
			slots[i] = slot[T]{item: item, err: err}
		}
		return nil
	}

	workers := e.cfg.workers()
	if workers <= 1 || n <= e.cfg.ChunkSize {
		if err := process(ctx, 0, n); err != nil {
			return nil, err
		}
	} else {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for lo := 0; lo < n; lo += e.cfg.ChunkSize {
			lo, hi := lo, min(lo+e.cfg.ChunkSize, n)
			g.Go(func() error {
				metrics.BatchWorkersActive.Inc()
				defer metrics.BatchWorkersActive.Dec()
				return process(gCtx, lo, hi)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	elapsed := time.Since(start)
	res := collect(slots, elapsed, e.cfg.ChunkSize)
	e.report(op, res.Errors, res.SuccessCount(), elapsed)
	return res, nil
}

func (e *Encoder) report(op string, failures map[int]error, succeeded int, elapsed time.Duration) {
	metrics.BatchDurationSeconds.WithLabelValues(op).Observe(elapsed.Seconds())
	metrics.BatchItemsTotal.WithLabelValues("success").Add(float64(succeeded))
	metrics.BatchItemsTotal.WithLabelValues("failed").Add(float64(len(failures)))

	for idx, err := range failures {
		if e.cfg.SkipInvalid {
			e.logger.Debug().Str("operation", op).Int("index", idx).Err(err).Msg("Skipped invalid item")
			continue
		}
		e.logger.Warn().Str("operation", op).Int("index", idx).Err(err).Msg("Batch item failed")
	}

	e.logger.Debug().
		Str("operation", op).
		Int("succeeded", succeeded).
		Int("failed", len(failures)).
		Dur("elapsed", elapsed).
		Msg("Batch complete")
}
