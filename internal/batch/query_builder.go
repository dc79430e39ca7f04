package batch

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/23skdu/genovec/internal/hdc"
)

// QueryBuilder collects query and corpus sequences and runs one batch
// search over them.
type QueryBuilder struct {
	seed    hdc.Seed
	cfg     Config
	logger  zerolog.Logger
	queries []string
	corpus  []string
}

// NewQueryBuilder starts from DefaultConfig and a no-op logger.
func NewQueryBuilder(seed hdc.Seed) *QueryBuilder {
	return &QueryBuilder{seed: seed, cfg: DefaultConfig(), logger: zerolog.Nop()}
}

func (b *QueryBuilder) WithConfig(cfg Config) *QueryBuilder {
	b.cfg = cfg
	return b
}

//nolint:gocritic // Logger passed by value for builder simplicity
func (b *QueryBuilder) WithLogger(logger zerolog.Logger) *QueryBuilder {
	b.logger = logger
	return b
}

func (b *QueryBuilder) AddQueries(seqs ...string) *QueryBuilder {
	b.queries = append(b.queries, seqs...)
	return b
}

func (b *QueryBuilder) AddCorpus(seqs ...string) *QueryBuilder {
	b.corpus = append(b.corpus, seqs...)
	return b
}

// QueryMatches is the ranking for one query. QueryIndex is the query's
// position as added.
type QueryMatches struct {
	QueryIndex int
	Matches    []Match
}

// FindTopK returns, for each query that encodes, its k best corpus
// matches. Queries and corpus sequences that fail to encode are skipped;
// QueryIndex and Match.Index always refer to positions as added.
func (b *QueryBuilder) FindTopK(ctx context.Context, k int) ([]QueryMatches, error) {
	queries, corpus, err := b.encode(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]QueryMatches, len(queries.vectors))
	for i, q := range queries.vectors {
		matches := TopKSimilar(q, corpus.vectors, k)
		for m := range matches {
			matches[m].Index = corpus.indices[matches[m].Index]
		}
		out[i] = QueryMatches{QueryIndex: queries.indices[i], Matches: matches}
	}
	return out, nil
}

// ComputeSimilarityMatrix returns the queries x corpus matrix over the
// sequences that encoded, with the input position of each row and column.
func (b *QueryBuilder) ComputeSimilarityMatrix(ctx context.Context) (m *SimilarityMatrix, queryIdx, corpusIdx []int, err error) {
	queries, corpus, err := b.encode(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	m, err = CrossSimilarity(ctx, queries.vectors, corpus.vectors, b.cfg.workers())
	if err != nil {
		return nil, nil, nil, err
	}
	return m, queries.indices, corpus.indices, nil
}

// encoded holds the vectors that encoded and their input positions.
type encoded struct {
	vectors []hdc.Vector
	indices []int
}

func (b *QueryBuilder) encode(ctx context.Context) (queries, corpus encoded, err error) {
	enc, err := NewEncoder(b.seed, b.cfg, b.logger)
	if err != nil {
		return encoded{}, encoded{}, err
	}
	if queries, err = encodeAll(ctx, enc, b.queries); err != nil {
		return encoded{}, encoded{}, err
	}
	if corpus, err = encodeAll(ctx, enc, b.corpus); err != nil {
		return encoded{}, encoded{}, err
	}
	return queries, corpus, nil
}

func encodeAll(ctx context.Context, enc *Encoder, seqs []string) (encoded, error) {
	res, err := enc.EncodeSequences(ctx, seqs)
	if err != nil {
		return encoded{}, err
	}
	out := encoded{vectors: make([]hdc.Vector, len(res.Items)), indices: res.ItemIndices}
	for i, it := range res.Items {
		out.vectors[i] = it.Vector
	}
	return out, nil
}
