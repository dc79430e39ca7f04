package batch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

// SimilarityMatrix is a dense rows x cols matrix of Hamming similarities.
type SimilarityMatrix struct {
	rows, cols int
	data       []float64
}

// Pair is one off-diagonal entry of a matrix.
type Pair struct {
	I, J       int
	Similarity float64
}

func newMatrix(rows, cols int) *SimilarityMatrix {
	return &SimilarityMatrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// Size is the number of rows.
func (m *SimilarityMatrix) Size() int { return m.rows }

func (m *SimilarityMatrix) Rows() int { return m.rows }

func (m *SimilarityMatrix) Cols() int { return m.cols }

func (m *SimilarityMatrix) Get(i, j int) float64 { return m.data[i*m.cols+j] }

// Row returns row i. The slice aliases the matrix.
func (m *SimilarityMatrix) Row(i int) []float64 { return m.data[i*m.cols : (i+1)*m.cols] }

func (m *SimilarityMatrix) set(i, j int, v float64) { m.data[i*m.cols+j] = v }

// MostSimilarPair returns the largest entry above the diagonal. Ties keep
// the first pair in row-major order. ok is false when no entry exceeds 0.
func (m *SimilarityMatrix) MostSimilarPair() (best Pair, ok bool) {
	for i := 0; i < m.rows; i++ {
		for j := i + 1; j < m.cols; j++ {
			if s := m.Get(i, j); s > best.Similarity {
				best, ok = Pair{I: i, J: j, Similarity: s}, true
			}
		}
	}
	return best, ok
}

// PairsAboveThreshold lists entries above the diagonal with similarity >= threshold.
func (m *SimilarityMatrix) PairsAboveThreshold(threshold float64) []Pair {
	var pairs []Pair
	for i := 0; i < m.rows; i++ {
		for j := i + 1; j < m.cols; j++ {
			if s := m.Get(i, j); s >= threshold {
				pairs = append(pairs, Pair{I: i, J: j, Similarity: s})
			}
		}
	}
	return pairs
}

// AverageSimilarity is the mean above the diagonal, 0 for fewer than two rows.
func (m *SimilarityMatrix) AverageSimilarity() float64 {
	sum, count := 0.0, 0
	for i := 0; i < m.rows; i++ {
		for j := i + 1; j < m.cols; j++ {
			sum += m.Get(i, j)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// PairwiseSimilarity computes the symmetric n x n matrix of vectors. The
// upper triangle is computed (row by row across workers when workers > 1)
// and mirrored; the diagonal is 1.
func PairwiseSimilarity(ctx context.Context, vectors []hdc.Vector, workers int) (*SimilarityMatrix, error) {
	start := time.Now()
	n := len(vectors)
	m := newMatrix(n, n)

	row := func(i int) {
		m.set(i, i, 1)
		for j := i + 1; j < n; j++ {
			s := hdc.HammingSimilarity(vectors[i], vectors[j])
			m.set(i, j, s)
			m.set(j, i, s)
		}
	}
	if err := forEachRow(ctx, n, workers, row); err != nil {
		return nil, err
	}

	metrics.SimilarityComparisonsTotal.WithLabelValues("cpu").Add(float64(n * (n - 1) / 2))
	metrics.BatchDurationSeconds.WithLabelValues("pairwise").Observe(time.Since(start).Seconds())
	return m, nil
}

// CrossSimilarity computes the queries x corpus matrix.
func CrossSimilarity(ctx context.Context, queries, corpus []hdc.Vector, workers int) (*SimilarityMatrix, error) {
	start := time.Now()
	m := newMatrix(len(queries), len(corpus))

	row := func(i int) {
		for j := range corpus {
			m.set(i, j, hdc.HammingSimilarity(queries[i], corpus[j]))
		}
	}
	if err := forEachRow(ctx, len(queries), workers, row); err != nil {
		return nil, err
	}

	metrics.SimilarityComparisonsTotal.WithLabelValues("cpu").Add(float64(len(queries) * len(corpus)))
	metrics.BatchDurationSeconds.WithLabelValues("cross").Observe(time.Since(start).Seconds())
	return m, nil
}

// forEachRow calls fn for every row, checking ctx between rows. fn must
// write each cell from exactly one row.
func forEachRow(ctx context.Context, n, workers int, fn func(int)) error {
	if workers <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(i)
		}
		return nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	return g.Wait()
}
