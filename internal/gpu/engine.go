// Package gpu computes bulk Hamming similarities with a compute kernel,
// either on a hardware adapter (gpu build tag) or on the software adapter.
package gpu

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	gverr "github.com/23skdu/genovec/internal/errors"
	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
	"github.com/23skdu/genovec/internal/pool"
)

// vectorStride is the bytes one vector occupies in a storage buffer: its
// canonical bytes zero-padded to whole u32 words.
const vectorStride = (hdc.Bytes + 3) / 4 * 4

var stagingPool = pool.NewBytePool()

// Options configures NewEngine.
type Options struct {
	// ForceFallbackAdapter selects the software adapter instead of hardware.
	ForceFallbackAdapter bool
	Logger               zerolog.Logger
}

// Engine is a construct-once, call-many similarity service. It allows one
// outstanding dispatch at a time; use one engine per worker.
type Engine struct {
	mu       sync.Mutex
	adapter  Adapter
	device   Device
	pipeline Pipeline
	logger   zerolog.Logger
	closed   bool
}

// Match is a database position and its similarity to one query.
type Match struct {
	Index      int
	Similarity float32
}

// NewEngine requests an adapter, opens a device and compiles the similarity
// kernel. Without a hardware backend and without ForceFallbackAdapter it
// returns ErrNoAdapter.
//
//nolint:gocritic // Options passed by value for constructor simplicity
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	var (
		adapter Adapter
		err     error
	)
	if opts.ForceFallbackAdapter {
		adapter = newSoftwareAdapter()
	} else if adapter, err = requestHardwareAdapter(ctx); err != nil {
		return nil, err
	}

	device, err := adapter.RequestDevice(ctx)
	if err != nil {
		if _, ok := gverr.TypeOf(err); ok {
			return nil, err
		}
		return nil, deviceError(ErrDevice, "NewEngine", err.Error())
	}
	pipeline, err := device.CreatePipeline(SimilarityKernel)
	if err != nil {
		_ = device.Close()
		return nil, err
	}

	info := adapter.Info()
	e := &Engine{
		adapter:  adapter,
		device:   device,
		pipeline: pipeline,
		logger:   opts.Logger.With().Str("component", "gpu").Str("backend", info.Backend).Logger(),
	}
	e.logger.Info().
		Str("adapter", info.Name).
		Bool("software", info.Software).
		Int("cores", info.Cores).
		Msg("GPU similarity engine ready")
	return e, nil
}

// AdapterInfo describes the adapter in use.
func (e *Engine) AdapterInfo() AdapterInfo { return e.adapter.Info() }

// Info is a one-line device description for logs and CLI output.
func (e *Engine) Info() string {
	info := e.adapter.Info()
	l := e.device.Limits()
	return fmt.Sprintf("%s adapter %q (%s, %d cores): max buffer %d bytes, %d workgroups/dim",
		info.Backend, info.Name, info.Vendor, info.Cores, l.MaxBufferSize, l.MaxWorkgroupsPerDim)
}

// Close releases the device. Close waits for an outstanding job.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.device.Close()
}

// Job is a submitted batch. The result is output[i*len(db)+j].
type Job struct {
	done   chan struct{}
	result []float32
	err    error
}

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes or ctx ends. A job whose context ends
// still runs to completion.
func (j *Job) Wait(ctx context.Context) ([]float32, error) {
	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func finishedJob(result []float32, err error) *Job {
	j := &Job{done: make(chan struct{}), result: result, err: err}
	close(j.done)
	return j
}

// Submit validates the batch, uploads the database and starts the kernel.
// The engine stays busy until the returned job is done.
func (e *Engine) Submit(ctx context.Context, queries, db []hdc.Vector) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(queries) == 0 || len(db) == 0 {
		return finishedJob([]float32{}, nil), nil
	}

	limits := e.device.Limits()
	rowsPerTile, err := planTiles(len(queries), len(db), limits)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, deviceError(ErrDevice, "Submit", "engine is closed")
	}
	if err := ctx.Err(); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	dbBuf, err := e.upload("Database Buffer", db)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}

	job := &Job{done: make(chan struct{})}
	go func() {
		defer e.mu.Unlock()
		defer close(job.done)
		defer dbBuf.Release()

		out := make([]float32, 0, len(queries)*len(db))
		for lo := 0; lo < len(queries); lo += rowsPerTile {
			hi := min(lo+rowsPerTile, len(queries))
			tile, err := e.dispatch(queries[lo:hi], dbBuf, len(db))
			if err != nil {
				job.err = err
				return
			}
			out = append(out, tile...)
		}
		job.result = out
	}()
	return job, nil
}

// BatchSimilarity is the synchronous form of Submit.
func (e *Engine) BatchSimilarity(ctx context.Context, queries, db []hdc.Vector) ([]float32, error) {
	job, err := e.Submit(ctx, queries, db)
	if err != nil {
		return nil, err
	}
	return job.Wait(ctx)
}

// TopKSimilarity returns the k best database entries for each query. Equal
// scores are ordered by ascending database index.
func (e *Engine) TopKSimilarity(ctx context.Context, queries, db []hdc.Vector, k int) ([][]Match, error) {
	sims, err := e.BatchSimilarity(ctx, queries, db)
	if err != nil {
		return nil, err
	}
	if k < 0 {
		k = 0
	}
	out := make([][]Match, len(queries))
	for q := range queries {
		row := make([]Match, len(db))
		for j := range db {
			row[j] = Match{Index: j, Similarity: sims[q*len(db)+j]}
		}
		sort.Slice(row, func(a, b int) bool {
			if row[a].Similarity != row[b].Similarity {
				return row[a].Similarity > row[b].Similarity
			}
			return row[a].Index < row[b].Index
		})
		out[q] = row[:min(k, len(row))]
	}
	return out, nil
}

// dispatch runs one tile of queries against the uploaded database.
func (e *Engine) dispatch(queries []hdc.Vector, dbBuf Buffer, dbCount int) ([]float32, error) {
	start := time.Now()
	backend := e.adapter.Info().Backend
	outputCount := len(queries) * dbCount
	outputSize := outputCount * 4

	params := Params{QueryCount: uint32(len(queries)), DBCount: uint32(dbCount), VectorBytes: hdc.Bytes}

	var bufs []Buffer
	defer func() {
		for _, b := range bufs {
			b.Release()
		}
	}()
	create := func(b Buffer, err error) (Buffer, error) {
		if err == nil {
			bufs = append(bufs, b)
		}
		return b, err
	}

	qBuf, err := create(e.upload("Query Buffer", queries))
	if err != nil {
		return nil, err
	}
	outBuf, err := create(e.device.CreateBuffer("Output Buffer", outputSize, UsageStorage|UsageCopySrc))
	if err != nil {
		return nil, err
	}
	staging, err := create(e.device.CreateBuffer("Staging Buffer", outputSize, UsageMapRead|UsageCopyDst))
	if err != nil {
		return nil, err
	}
	pBuf, err := create(e.device.CreateBufferInit("Params Buffer", params.Bytes(), UsageUniform))
	if err != nil {
		return nil, err
	}
	metrics.GpuBufferBytes.Set(float64(qBuf.Size() + dbBuf.Size() + 2*outputSize + pBuf.Size()))

	workgroups := (outputCount + WorkgroupSize - 1) / WorkgroupSize
	sub, err := e.device.Dispatch(e.pipeline, []Buffer{qBuf, dbBuf, outBuf, pBuf}, workgroups)
	if err != nil {
		return nil, err
	}
	if err := sub.Wait(); err != nil {
		return nil, deviceError(ErrDevice, "dispatch", err.Error())
	}
	if err := e.device.CopyBufferToBuffer(outBuf, staging, outputSize); err != nil {
		return nil, err
	}
	raw, err := staging.Read()
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	metrics.GpuDispatchesTotal.WithLabelValues(backend).Inc()
	metrics.GpuDispatchDurationSeconds.WithLabelValues(backend).Observe(elapsed.Seconds())
	metrics.SimilarityComparisonsTotal.WithLabelValues("gpu").Add(float64(outputCount))
	e.logger.Debug().
		Int("queries", len(queries)).
		Int("database", dbCount).
		Int("workgroups", workgroups).
		Dur("elapsed", elapsed).
		Msg("Kernel dispatch complete")
	return bytesToFloats(raw), nil
}

// planTiles splits queries so each dispatch stays within device limits.
func planTiles(queryCount, dbCount int, l Limits) (int, error) {
	maxInvocations := l.MaxWorkgroupsPerDim * WorkgroupSize
	switch {
	case dbCount > maxInvocations:
		return 0, deviceError(ErrBuffer, "Submit",
			fmt.Sprintf("database of %d vectors exceeds %d invocations per dispatch", dbCount, maxInvocations))
	case dbCount*vectorStride > l.MaxBufferSize:
		return 0, deviceError(ErrBuffer, "Submit",
			fmt.Sprintf("database of %d bytes exceeds max buffer size %d", dbCount*vectorStride, l.MaxBufferSize))
	}
	rows := min(queryCount, maxInvocations/dbCount, l.MaxBufferSize/(dbCount*4), l.MaxBufferSize/vectorStride)
	return max(rows, 1), nil
}

// upload stages vs in a pooled slice and copies it into a storage buffer.
func (e *Engine) upload(label string, vs []hdc.Vector) (Buffer, error) {
	data := stagingPool.Get(len(vs) * vectorStride)
	defer stagingPool.Put(data)
	flattenInto(data, vs)
	return e.device.CreateBufferInit(label, data, UsageStorage)
}

// flattenInto lays vectors out at vectorStride, little-endian. dst must be
// zeroed so the padding stays zero.
func flattenInto(dst []byte, vs []hdc.Vector) {
	for i := range vs {
		copy(dst[i*vectorStride:], vs[i].Bytes())
	}
}
