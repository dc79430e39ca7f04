package gpu

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gverr "github.com/23skdu/genovec/internal/errors"
	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

var testSeed = hdc.SeedFromString("gpu-test")

func vectors(prefix string, n int) []hdc.Vector {
	out := make([]hdc.Vector, n)
	for i := range out {
		out[i] = hdc.Random(testSeed, fmt.Sprintf("%s-%d", prefix, i))
	}
	return out
}

func flatten(vs []hdc.Vector) []byte {
	out := make([]byte, len(vs)*vectorStride)
	flattenInto(out, vs)
	return out
}

func newSoftwareEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background(), Options{ForceFallbackAdapter: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// engineWithLimits builds an engine over a software device with custom limits.
func engineWithLimits(t *testing.T, l Limits) *Engine {
	t.Helper()
	adapter := newSoftwareAdapter()
	device := &softwareDevice{limits: l, parallelism: 2}
	pipeline, err := device.CreatePipeline(SimilarityKernel)
	require.NoError(t, err)
	return &Engine{adapter: adapter, device: device, pipeline: pipeline, logger: zerolog.Nop()}
}

func TestEngine_SoftwareAdapterInfo(t *testing.T) {
	e := newSoftwareEngine(t)
	info := e.AdapterInfo()
	assert.True(t, info.Software)
	assert.Equal(t, "software", info.Backend)
	assert.NotEmpty(t, info.Name)
	assert.Contains(t, e.Info(), "software adapter")
}

func TestEngine_HardwareUnavailable(t *testing.T) {
	e, err := NewEngine(context.Background(), Options{Logger: zerolog.Nop()})
	if err == nil {
		// A hardware backend is present in this build.
		_ = e.Close()
		t.Skip("hardware adapter available")
	}
	assert.True(t, IsUnavailable(err))
	assert.True(t, gverr.IsDevice(err))
}

func TestEngine_MatchesCPU(t *testing.T) {
	e := newSoftwareEngine(t)
	queries := vectors("q", 10)
	db := append(vectors("db", 98), queries[3], queries[7])

	sims, err := e.BatchSimilarity(context.Background(), queries, db)
	require.NoError(t, err)
	require.Len(t, sims, len(queries)*len(db))

	for i, q := range queries {
		for j, d := range db {
			want := hdc.HammingSimilarity(q, d)
			assert.InDelta(t, want, float64(sims[i*len(db)+j]), 1e-6, "query %d db %d", i, j)
		}
	}
	assert.InDelta(t, 1.0, float64(sims[3*len(db)+98]), 1e-6)
	assert.InDelta(t, 1.0, float64(sims[7*len(db)+99]), 1e-6)
}

func TestEngine_EmptyInput(t *testing.T) {
	e := newSoftwareEngine(t)
	ctx := context.Background()

	sims, err := e.BatchSimilarity(ctx, nil, vectors("db", 3))
	require.NoError(t, err)
	assert.Empty(t, sims)

	sims, err = e.BatchSimilarity(ctx, vectors("q", 3), nil)
	require.NoError(t, err)
	assert.Empty(t, sims)

	top, err := e.TopKSimilarity(ctx, vectors("q", 2), nil, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Empty(t, top[0])
}

func TestEngine_TopK(t *testing.T) {
	e := newSoftwareEngine(t)
	db := vectors("db", 20)
	q := db[5]
	// Duplicates of entry 5 at 2 and 11 tie at 1.0.
	db[2], db[11] = q, q

	top, err := e.TopKSimilarity(context.Background(), []hdc.Vector{q}, db, 4)
	require.NoError(t, err)
	require.Len(t, top[0], 4)
	assert.Equal(t, []int{2, 5, 11}, []int{top[0][0].Index, top[0][1].Index, top[0][2].Index})
	for _, m := range top[0][:3] {
		assert.InDelta(t, 1.0, float64(m.Similarity), 1e-6)
	}
	assert.Less(t, top[0][3].Similarity, float32(1))

	all, err := e.TopKSimilarity(context.Background(), []hdc.Vector{q}, db, 100)
	require.NoError(t, err)
	assert.Len(t, all[0], len(db))

	none, err := e.TopKSimilarity(context.Background(), []hdc.Vector{q}, db, -1)
	require.NoError(t, err)
	assert.Empty(t, none[0])
}

func TestEngine_Tiling(t *testing.T) {
	// One workgroup per dispatch and room for eight vectors per buffer.
	e := engineWithLimits(t, Limits{MaxBufferSize: 8 * vectorStride, MaxWorkgroupsPerDim: 1, MaxBindingsPerKernel: 8})
	queries := vectors("q", 9)
	db := vectors("db", 5)

	rows, err := planTiles(len(queries), len(db), e.device.Limits())
	require.NoError(t, err)
	assert.Equal(t, 8, rows)

	sims, err := e.BatchSimilarity(context.Background(), queries, db)
	require.NoError(t, err)
	for i, q := range queries {
		for j, d := range db {
			assert.InDelta(t, hdc.HammingSimilarity(q, d), float64(sims[i*len(db)+j]), 1e-6)
		}
	}

	// 64 invocations over a 30-vector database leaves two query rows per tile.
	wide := engineWithLimits(t, Limits{MaxBufferSize: 64 * vectorStride, MaxWorkgroupsPerDim: 1, MaxBindingsPerKernel: 8})
	rows, err = planTiles(5, 30, wide.device.Limits())
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	queries, db = vectors("q", 5), vectors("db", 30)
	sims, err = wide.BatchSimilarity(context.Background(), queries, db)
	require.NoError(t, err)
	require.Len(t, sims, 150)
	assert.InDelta(t, hdc.HammingSimilarity(queries[4], db[29]), float64(sims[149]), 1e-6)
}

func TestPlanTiles_Limits(t *testing.T) {
	l := Limits{MaxBufferSize: 10 * vectorStride, MaxWorkgroupsPerDim: 1, MaxBindingsPerKernel: 8}

	_, err := planTiles(1, WorkgroupSize+1, l)
	require.ErrorIs(t, err, ErrBuffer)

	_, err = planTiles(1, 11, Limits{MaxBufferSize: 10 * vectorStride, MaxWorkgroupsPerDim: 100})
	require.ErrorIs(t, err, ErrBuffer)

	rows, err := planTiles(1000, 1, DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, 1000, rows)
}

func TestEngine_ClosedAndCancelled(t *testing.T) {
	e := newSoftwareEngine(t)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err := e.Submit(context.Background(), vectors("q", 1), vectors("db", 1))
	require.ErrorIs(t, err, ErrDevice)

	live := newSoftwareEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = live.Submit(ctx, vectors("q", 1), vectors("db", 1))
	require.ErrorIs(t, err, context.Canceled)
}

func TestJob_WaitRespectsContext(t *testing.T) {
	j := &Job{done: make(chan struct{})}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := j.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	res, err := finishedJob([]float32{0.5}, nil).Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, res)
}

func TestEngine_SubmitSerialises(t *testing.T) {
	e := newSoftwareEngine(t)
	ctx := context.Background()
	db := vectors("db", 50)

	first, err := e.Submit(ctx, vectors("a", 20), db)
	require.NoError(t, err)
	// The second submit blocks until the first job releases the engine.
	second, err := e.Submit(ctx, vectors("b", 20), db)
	require.NoError(t, err)

	select {
	case <-first.Done():
	default:
		t.Fatal("first job should be done before second submit returns")
	}
	r, err := second.Wait(ctx)
	require.NoError(t, err)
	assert.Len(t, r, 20*50)
}

func TestParams_Bytes(t *testing.T) {
	p := Params{QueryCount: 3, DBCount: 70000, VectorBytes: hdc.Bytes}
	b := p.Bytes()
	require.Len(t, b, 16)
	assert.Equal(t, []byte{3, 0, 0, 0}, b[0:4])
	assert.Equal(t, []byte{0xe2, 0x04, 0, 0}, b[8:12])
	assert.Equal(t, p, paramsFromBytes(b))
	assert.Equal(t, uint32(313), p.wordsPerVector())
	assert.Equal(t, 313*4, vectorStride)
}

func TestSimilarityInvocation(t *testing.T) {
	a := hdc.Random(testSeed, "a")
	b := a.SetBit(0, !a.Bit(0)).SetBit(9999, !a.Bit(9999))
	queries := bytesToWords(flatten([]hdc.Vector{a}))
	database := bytesToWords(flatten([]hdc.Vector{a, b}))
	p := Params{QueryCount: 1, DBCount: 2, VectorBytes: hdc.Bytes}

	out := make([]float32, 2)
	for idx := uint32(0); idx < 3; idx++ {
		similarityInvocation(idx, queries, database, out, p)
	}
	assert.Equal(t, float32(1), out[0])
	assert.InDelta(t, 1-2.0/10000, float64(out[1]), 1e-6)
}

func TestSoftwareDevice_Errors(t *testing.T) {
	d := &softwareDevice{limits: DefaultLimits(), parallelism: 1}

	_, err := d.CreatePipeline(Kernel{Name: "bad", EntryPoint: "main", WGSL: similarityWGSL})
	require.ErrorIs(t, err, ErrShader)

	_, err = d.CreateBuffer("huge", DefaultLimits().MaxBufferSize+1, UsageStorage)
	require.ErrorIs(t, err, ErrBuffer)

	buf, err := d.CreateBufferInit("data", []byte{1, 2, 3, 4}, UsageStorage)
	require.NoError(t, err)
	_, err = buf.Read()
	require.ErrorIs(t, err, ErrBuffer)

	p, err := d.CreatePipeline(SimilarityKernel)
	require.NoError(t, err)
	_, err = d.Dispatch(p, []Buffer{buf}, 1)
	require.ErrorIs(t, err, ErrBuffer)

	require.NoError(t, d.Close())
	_, err = d.CreateBuffer("late", 4, UsageStorage)
	require.ErrorIs(t, err, ErrDevice)
}

func TestEngine_Metrics(t *testing.T) {
	e := newSoftwareEngine(t)
	before := testutil.ToFloat64(metrics.GpuDispatchesTotal.WithLabelValues("software"))
	comparisons := testutil.ToFloat64(metrics.SimilarityComparisonsTotal.WithLabelValues("gpu"))

	_, err := e.BatchSimilarity(context.Background(), vectors("q", 2), vectors("db", 3))
	require.NoError(t, err)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.GpuDispatchesTotal.WithLabelValues("software")))
	assert.Equal(t, comparisons+6, testutil.ToFloat64(metrics.SimilarityComparisonsTotal.WithLabelValues("gpu")))

	errs := testutil.ToFloat64(metrics.GpuErrorsTotal.WithLabelValues("shader"))
	_, _ = (&softwareDevice{limits: DefaultLimits()}).CreatePipeline(Kernel{Name: "x", EntryPoint: "y"})
	assert.Equal(t, errs+1, testutil.ToFloat64(metrics.GpuErrorsTotal.WithLabelValues("shader")))
}
