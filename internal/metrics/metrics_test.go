package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsInitialization(t *testing.T) {
	assert.NotNil(t, VectorsGeneratedTotal)
	assert.NotNil(t, EncodeFailuresTotal)
	assert.NotNil(t, EncodeDurationSeconds)
	assert.NotNil(t, CodebookBuildsTotal)
	assert.NotNil(t, CodebookBuildDurationSeconds)
	assert.NotNil(t, CodebookRegistrySize)
	assert.NotNil(t, BatchDurationSeconds)
	assert.NotNil(t, BatchItemsTotal)
	assert.NotNil(t, BatchWorkersActive)
	assert.NotNil(t, SimilarityComparisonsTotal)
	assert.NotNil(t, IndexVectors)
	assert.NotNil(t, SearchDurationSeconds)
	assert.NotNil(t, ExportRecordsTotal)
	assert.NotNil(t, SimdDispatchCount)
	assert.NotNil(t, LogEntriesTotal)
	assert.NotNil(t, LogErrorsTotal)
	assert.NotNil(t, GpuDispatchesTotal)
	assert.NotNil(t, GpuDispatchDurationSeconds)
	assert.NotNil(t, GpuErrorsTotal)
	assert.NotNil(t, GpuBufferBytes)
	assert.NotNil(t, BufferPoolOperations)
	assert.NotNil(t, MatchConfidenceTotal)
	assert.NotNil(t, PrivacyVectorsTotal)
	assert.NotNil(t, PrivacyEpsilonSpentTotal)
	assert.NotNil(t, PrivacyBudgetRejectionsTotal)
}

func TestCounterVecLabels(t *testing.T) {
	before := testutil.ToFloat64(EncodeFailuresTotal.WithLabelValues("dna", "invalid_nucleotide"))
	EncodeFailuresTotal.WithLabelValues("dna", "invalid_nucleotide").Inc()
	after := testutil.ToFloat64(EncodeFailuresTotal.WithLabelValues("dna", "invalid_nucleotide"))
	assert.Equal(t, before+1, after)

	GpuErrorsTotal.WithLabelValues("no_adapter").Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(GpuErrorsTotal.WithLabelValues("no_adapter")), 1.0)
}

func TestGaugeSet(t *testing.T) {
	IndexVectors.WithLabelValues("flat").Set(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(IndexVectors.WithLabelValues("flat")))
}
