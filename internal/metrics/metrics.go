package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Encoding Metrics
// =============================================================================

var (
	// VectorsGeneratedTotal counts hypervectors produced by each encoder
	VectorsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genovec_vectors_generated_total",
			Help: "Total number of hypervectors produced by encoders",
		},
		[]string{"encoder"}, // "dna", "multiscale", "snp", "vcf", "hla_basic", "hla_locus", "hla_allele"
	)

	// EncodeFailuresTotal counts rejected records by encoder and reason
	EncodeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genovec_encode_failures_total",
			Help: "Total number of records rejected by encoders",
		},
		[]string{"encoder", "reason"}, // "invalid_nucleotide", "sequence_too_short", "empty_input", "allele_count"
	)

	// EncodeDurationSeconds measures single-record encode latency
	EncodeDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genovec_encode_duration_seconds",
			Help:    "Latency of encoding one record",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"encoder"},
	)
)

// =============================================================================
// Codebook Metrics
// =============================================================================

var (
	// CodebookBuildsTotal counts k-mer codebook constructions
	CodebookBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genovec_codebook_builds_total",
			Help: "Total number of k-mer codebooks built",
		},
		[]string{"k"},
	)

	// CodebookBuildDurationSeconds measures codebook construction time
	CodebookBuildDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "genovec_codebook_build_duration_seconds",
			Help:    "Time taken to build a k-mer codebook",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)

	// CodebookRegistrySize tracks the number of memoised codebooks
	CodebookRegistrySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "genovec_codebook_registry_size",
			Help: "Number of codebooks held by the process-wide registry",
		},
	)
)

// =============================================================================
// Batch Metrics
// =============================================================================

var (
	// BatchDurationSeconds measures batch operation latency
	BatchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genovec_batch_duration_seconds",
			Help:    "Latency of batch operations",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		},
		[]string{"operation"}, // "encode_sequences", "encode_snp_panels", "pairwise", "top_k", "cross"
	)

	// BatchItemsTotal counts batch items by outcome
	BatchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genovec_batch_items_total",
			Help: "Total number of batch items processed by outcome",
		},
		[]string{"outcome"}, // "success", "failed"
	)

	// BatchWorkersActive tracks the number of busy batch workers
	BatchWorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "genovec_batch_workers_active",
			Help: "Number of batch workers currently encoding",
		},
	)
)

// =============================================================================
// Similarity Metrics
// =============================================================================

var (
	// SimilarityComparisonsTotal counts vector comparisons by backend
	SimilarityComparisonsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genovec_similarity_comparisons_total",
			Help: "Total number of pairwise vector comparisons",
		},
		[]string{"backend"}, // "cpu", "gpu", "ann"
	)

	// IndexVectors tracks the number of vectors held by similarity indexes
	IndexVectors = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "genovec_index_vectors",
			Help: "Number of vectors stored in similarity indexes",
		},
		[]string{"index"}, // "flat", "ann"
	)

	// SearchDurationSeconds measures index search latency
	SearchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genovec_search_duration_seconds",
			Help:    "Latency of similarity index searches",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"index"},
	)
)

// =============================================================================
// Export Metrics
// =============================================================================

var (
	// ExportRecordsTotal counts rows written by exporters
	ExportRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genovec_export_records_total",
			Help: "Total number of encoded records exported",
		},
		[]string{"format"}, // "arrow", "parquet"
	)
)

// =============================================================================
// Confidence & Privacy Metrics
// =============================================================================

var (
	// MatchConfidenceTotal counts scored matches by confidence band
	MatchConfidenceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genovec_match_confidence_total",
			Help: "Total number of matches scored, by confidence band",
		},
		[]string{"level"}, // "very_high", "high", "moderate", "low", "very_low"
	)

	// PrivacyVectorsTotal counts vectors released through randomized response
	PrivacyVectorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genovec_privacy_vectors_total",
			Help: "Total number of vectors perturbed for differential privacy",
		},
	)

	// PrivacyEpsilonSpentTotal sums epsilon charged against privacy budgets
	PrivacyEpsilonSpentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genovec_privacy_epsilon_spent_total",
			Help: "Total epsilon consumed across privacy budgets",
		},
	)

	// PrivacyBudgetRejectionsTotal counts spends refused for lack of budget
	PrivacyBudgetRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genovec_privacy_budget_rejections_total",
			Help: "Total number of privacy budget spends refused",
		},
	)
)
