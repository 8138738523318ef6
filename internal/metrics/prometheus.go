package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_rag_requests_total",
			Help: "Requests by route and pipeline outcome",
		},
		[]string{"route", "outcome"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "farm_rag_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)

	DegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_rag_degraded_total",
			Help: "Degraded responses by reason",
		},
		[]string{"reason"},
	)

	RetrievalResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "farm_rag_retrieval_results",
			Help:    "Number of chunks retrieved per query",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	ChunksProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "farm_rag_chunks_processed_total",
			Help: "Chunks successfully embedded and upserted",
		},
	)

	ChunksSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "farm_rag_chunks_skipped_total",
			Help: "Chunks skipped because embedding failed",
		},
	)

	TranslationFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "farm_rag_translation_fallback_total",
			Help: "Translations that fell back to source-language content",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_rag_cache_hits_total",
			Help: "Cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_rag_cache_misses_total",
			Help: "Cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(DegradedTotal)
	prometheus.MustRegister(RetrievalResults)
	prometheus.MustRegister(ChunksProcessed)
	prometheus.MustRegister(ChunksSkipped)
	prometheus.MustRegister(TranslationFallbacks)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

// StageTimer times one pipeline stage; call ObserveDuration when done.
func StageTimer(stage string) *prometheus.Timer {
	return prometheus.NewTimer(StageDuration.WithLabelValues(stage))
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
