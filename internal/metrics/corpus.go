package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Corpus and recommendation metrics.
var (
	CorpusSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mealrec",
			Name:      "corpus_recipes",
			Help:      "Number of recipes in the current corpus",
		},
	)

	RecommendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mealrec",
			Name:      "recommend_duration_seconds",
			Help:      "End-to-end recommendation latency including query embedding",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	SourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mealrec",
			Name:      "source_requests_total",
			Help:      "Requests to upstream recipe sources",
		},
		[]string{"source", "status"},
	)
)

var corpusMetricsRegistered bool

// RegisterCorpusMetrics registers corpus metrics. Must be called once from main.
func RegisterCorpusMetrics() {
	if corpusMetricsRegistered {
		return
	}
	prometheus.MustRegister(CorpusSize)
	prometheus.MustRegister(RecommendDuration)
	prometheus.MustRegister(SourceRequestsTotal)
	corpusMetricsRegistered = true
}

// CorpusRecorder feeds the process-wide corpus metrics. Use one per process:
// every recorder writes the same gauge.
type CorpusRecorder struct{}

// CorpusReplaced sets the corpus size gauge.
func (CorpusRecorder) CorpusReplaced(recipes int) { CorpusSize.Set(float64(recipes)) }

// RecommendServed observes recommendation latency.
func (CorpusRecorder) RecommendServed(d time.Duration) { RecommendDuration.Observe(d.Seconds()) }
