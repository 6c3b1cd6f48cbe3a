package mealrec

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	opIngest    = "ingest"
	opRecommend = "recommend"
)

// clientMetrics are the per-client series. Clients that share a registerer
// share these series too; wrap the registerer with prometheus.WrapRegistererWith
// and a distinguishing label to keep them apart.
type clientMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	ingested   prometheus.Histogram
	results    prometheus.Histogram
	corpus     prometheus.Gauge
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	m := &clientMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mealrec",
			Subsystem: "client",
			Name:      "operations_total",
			Help:      "Ingest and recommend calls by outcome.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mealrec",
			Subsystem: "client",
			Name:      "operation_duration_seconds",
			Help:      "Ingest and recommend latency, embedding included.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"operation"}),
		ingested: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mealrec",
			Subsystem: "client",
			Name:      "ingest_recipes",
			Help:      "Recipes per successful ingest.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		results: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mealrec",
			Subsystem: "client",
			Name:      "recommend_results",
			Help:      "Recipes returned per successful recommendation.",
			Buckets:   []float64{0, 1, 3, 5, 10, 25, 50},
		}),
		corpus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mealrec",
			Subsystem: "client",
			Name:      "corpus_recipes",
			Help:      "Recipes in the client's current corpus.",
		}),
	}

	if err := register(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := register(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := register(reg, &m.ingested); err != nil {
		return nil, err
	}
	if err := register(reg, &m.results); err != nil {
		return nil, err
	}
	if err := register(reg, &m.corpus); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, adopting an already registered collector of the same type.
func register[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("mealrec: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("mealrec: metric already registered as %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer logs and counts client calls. A nil observer, or one without a
// logger or registerer, drops the corresponding output.
type observer struct {
	logger  *slog.Logger
	metrics *clientMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newClientMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

// ingested records an Ingest call. corpus is the corpus size afterwards.
func (o *observer) ingested(start time.Time, recipes, corpus int, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	o.count(opIngest, dur, err)
	if err == nil && o.metrics != nil {
		o.metrics.ingested.Observe(float64(recipes))
		o.metrics.corpus.Set(float64(corpus))
	}

	if o.logger == nil {
		return
	}
	if err != nil {
		o.logger.Warn("ingest failed", "recipes", recipes, "corpus", corpus, "duration", dur, "error", err)
		return
	}
	o.logger.Debug("corpus replaced", "recipes", recipes, "duration", dur)
}

// recommended records a Recommend call.
func (o *observer) recommended(start time.Time, k, results int, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	o.count(opRecommend, dur, err)
	if err == nil && o.metrics != nil {
		o.metrics.results.Observe(float64(results))
	}

	if o.logger == nil {
		return
	}
	if err != nil {
		o.logger.Warn("recommend failed", "k", k, "duration", dur, "error", err)
		return
	}
	o.logger.Debug("recommendation served", "k", k, "results", results, "duration", dur)
}

func (o *observer) count(op string, dur time.Duration, err error) {
	if o.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.operations.WithLabelValues(op, status).Inc()
	o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
}
