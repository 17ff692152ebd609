package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder tracks prediction throughput, outcomes and latency.
type Recorder struct {
	registry    *prometheus.Registry
	predictions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	latency     prometheus.Histogram
	probability prometheus.Histogram
}

// NewRecorder registers the prediction collectors on a private registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "churn",
			Name:      "predictions_total",
			Help:      "Scored prediction requests by predicted churn status.",
		}, []string{"churn"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "churn",
			Name:      "prediction_failures_total",
			Help:      "Rejected or failed prediction requests by error kind.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "churn",
			Name:      "prediction_duration_seconds",
			Help:      "Time spent assembling and scoring a record.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		probability: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "churn",
			Name:      "predicted_probability",
			Help:      "Distribution of predicted churn probabilities.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
		}),
	}
	r.registry.MustRegister(r.predictions, r.failures, r.latency, r.probability)
	return r
}

// ObservePrediction records a successful prediction.
func (r *Recorder) ObservePrediction(churn bool, probability float64, elapsed time.Duration) {
	if r == nil {
		return
	}
	label := "no"
	if churn {
		label = "yes"
	}
	r.predictions.WithLabelValues(label).Inc()
	r.probability.Observe(probability)
	r.latency.Observe(elapsed.Seconds())
}

// ObserveFailure records a rejected or failed prediction.
func (r *Recorder) ObserveFailure(kind string) {
	if r == nil {
		return
	}
	r.failures.WithLabelValues(kind).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
