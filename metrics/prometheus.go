package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glimte/proxymachine-go/interceptors"
)

// DefaultBuckets are the duration histogram buckets in seconds
var DefaultBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// PrometheusCollector exports proxy call metrics to Prometheus
type PrometheusCollector struct {
	calls    *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ interceptors.MetricsCollector = (*PrometheusCollector)(nil)

type prometheusOptions struct {
	namespace   string
	buckets     []float64
	constLabels prometheus.Labels
}

// PrometheusOption configures a PrometheusCollector
type PrometheusOption func(*prometheusOptions)

// WithNamespace prefixes every metric name
func WithNamespace(namespace string) PrometheusOption {
	return func(o *prometheusOptions) {
		o.namespace = namespace
	}
}

// WithBuckets sets the duration histogram buckets in seconds
func WithBuckets(buckets ...float64) PrometheusOption {
	return func(o *prometheusOptions) {
		o.buckets = buckets
	}
}

// WithConstLabels adds labels to every metric, for example the proxied type
func WithConstLabels(labels prometheus.Labels) PrometheusOption {
	return func(o *prometheusOptions) {
		o.constLabels = labels
	}
}

// NewPrometheusCollector creates the collectors and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer, options ...PrometheusOption) (*PrometheusCollector, error) {
	opts := &prometheusOptions{
		namespace: "proxymachine",
		buckets:   DefaultBuckets,
	}
	for _, opt := range options {
		opt(opts)
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &PrometheusCollector{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.namespace,
				Name:        "calls_total",
				Help:        "proxied calls by method",
				ConstLabels: opts.constLabels,
			},
			[]string{"method"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.namespace,
				Name:        "call_errors_total",
				Help:        "failed proxied calls by method and error type",
				ConstLabels: opts.constLabels,
			},
			[]string{"method", "error_type"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   opts.namespace,
				Name:        "call_duration_seconds",
				Help:        "proxied call duration.",
				Buckets:     opts.buckets,
				ConstLabels: opts.constLabels,
			},
			[]string{"method"},
		),
	}

	collectors := []prometheus.Collector{c.calls, c.errors, c.duration}
	for i, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			for _, registered := range collectors[:i] {
				reg.Unregister(registered)
			}
			return nil, err
		}
	}
	return c, nil
}

// IncrementCallCount implements interceptors.MetricsCollector
func (c *PrometheusCollector) IncrementCallCount(method string) {
	c.calls.WithLabelValues(method).Inc()
}

// RecordCallDuration implements interceptors.MetricsCollector
func (c *PrometheusCollector) RecordCallDuration(method string, duration time.Duration) {
	c.duration.WithLabelValues(method).Observe(duration.Seconds())
}

// IncrementErrorCount implements interceptors.MetricsCollector
func (c *PrometheusCollector) IncrementErrorCount(method string, errorType string) {
	c.errors.WithLabelValues(method, errorType).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
