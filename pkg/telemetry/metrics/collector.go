package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcome labels.
const (
	OutcomeSuccess          = "success"
	OutcomePoolExhausted    = "pool_exhausted"
	OutcomeRetriesExhausted = "retries_exhausted"
	OutcomeClientError      = "client_error"
	OutcomeCanceled         = "canceled"
	OutcomeError            = "error"
)

// Options configures a Collector.
type Options struct {
	// Namespace and Subsystem prefix every metric name.
	Namespace string
	Subsystem string

	// DurationBuckets are histogram bucket boundaries in seconds.
	DurationBuckets []float64
}

// Collector owns the gateway's Prometheus registry and instruments. A nil
// *Collector is valid and drops every observation, so callers never branch
// on whether metrics are enabled.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestAttempts prometheus.Histogram
	attemptDuration *prometheus.HistogramVec
	probesTotal     *prometheus.CounterVec
	keysDisabled    prometheus.Counter
	keysReactivated prometheus.Counter
}

// New creates a Collector with its own registry, pre-registered with the
// standard Go runtime and process collectors.
func New(opts Options) *Collector {
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      "requests_total",
			Help:      "Dispatched requests by final outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "End-to-end dispatch latency by final outcome.",
			Buckets:   buckets,
		}, []string{"outcome"}),
		requestAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      "request_attempts",
			Help:      "Upstream attempts consumed per dispatched request.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 13},
		}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      "upstream_attempt_duration_seconds",
			Help:      "Single upstream attempt latency by outcome.",
			Buckets:   buckets,
		}, []string{"outcome"}),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      "recovery_probes_total",
			Help:      "Recovery probes by result.",
		}, []string{"result"}),
		keysDisabled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      "keys_disabled_total",
			Help:      "Keys withdrawn from rotation after reaching the failure threshold.",
		}),
		keysReactivated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      "keys_reactivated_total",
			Help:      "Disabled keys returned to rotation.",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.requestsTotal,
		c.requestDuration,
		c.requestAttempts,
		c.attemptDuration,
		c.probesTotal,
		c.keysDisabled,
		c.keysReactivated,
	)
	return c
}

// Register adds an extra collector to the registry.
func (c *Collector) Register(col prometheus.Collector) error {
	if c == nil {
		return nil
	}
	return c.registry.Register(col)
}

// Handler serves the registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordRequest observes one finished dispatch.
func (c *Collector) RecordRequest(outcome string, attempts int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(outcome).Inc()
	c.requestDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	c.requestAttempts.Observe(float64(attempts))
}

// RecordAttempt observes one upstream attempt.
func (c *Collector) RecordAttempt(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.attemptDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// RecordProbe observes one recovery probe.
func (c *Collector) RecordProbe(ok bool) {
	if c == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	c.probesTotal.WithLabelValues(result).Inc()
}

// RecordKeyDisabled counts a key entering quarantine.
func (c *Collector) RecordKeyDisabled() {
	if c == nil {
		return
	}
	c.keysDisabled.Inc()
}

// RecordKeyReactivated counts a key leaving quarantine.
func (c *Collector) RecordKeyReactivated() {
	if c == nil {
		return
	}
	c.keysReactivated.Inc()
}
