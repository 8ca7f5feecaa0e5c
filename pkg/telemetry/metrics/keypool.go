package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"prism-gw/prism/pkg/keypool"
)

// Snapshotter yields the current state of every pooled key.
type Snapshotter interface {
	Snapshot() []keypool.KeyRecord
}

// PoolCollector exports pool composition at scrape time instead of pushing
// gauge updates on every transition. Registered through Collector.Register.
type PoolCollector struct {
	source Snapshotter
	usage  UsageReader

	keysByStatus *prometheus.Desc
	rpmUsage     *prometheus.Desc
}

// UsageReader optionally augments the pool collector with per-key trailing
// window usage.
type UsageReader interface {
	Usage(key string) int
}

// NewPoolCollector builds a collector over the pool snapshot source.
// usage may be nil, in which case window usage is not exported.
func NewPoolCollector(opts Options, source Snapshotter, usage UsageReader) *PoolCollector {
	return &PoolCollector{
		source: source,
		usage:  usage,
		keysByStatus: prometheus.NewDesc(
			prometheus.BuildFQName(opts.Namespace, opts.Subsystem, "pool_keys"),
			"Pooled keys by lifecycle status.",
			[]string{"status"}, nil),
		rpmUsage: poolUsageDesc(opts, usage),
	}
}

func poolUsageDesc(opts Options, usage UsageReader) *prometheus.Desc {
	if usage == nil {
		return nil
	}
	return prometheus.NewDesc(
		prometheus.BuildFQName(opts.Namespace, opts.Subsystem, "key_window_usage"),
		"Requests charged to the key's trailing rate window.",
		[]string{"key"}, nil)
}

var _ prometheus.Collector = (*PoolCollector)(nil)

// Describe implements prometheus.Collector.
func (p *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.keysByStatus
	if p.rpmUsage != nil {
		ch <- p.rpmUsage
	}
}

// Collect implements prometheus.Collector.
func (p *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	snapshot := p.source.Snapshot()

	counts := map[keypool.Status]int{}
	for _, rec := range snapshot {
		counts[rec.Status]++
	}
	for _, status := range []keypool.Status{keypool.StatusActive, keypool.StatusRateLimited, keypool.StatusDisabled} {
		ch <- prometheus.MustNewConstMetric(
			p.keysByStatus, prometheus.GaugeValue,
			float64(counts[status]), status.String())
	}

	if p.rpmUsage == nil {
		return
	}
	for _, rec := range snapshot {
		ch <- prometheus.MustNewConstMetric(
			p.rpmUsage, prometheus.GaugeValue,
			float64(p.usage.Usage(rec.Identifier)),
			keypool.MaskKey(rec.Identifier))
	}
}
