package hooks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fernandezvara/gamekit/pool"
)

// StatsSource is satisfied by *pool.Pool.
type StatsSource interface {
	Stats() pool.Stats
}

// PoolCollector exports connection pool statistics on every scrape
type PoolCollector struct {
	source StatsSource

	total              *prometheus.Desc
	idle               *prometheus.Desc
	inUse              *prometheus.Desc
	maxSize            *prometheus.Desc
	acquires           *prometheus.Desc
	created            *prometheus.Desc
	destroyed          *prometheus.Desc
	validationFailures *prometheus.Desc
	evictions          *prometheus.Desc
	exhausted          *prometheus.Desc
}

// NewPoolCollector creates a collector for source
func NewPoolCollector(source StatsSource) *PoolCollector {
	labels := []string{"pool"}
	desc := func(name, help string, extra ...string) *prometheus.Desc {
		return prometheus.NewDesc("gamekit_pool_"+name, help, append(labels, extra...), nil)
	}
	return &PoolCollector{
		source:             source,
		total:              desc("connections", "Physical connections currently open"),
		idle:               desc("idle_connections", "Connections waiting in the idle set"),
		inUse:              desc("in_use_connections", "Connections currently leased"),
		maxSize:            desc("max_connections", "Configured connection cap"),
		acquires:           desc("acquires_total", "Successful acquires"),
		created:            desc("created_total", "Physical connections opened"),
		destroyed:          desc("destroyed_total", "Physical connections closed"),
		validationFailures: desc("validation_failures_total", "Reused connections that failed validation"),
		evictions:          desc("evictions_total", "Connections closed for exceeding a limit", "reason"),
		exhausted:          desc("exhausted_total", "Acquires that timed out at capacity"),
	}
}

// RegisterPoolCollector registers a collector for source
func RegisterPoolCollector(registry prometheus.Registerer, source StatsSource) error {
	return register(registry, NewPoolCollector(source))
}

// Describe implements prometheus.Collector
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.total, c.idle, c.inUse, c.maxSize, c.acquires, c.created,
		c.destroyed, c.validationFailures, c.evictions, c.exhausted,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.source.Stats()
	name := st.Name

	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(st.Total), name)
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(st.Idle), name)
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(st.InUse), name)
	ch <- prometheus.MustNewConstMetric(c.maxSize, prometheus.GaugeValue, float64(st.MaxSize), name)
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(st.AcquireCount), name)
	ch <- prometheus.MustNewConstMetric(c.created, prometheus.CounterValue, float64(st.Created), name)
	ch <- prometheus.MustNewConstMetric(c.destroyed, prometheus.CounterValue, float64(st.Destroyed), name)
	ch <- prometheus.MustNewConstMetric(c.validationFailures, prometheus.CounterValue, float64(st.ValidationFailures), name)
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(st.IdleEvictions), name, "idle")
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(st.LifetimeEvictions), name, "lifetime")
	ch <- prometheus.MustNewConstMetric(c.exhausted, prometheus.CounterValue, float64(st.Exhausted), name)
}
