package hooks

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fernandezvara/gamekit/proxy"
)

// MetricsHook implements Prometheus metrics collection
type MetricsHook struct {
	queryDuration *prometheus.HistogramVec
	queryTotal    *prometheus.CounterVec
	queryErrors   *prometheus.CounterVec
	queryRows     *prometheus.HistogramVec
}

// NewMetricsHook creates a new metrics hook and registers collectors
func NewMetricsHook(registry prometheus.Registerer) (*MetricsHook, error) {
	h := &MetricsHook{
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gamekit_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation", "kind"},
		),
		queryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamekit_queries_total",
				Help: "Total number of database queries",
			},
			[]string{"operation", "kind"},
		),
		queryErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamekit_query_errors_total",
				Help: "Total number of database query errors",
			},
			[]string{"operation", "kind"},
		),
		queryRows: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gamekit_query_rows",
				Help:    "Rows returned or affected per database query",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"operation"},
		),
	}

	// A registry that already holds the vectors keeps them; this hook then
	// records into those.
	var err error
	if h.queryDuration, err = registerVec(registry, h.queryDuration); err != nil {
		return nil, err
	}
	if h.queryTotal, err = registerVec(registry, h.queryTotal); err != nil {
		return nil, err
	}
	if h.queryErrors, err = registerVec(registry, h.queryErrors); err != nil {
		return nil, err
	}
	if h.queryRows, err = registerVec(registry, h.queryRows); err != nil {
		return nil, err
	}

	return h, nil
}

func registerVec[V prometheus.Collector](registry prometheus.Registerer, c V) (V, error) {
	err := registry.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(V); ok {
			return existing, nil
		}
	}
	return c, err
}

func register(registry prometheus.Registerer, collectors ...prometheus.Collector) error {
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			// Check if already registered
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// BeforeQuery is called before a query is executed
func (h *MetricsHook) BeforeQuery(ctx context.Context, event *proxy.QueryEvent) context.Context {
	return ctx
}

// AfterQuery is called after a query is executed
func (h *MetricsHook) AfterQuery(ctx context.Context, event *proxy.QueryEvent) {
	if event.Skipped() {
		return
	}

	op := OperationType(event.Query)
	kind := string(event.Kind)

	h.queryDuration.WithLabelValues(op, kind).Observe(event.Duration.Seconds())
	h.queryTotal.WithLabelValues(op, kind).Inc()

	if event.Err != nil {
		h.queryErrors.WithLabelValues(op, kind).Inc()
		return
	}
	h.queryRows.WithLabelValues(op).Observe(float64(event.RowsAffected))
}
