package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// IsolationMetrics tracks conversion and valuation activity for the
// isolation-mode subsystem.
type IsolationMetrics struct {
	priceQueries  *prometheus.CounterVec
	actionBuilds  *prometheus.CounterVec
	requestErrors *prometheus.CounterVec
}

var (
	isolationOnce     sync.Once
	isolationRegistry *IsolationMetrics
)

// Isolation returns the process-wide isolation metrics, registering the
// collectors on first use.
func Isolation() *IsolationMetrics {
	isolationOnce.Do(func() {
		isolationRegistry = &IsolationMetrics{
			priceQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "isolation_price_queries_total",
				Help: "Count of valuation queries by token kind and result.",
			}, []string{"kind", "result"}),
			actionBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "isolation_action_builds_total",
				Help: "Count of action-builder invocations by direction and result.",
			}, []string{"direction", "result"}),
			requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "isolation_request_errors_total",
				Help: "HTTP surface failures by route.",
			}, []string{"route"}),
		}
		prometheus.MustRegister(
			isolationRegistry.priceQueries,
			isolationRegistry.actionBuilds,
			isolationRegistry.requestErrors,
		)
	})
	return isolationRegistry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObservePriceQuery records one valuation query.
func (m *IsolationMetrics) ObservePriceQuery(kind string, err error) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.priceQueries.WithLabelValues(kind, result(err)).Inc()
}

// ObserveActionBuild records one action-builder invocation.
func (m *IsolationMetrics) ObserveActionBuild(direction string, err error) {
	if m == nil {
		return
	}
	m.actionBuilds.WithLabelValues(direction, result(err)).Inc()
}

// ObserveRequestError records a failed HTTP request by route.
func (m *IsolationMetrics) ObserveRequestError(route string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.requestErrors.WithLabelValues(route).Inc()
}
