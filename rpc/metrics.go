package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-method call counts, latencies, and error rates for a
// Connection. A nil *Metrics (the default — see Connection.SetMetrics)
// disables recording with no branching at call sites: every method below
// is safe to call on a nil receiver.
type Metrics struct {
	calls    *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the connection's call-count/error/latency vectors
// against reg. Pass prometheus.DefaultRegisterer to expose them on the
// process-wide /metrics endpoint, as dittofs's services do.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "czrpc",
			Name:      "calls_total",
			Help:      "Total inbound RPC calls dispatched, by method.",
		}, []string{"method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "czrpc",
			Name:      "call_errors_total",
			Help:      "Total inbound RPC calls that replied with an exception, by method.",
		}, []string{"method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "czrpc",
			Name:      "call_duration_seconds",
			Help:      "Inbound RPC dispatch latency, by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(m.calls, m.errors, m.duration)
	return m
}

func (m *Metrics) now() time.Time {
	if m == nil {
		return time.Time{}
	}
	return time.Now()
}

func (m *Metrics) observe(method string, start time.Time, success bool) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(method).Inc()
	if !success {
		m.errors.WithLabelValues(method).Inc()
	}
	m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
