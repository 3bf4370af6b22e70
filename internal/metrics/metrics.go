package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its own registry so several instances can coexist in tests.
type Metrics struct {
	Registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
	OrdersCreated   *prometheus.CounterVec
	Captures        *prometheus.CounterVec
	SideEffectFails *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Order creation attempts by result.",
		}, []string{"result"}),
		Captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "captures_total",
			Help:      "Capture attempts by result.",
		}, []string{"result"}),
		SideEffectFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "side_effect_failures_total",
			Help:      "Post-capture side effects that failed and were only logged.",
		}, []string{"hook"}),
		GatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "paypal",
			Name:      "call_duration_ms",
			Help:      "Payment gateway call latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"op"}),
	}
	reg.MustRegister(
		m.Requests, m.LatencyMS,
		m.OrdersCreated, m.Captures, m.SideEffectFails, m.GatewayLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// The helpers below accept a nil receiver so callers can run without metrics.

func (m *Metrics) OrderCreated(result string) {
	if m == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(result).Inc()
}

func (m *Metrics) Capture(result string) {
	if m == nil {
		return
	}
	m.Captures.WithLabelValues(result).Inc()
}

func (m *Metrics) SideEffectFailed(hook string) {
	if m == nil {
		return
	}
	m.SideEffectFails.WithLabelValues(hook).Inc()
}

func (m *Metrics) ObserveGateway(op string, ms float64) {
	if m == nil {
		return
	}
	m.GatewayLatency.WithLabelValues(op).Observe(ms)
}
