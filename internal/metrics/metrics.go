package metrics

import "github.com/prometheus/client_golang/prometheus"

// GatewayMetrics exposes counters/histograms for the booking gateway.
type GatewayMetrics struct {
	refreshTotal   *prometheus.CounterVec
	proxyTotal     *prometheus.CounterVec
	slotOutcomes   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	m := &GatewayMetrics{
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking_gateway",
			Subsystem: "session",
			Name:      "refresh_total",
			Help:      "Token refresh attempts by outcome",
		}, []string{"outcome"}),
		proxyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking_gateway",
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Proxied backend calls by method and status class",
		}, []string{"method", "status"}),
		slotOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking_gateway",
			Subsystem: "slots",
			Name:      "operations_total",
			Help:      "Slot operations by type and outcome",
		}, []string{"op", "outcome"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booking_gateway",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of inbound requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.refreshTotal, m.proxyTotal, m.slotOutcomes, m.requestLatency)
	return m
}

func (m *GatewayMetrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
}

func (m *GatewayMetrics) ObserveProxy(method, statusClass string) {
	if m == nil {
		return
	}
	m.proxyTotal.WithLabelValues(method, statusClass).Inc()
}

func (m *GatewayMetrics) ObserveSlotOp(op, outcome string) {
	if m == nil {
		return
	}
	m.slotOutcomes.WithLabelValues(op, outcome).Inc()
}

func (m *GatewayMetrics) ObserveRequestLatency(method string, seconds float64) {
	if m == nil {
		return
	}
	m.requestLatency.WithLabelValues(method).Observe(seconds)
}
