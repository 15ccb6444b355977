package querycache

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	requests *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ec_admin_cache_requests_total",
			Help: "Query cache lookups by resource and result (hit, miss, shared).",
		}, []string{"resource", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests)
	}
	return m
}

func (m *metrics) record(resource, result string) {
	m.requests.WithLabelValues(resource, result).Inc()
}
