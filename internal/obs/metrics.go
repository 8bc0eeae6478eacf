package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Request outcome classes recorded by the HTTP client.
const (
	ClassSuccess     = "success"
	ClassNetwork     = "network_error"
	ClassRateLimited = "rate_limited"
	ClassAuth        = "auth_error"
	ClassHTTP        = "http_error"
)

// Refresh outcomes recorded by the coordinator.
const (
	RefreshExchanged   = "exchanged"
	RefreshSkipped     = "skipped"
	RefreshRateLimited = "rate_limited"
	RefreshFailed      = "failed"
	RefreshNoToken     = "no_token"
)

// Cache lookup results recorded by the request cache.
const (
	CacheHit    = "hit"
	CacheShared = "shared"
	CacheMiss   = "miss"
)

// Metrics groups the client core counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Requests *prometheus.CounterVec
	Refresh  *prometheus.CounterVec
	Cache    *prometheus.CounterVec
}

// NewMetrics builds the counters and registers them with reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finadmin",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Outbound API requests by outcome class.",
		}, []string{"class"}),
		Refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finadmin",
			Subsystem: "client",
			Name:      "refresh_total",
			Help:      "Access token refresh attempts by outcome.",
		}, []string{"outcome"}),
		Cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finadmin",
			Subsystem: "client",
			Name:      "cache_total",
			Help:      "Request cache lookups by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Refresh, m.Cache)
	}
	return m
}

func (m *Metrics) Request(class string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(class).Inc()
}

func (m *Metrics) RefreshOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Refresh.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.Cache.WithLabelValues(result).Inc()
}
