package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type accessCollectors struct {
	decisions *prometheus.CounterVec
	cache     *prometheus.CounterVec
	loads     prometheus.Histogram
}

func newAccessCollectors(factory promauto.Factory) accessCollectors {
	return accessCollectors{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "decisions_total",
			Help:      "Authorization decisions by check and result.",
		}, []string{"check", "result"}),
		cache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "cache_total",
			Help:      "Principal snapshot cache outcomes.",
		}, []string{"outcome"}),
		loads: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "principal_load_seconds",
			Help:      "Time spent assembling a principal snapshot from the store.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// ObserveDecision counts a resolver decision.
func (m *Metrics) ObserveDecision(check string, allowed bool) {
	if m == nil {
		return
	}
	result := "deny"
	if allowed {
		result = "allow"
	}
	m.access.decisions.WithLabelValues(check, result).Inc()
}

// ObserveCache counts a principal cache outcome.
func (m *Metrics) ObserveCache(outcome string) {
	if m == nil {
		return
	}
	m.access.cache.WithLabelValues(outcome).Inc()
}

// ObserveLoad records how long a snapshot rebuild took.
func (m *Metrics) ObserveLoad(d time.Duration) {
	if m == nil {
		return
	}
	m.access.loads.Observe(d.Seconds())
}
