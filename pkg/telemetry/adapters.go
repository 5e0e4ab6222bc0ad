package telemetry

// These thin adapters let *Metrics satisfy the small nil-safe sink
// interfaces each consuming package defines (pkg/security.MetricsSink,
// pkg/trust.CacheMetrics, pkg/discovery.RepublishMetrics) without those
// packages importing prometheus directly.

// RecordDecision implements pkg/security.MetricsSink.
func (m *Metrics) RecordDecision(stage string, allowed bool) {
	decision := "reject"
	if allowed {
		decision = "accept"
	}
	m.ConnectionDecisionsTotal.WithLabelValues(stage, decision).Inc()
}

// RecordCacheHit implements pkg/trust.CacheMetrics.
func (m *Metrics) RecordCacheHit(freshness string) {
	m.TrustCacheHitsTotal.WithLabelValues(freshness).Inc()
}

// RecordChainCall implements pkg/trust.CacheMetrics.
func (m *Metrics) RecordChainCall(result string) {
	m.TrustChainCallsTotal.WithLabelValues(result).Inc()
}

// RecordBreakerState implements pkg/trust.CacheMetrics.
func (m *Metrics) RecordBreakerState(state string) {
	for _, s := range []string{"closed", "open", "half_open"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		m.CircuitBreakerState.WithLabelValues(s).Set(v)
	}
}

// RecordRepublishFailure implements pkg/discovery.RepublishMetrics.
func (m *Metrics) RecordRepublishFailure() {
	m.RepublishFailures.Inc()
}
