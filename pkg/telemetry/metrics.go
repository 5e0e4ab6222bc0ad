// Package telemetry holds the node's Prometheus metrics registry. It
// follows the teacher's isolated-registry convention (pkg/p2pnet/metrics.go):
// every collector lives on its own prometheus.Registry rather than the
// global default one, so tests can construct an independent Metrics
// instance per case without collector-name collisions.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all custom agentmesh Prometheus collectors.
type Metrics struct {
	Registry *prometheus.Registry

	// Gossip / MessageRouter metrics.
	MessagesTotal   *prometheus.CounterVec // topic, outcome (received/accepted/rejected/ignored)
	RejectionsTotal *prometheus.CounterVec // topic, reason

	// SecurityGuard metrics.
	ConnectionDecisionsTotal *prometheus.CounterVec // decision (accept/reject), stage (global/per_ip/subnet24/subnet16)
	ConnectedPeers           prometheus.Gauge

	// DHT / DiscoveryService metrics.
	DHTPutTotal       *prometheus.CounterVec // result (ok/timeout/error)
	DHTGetTotal       *prometheus.CounterVec // result (hit/miss/timeout/error)
	CapabilityCards   prometheus.Gauge
	RepublishFailures prometheus.Counter

	// TrustAggregator metrics.
	TrustCacheHitsTotal   *prometheus.CounterVec // freshness (fresh/stale/miss)
	TrustChainCallsTotal  *prometheus.CounterVec // result (ok/error)
	CircuitBreakerState   *prometheus.GaugeVec   // state (closed/open/half_open) - 1 for current state, 0 otherwise

	BuildInfo *prometheus.GaugeVec
}

// New creates a Metrics instance with all collectors registered on an
// isolated registry.
func New(version, goVersion string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_router_messages_total",
				Help: "Gossip messages seen by the router, by topic and outcome.",
			},
			[]string{"topic", "outcome"},
		),
		RejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_router_rejections_total",
				Help: "Gossip messages rejected by the router, by topic and reason.",
			},
			[]string{"topic", "reason"},
		),

		ConnectionDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_security_connection_decisions_total",
				Help: "Inbound connection admission decisions, by stage and decision.",
			},
			[]string{"stage", "decision"},
		),
		ConnectedPeers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentmesh_connected_peers",
				Help: "Number of currently connected peers.",
			},
		),

		DHTPutTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_dht_put_total",
				Help: "DHT PutRecord outcomes.",
			},
			[]string{"result"},
		),
		DHTGetTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_dht_get_total",
				Help: "DHT GetRecord outcomes.",
			},
			[]string{"result"},
		),
		CapabilityCards: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentmesh_capability_cards",
				Help: "Number of capability cards in the local index.",
			},
		),
		RepublishFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agentmesh_republish_failures_total",
				Help: "Capability card republish attempts that exhausted retries.",
			},
		),

		TrustCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_trust_cache_total",
				Help: "TrustAggregator cache lookups, by freshness.",
			},
			[]string{"freshness"},
		),
		TrustChainCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_trust_chain_calls_total",
				Help: "On-chain TrustRegistry calls, by result.",
			},
			[]string{"result"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agentmesh_trust_breaker_state",
				Help: "Current circuit breaker state (1 = active, 0 = inactive) by state name.",
			},
			[]string{"state"},
		),

		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agentmesh_build_info",
				Help: "Build information for the running agentmesh node.",
			},
			[]string{"version", "go_version"},
		),
	}

	reg.MustRegister(
		m.MessagesTotal,
		m.RejectionsTotal,
		m.ConnectionDecisionsTotal,
		m.ConnectedPeers,
		m.DHTPutTotal,
		m.DHTGetTotal,
		m.CapabilityCards,
		m.RepublishFailures,
		m.TrustCacheHitsTotal,
		m.TrustChainCallsTotal,
		m.CircuitBreakerState,
		m.BuildInfo,
	)

	m.BuildInfo.WithLabelValues(version, goVersion).Set(1)

	return m
}

// Handler returns an http.Handler serving the Prometheus text exposition
// format for this registry (GET /metrics, per SPEC_FULL.md §6).
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
