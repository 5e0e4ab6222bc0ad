// Package apiface declares the method set the node's core exposes to an
// external HTTP/JSON API layer. That layer — route handlers, status-code
// mapping, request decoding — is out of scope (SPEC_FULL.md §6); this
// package is the seam a consumer implements against. No net/http type
// appears here.
package apiface

import (
	"context"

	"github.com/agentmesh/node/pkg/discovery"
	"github.com/agentmesh/node/pkg/trust"
)

// Core is the method set an HTTP/JSON API layer calls into. Each method's
// doc comment records the status code an API handler should map its
// return to; this package only declares the contract, it never serves it.
type Core interface {
	// RegisterCard validates and publishes a capability card. Maps to
	// 201 on success, 400 on a validation failure (malformed DID,
	// missing capabilities, oversized card), 409 on a non-monotonic
	// published_at.
	RegisterCard(ctx context.Context, card discovery.CapabilityCard) error

	// GetCard looks up a capability card by DID. Maps to 200 with the
	// card, or 404 when ok is false and err is nil — a DHT/index miss is
	// not an API error.
	GetCard(ctx context.Context, did string) (card discovery.CapabilityCard, ok bool, err error)

	// SearchCards returns capability cards ranked by relevance to query.
	// Maps to 200 with a (possibly empty) result list; never 404.
	SearchCards(ctx context.Context, query string) ([]discovery.SearchResult, error)

	// GetTrustScore returns the composite trust score for a DID,
	// including the source (onchain/gossip/default) so a caller can
	// judge confidence. Maps to 200; a chain-fetch failure degrades to
	// a default-sourced score rather than an error (SPEC_FULL.md §4.8).
	GetTrustScore(ctx context.Context, did string) (trust.Score, error)

	// Health reports whether the node's core subsystems (swarm, chain
	// client) are usable. Maps to 200 when healthy, 503 otherwise.
	Health(ctx context.Context) HealthStatus
}

// HealthStatus summarizes the liveness of the node's core dependencies.
type HealthStatus struct {
	Healthy      bool
	PeerCount    int
	ChainBreaker string // "closed" | "open" | "half_open"
}
