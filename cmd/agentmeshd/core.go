package main

import (
	"context"

	"github.com/agentmesh/node/pkg/apiface"
	"github.com/agentmesh/node/pkg/discovery"
	"github.com/agentmesh/node/pkg/swarm"
	"github.com/agentmesh/node/pkg/trust"
)

// core implements apiface.Core, the method set an (out-of-scope)
// HTTP/JSON API layer would call into.
type core struct {
	facade    *swarm.NetworkFacade
	discovery *discovery.Service
	trust     *trust.Aggregator
}

var _ apiface.Core = (*core)(nil)

func (c *core) RegisterCard(ctx context.Context, card discovery.CapabilityCard) error {
	return c.discovery.Register(ctx, card)
}

func (c *core) GetCard(ctx context.Context, did string) (discovery.CapabilityCard, bool, error) {
	return c.discovery.Lookup(ctx, did)
}

func (c *core) SearchCards(ctx context.Context, query string) ([]discovery.SearchResult, error) {
	return c.discovery.Search(query), nil
}

func (c *core) GetTrustScore(ctx context.Context, did string) (trust.Score, error) {
	return c.trust.GetScore(ctx, did), nil
}

func (c *core) Health(ctx context.Context) apiface.HealthStatus {
	peers, err := c.facade.ConnectedPeers(ctx)
	if err != nil {
		return apiface.HealthStatus{Healthy: false, ChainBreaker: c.trust.BreakerState().String()}
	}
	breaker := c.trust.BreakerState()
	return apiface.HealthStatus{
		Healthy:      breaker != trust.Open,
		PeerCount:    len(peers),
		ChainBreaker: breaker.String(),
	}
}
