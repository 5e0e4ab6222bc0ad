package main

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/agentmesh/node/pkg/discovery"
	"github.com/agentmesh/node/pkg/router"
	"github.com/agentmesh/node/pkg/trust"
)

// gossipHandlers implements router.Handlers, folding verified gossip
// messages into the DiscoveryService index and the TrustAggregator's
// cache. This is the glue SPEC_FULL.md §2's data-flow line describes as
// "MessageRouter -> DiscoveryService / TrustAggregator".
type gossipHandlers struct {
	discovery *discovery.Service
	trust     *trust.Aggregator
}

func (h *gossipHandlers) HandleDiscovery(msg router.DiscoveryMessage, from peer.ID) router.Outcome {
	// Announce/withdraw bookkeeping rides on the capability-card flow:
	// an announce with no card on file yet is not itself an error, it
	// just has nothing to index until a CapabilityMessage follows.
	return router.Outcome{Verdict: router.Accept, Forward: true}
}

func (h *gossipHandlers) HandleCapability(msg router.CapabilityMessage, from peer.ID) router.Outcome {
	caps := make([]discovery.Capability, 0, len(msg.Capabilities))
	for _, id := range msg.Capabilities {
		caps = append(caps, discovery.Capability{ID: id})
	}
	card := discovery.CapabilityCard{
		DID:          msg.DID,
		Name:         msg.Name,
		Description:  msg.Description,
		URL:          msg.URL,
		Capabilities: caps,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.discovery.Register(ctx, card); err != nil {
		return router.Outcome{Verdict: router.Ignore, Reason: err.Error()}
	}
	return router.Outcome{Verdict: router.Accept, Forward: true}
}

func (h *gossipHandlers) HandleTrust(msg router.TrustMessage, from peer.ID) router.Outcome {
	h.trust.ApplyObservation(trust.Observation{
		SubjectDID:     msg.SubjectDID,
		ObserverPeerID: msg.ObserverPeerID,
		Outcome:        msg.Outcome,
		VolumeUSD:      msg.VolumeUSD,
		Timestamp:      time.Now(),
	})
	return router.Outcome{Verdict: router.Accept, Forward: true}
}

func (h *gossipHandlers) HandleDispute(msg router.DisputeMessage, from peer.ID) router.Outcome {
	h.trust.ApplyObservation(trust.Observation{
		SubjectDID: msg.SubjectDID,
		Outcome:    "dispute",
		Timestamp:  time.Now(),
	})
	return router.Outcome{Verdict: router.Accept, Forward: true}
}
