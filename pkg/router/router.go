package router

import (
	"encoding/json"
	"regexp"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/agentmesh/node/pkg/swarm"
)

// Clock skew tolerance for an envelope's declared timestamp (spec.md §4.6
// rejection reasons: "stale timestamp").
const (
	maxMessageAge    = 5 * time.Minute
	maxClockSkewAhead = 1 * time.Minute
)

var didRe = regexp.MustCompile(`^did:[a-z0-9]+:[a-z0-9-]+:.+$`)

// Handlers receives typed, verified messages dispatched by topic. Each
// method returns the Outcome to report back to gossip; a nil Handlers
// method pointer is not allowed — Router requires all four.
type Handlers interface {
	HandleDiscovery(msg DiscoveryMessage, from peer.ID) Outcome
	HandleCapability(msg CapabilityMessage, from peer.ID) Outcome
	HandleTrust(msg TrustMessage, from peer.ID) Outcome
	HandleDispute(msg DisputeMessage, from peer.ID) Outcome
}

// Router is the fan-in point for swarm.MessageReceived events.
type Router struct {
	handlers Handlers

	mu    sync.Mutex
	stats *Stats
}

// New creates a Router dispatching to handlers.
func New(handlers Handlers) *Router {
	return &Router{handlers: handlers, stats: NewStats()}
}

// Stats returns a snapshot copy of the router's counters, taken under the
// router's lock; later messages do not change it.
func (r *Router) Stats() *Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyInto := func(dst, src map[string]uint64) {
		for topic, n := range src {
			dst[topic] = n
		}
	}
	out := NewStats()
	copyInto(out.Received, r.stats.Received)
	copyInto(out.Accepted, r.stats.Accepted)
	copyInto(out.Rejected, r.stats.Rejected)
	copyInto(out.Ignored, r.stats.Ignored)
	return out
}

// Handle processes one swarm.MessageReceived event end to end: decode,
// verify, dispatch, record (spec.md §4.6).
func (r *Router) Handle(evt swarm.MessageReceived) Outcome {
	outcome := r.process(evt)
	r.mu.Lock()
	r.stats.record(evt.Topic, outcome)
	r.mu.Unlock()
	return outcome
}

func (r *Router) process(evt swarm.MessageReceived) Outcome {
	if len(evt.Data) > MaxPayloadBytes {
		return reject("payload too large")
	}

	var env Envelope
	if err := json.Unmarshal(evt.Data, &env); err != nil {
		return reject("schema mismatch: " + err.Error())
	}

	if !verifiedSenderMatches(env.SenderPeerID, evt.From) {
		return reject("sender mismatch")
	}

	if !env.Timestamp.IsZero() {
		age := time.Since(env.Timestamp)
		if age > maxMessageAge {
			return reject("stale timestamp")
		}
		if age < -maxClockSkewAhead {
			return reject("timestamp too far in the future")
		}
	}

	switch evt.Topic {
	case swarm.TopicDiscovery:
		var msg DiscoveryMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return reject("schema mismatch: " + err.Error())
		}
		if !didRe.MatchString(msg.DID) {
			return reject("DID not well-formed")
		}
		return r.handlers.HandleDiscovery(msg, evt.From)

	case swarm.TopicCapability:
		var msg CapabilityMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return reject("schema mismatch: " + err.Error())
		}
		if !didRe.MatchString(msg.DID) {
			return reject("DID not well-formed")
		}
		return r.handlers.HandleCapability(msg, evt.From)

	case swarm.TopicTrust:
		var msg TrustMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return reject("schema mismatch: " + err.Error())
		}
		if !didRe.MatchString(msg.SubjectDID) {
			return reject("DID not well-formed")
		}
		return r.handlers.HandleTrust(msg, evt.From)

	case swarm.TopicDisputes:
		var msg DisputeMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return reject("schema mismatch: " + err.Error())
		}
		if !didRe.MatchString(msg.SubjectDID) {
			return reject("DID not well-formed")
		}
		return r.handlers.HandleDispute(msg, evt.From)

	default:
		return reject("unknown topic " + evt.Topic)
	}
}

// ScoreOutcome adjusts Forward per spec.md §9 based on the sender's
// current gossip peer score: an accepted message from a peer scoring
// below gossipThreshold is accepted but not forwarded, even though the
// message itself validated cleanly. Other outcomes pass through unchanged.
func ScoreOutcome(o Outcome, senderScore, gossipThreshold float64) Outcome {
	if o.Verdict == Accept && senderScore < gossipThreshold {
		return acceptNoForward()
	}
	return o
}
