// Package router fans gossip MessageReceived events in from pkg/swarm,
// verifies and decodes them, and dispatches to typed handlers by topic —
// original_source's message_handler module, generalized from its Rust
// shape into the typed-handler-plus-Outcome design spec.md §4.6
// describes. Envelope verification follows the teacher's validator style
// (internal/validate): sentinel errors wrapped with fmt.Errorf("%w: ...").
package router

import (
	"encoding/json"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// MaxPayloadBytes is the hard cap on a gossip payload (spec.md §3 — 64 KiB).
const MaxPayloadBytes = 64 * 1024

// Envelope is the decoded gossip message shell carried on every topic
// (spec.md §3 GossipMessage). The signature itself is verified by the
// libp2p pubsub strict-validation mode before the router ever sees the
// message: Envelope.SenderPeerID is cross-checked here against the
// verified ReceivedFrom peer id (step 1 of §4.6).
type Envelope struct {
	Topic        string          `json:"topic"`
	Payload      json.RawMessage `json:"payload"`
	SenderPeerID string          `json:"sender_peer_id"`
	Timestamp    time.Time       `json:"timestamp"`
}

// DiscoveryMessage announces or withdraws an agent on the discovery topic.
type DiscoveryMessage struct {
	DID    string `json:"did"`
	Action string `json:"action"` // "announce" | "withdraw"
}

// CapabilityMessage carries a capability-card diff on the capability topic.
type CapabilityMessage struct {
	DID         string   `json:"did"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Capabilities []string `json:"capabilities"`
}

// TrustMessage carries a single trust observation on the trust topic.
type TrustMessage struct {
	SubjectDID     string  `json:"subject_did"`
	ObserverPeerID string  `json:"observer_peer_id"`
	Outcome        string  `json:"outcome"` // "success" | "failure" | "dispute"
	VolumeUSD      float64 `json:"volume_usd"`
}

// DisputeMessage carries a dispute notice on the disputes topic.
type DisputeMessage struct {
	SubjectDID string `json:"subject_did"`
	Reason     string `json:"reason"`
}

// Verdict mirrors gossipsub's three-way validation result: Reject drops
// the message AND penalizes the sender's peer score; Ignore drops it
// without a penalty (a transient local failure, not a protocol
// violation); Accept stores/dispatches it.
type Verdict int

const (
	Reject Verdict = iota
	Ignore
	Accept
)

// Outcome is the router's verdict on a received message, fed back to the
// gossip layer's peer-score and forwarding decision.
type Outcome struct {
	Verdict Verdict
	Forward bool
	Reason  string
}

func reject(reason string) Outcome { return Outcome{Verdict: Reject, Reason: reason} }
func ignore(reason string) Outcome { return Outcome{Verdict: Ignore, Reason: reason} }

// accept produces an Accept outcome that also forwards the message.
func accept() Outcome { return Outcome{Verdict: Accept, Forward: true} }

// acceptNoForward accepts but withholds re-forwarding — spec.md §9's
// resolution for senders scored between graylist and gossip thresholds:
// not bad enough to drop outright, not good enough to spend this node's
// forwarding budget on.
func acceptNoForward() Outcome { return Outcome{Verdict: Accept, Forward: false} }

// Stats holds per-topic received/accepted/rejected/ignored counters
// (spec.md §4.6 MessageHandlerStats), named after original_source's
// message_handler::MessageHandlerStats.
type Stats struct {
	Received map[string]uint64
	Accepted map[string]uint64
	Rejected map[string]uint64
	Ignored  map[string]uint64
}

// NewStats returns a zeroed Stats.
func NewStats() *Stats {
	return &Stats{
		Received: make(map[string]uint64),
		Accepted: make(map[string]uint64),
		Rejected: make(map[string]uint64),
		Ignored:  make(map[string]uint64),
	}
}

func (s *Stats) record(topic string, o Outcome) {
	s.Received[topic]++
	switch o.Verdict {
	case Accept:
		s.Accepted[topic]++
	case Ignore:
		s.Ignored[topic]++
	default:
		s.Rejected[topic]++
	}
}

// verifiedSenderMatches checks the envelope's declared sender against the
// peer id libp2p's pubsub layer cryptographically verified the message
// came from (spec.md §4.6 step 1).
func verifiedSenderMatches(envelopeSender string, verified peer.ID) bool {
	return envelopeSender == verified.String()
}
