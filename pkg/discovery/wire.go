package discovery

import (
	"encoding/json"
	"time"

	"github.com/agentmesh/node/pkg/swarm"
)

const discoveryTopic = swarm.TopicDiscovery

// DiscoveryAnnouncement is the payload this service publishes on the
// discovery topic when a card is registered (spec.md §3's Discovery
// gossip payload variant: "announce/withdraw").
type DiscoveryAnnouncement struct {
	DID    string `json:"did"`
	Action string `json:"action"`
}

// MarshalEnvelope wraps the announcement in the gossip Envelope shell
// (spec.md §3 GossipMessage), ready to hand to NetworkFacade.Publish.
// senderPeerID is this node's own peer id (libp2p signs the outbound
// pubsub message separately; stamping it here too lets the receiving
// router's sender-mismatch check at pkg/router.process compare the two).
func (a DiscoveryAnnouncement) MarshalEnvelope(senderPeerID string) ([]byte, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	env := struct {
		Topic        string          `json:"topic"`
		Payload      json.RawMessage `json:"payload"`
		SenderPeerID string          `json:"sender_peer_id"`
		Timestamp    time.Time       `json:"timestamp"`
	}{
		Topic:        discoveryTopic,
		Payload:      payload,
		SenderPeerID: senderPeerID,
		Timestamp:    time.Now(),
	}
	return json.Marshal(env)
}

func marshalCard(c CapabilityCard) ([]byte, error) {
	return json.Marshal(c)
}
