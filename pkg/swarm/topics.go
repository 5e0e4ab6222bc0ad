// Package swarm wires the node's libp2p behaviours — gossipsub, the
// Kademlia DHT, identify, and mDNS — into the single-writer SwarmDriver
// event loop, and exposes a thin NetworkFacade for the rest of the node
// to command it through. Grounded on
// original_source/node/src/network/behaviour.rs (parameters) and
// original_source/node/src/network.rs (the NetworkManager command/event
// shape), expressed with the teacher's pkg/p2pnet single-goroutine-owns-
// state convention.
package swarm

// ProtocolVersion prefixes every wire-level protocol ID this node
// speaks, matching original_source's PROTOCOL_VERSION constant.
const ProtocolVersion = "/agoramesh/1.0.0"

// Well-known gossipsub topics (original_source/node/src/network/behaviour.rs
// topics module).
const (
	TopicDiscovery = "/agoramesh/discovery/1.0.0"
	TopicCapability = "/agoramesh/capability/1.0.0"
	TopicTrust      = "/agoramesh/trust/1.0.0"
	TopicDisputes   = "/agoramesh/disputes/1.0.0"
)

// AllTopics returns every topic this node subscribes to on startup.
func AllTopics() []string {
	return []string{TopicDiscovery, TopicCapability, TopicTrust, TopicDisputes}
}
