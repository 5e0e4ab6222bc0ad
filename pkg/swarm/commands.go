package swarm

import (
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// Command is sent over the SwarmDriver's command channel. Callers never
// reach the host, DHT or gossipsub directly; every request is expressed
// as a Command that the driver's run loop handles, or hands to a goroutine
// it starts for slow DHT queries — the same command discipline the
// teacher uses for its Network type.
type Command interface{ isCommand() }

// Dial asks the driver to connect to a peer at addr.
type Dial struct {
	Addr  peer.AddrInfo
	Reply chan<- error
}

// Publish asks the driver to publish data on topic.
type Publish struct {
	Topic string
	Data  []byte
	Reply chan<- error
}

// GetPeers asks the driver for the current connected peer set.
type GetPeers struct {
	Reply chan<- []peer.ID
}

// Bootstrap asks the driver to run a DHT bootstrap round.
type Bootstrap struct {
	Reply chan<- error
}

// PutRecord asks the driver to store a DHT record.
type PutRecord struct {
	Key   string
	Value []byte
	Reply chan<- error
}

// GetRecord asks the driver to fetch a DHT record.
type GetRecord struct {
	Key   string
	Reply chan<- GetRecordResult
}

// GetRecordResult is the reply payload for GetRecord.
type GetRecordResult struct {
	Value []byte
	Err   error
}

// Shutdown asks the driver to tear down the host and stop its loop.
type Shutdown struct {
	Reply chan<- error
}

func (Dial) isCommand() {}
func (Publish) isCommand() {}
func (GetPeers) isCommand() {}
func (Bootstrap) isCommand() {}
func (PutRecord) isCommand() {}
func (GetRecord) isCommand() {}
func (Shutdown) isCommand() {}

// Event is emitted by the driver on its event channel for observers
// (MessageRouter, telemetry, reconnection logic) to consume.
type Event interface{ isEvent() }

// PeerConnected fires when a new connection is established.
type PeerConnected struct {
	Peer peer.ID
	Addr ma.Multiaddr
}

// PeerDisconnected fires when a connection is torn down.
type PeerDisconnected struct {
	Peer peer.ID
	Addr ma.Multiaddr
}

// MessageReceived fires for every gossipsub message accepted by the
// validator, before router dispatch.
type MessageReceived struct {
	Topic string
	From  peer.ID
	Data  []byte
}

// RoutingUpdated fires when the DHT routing table changes meaningfully
// (peer added/removed).
type RoutingUpdated struct {
	Peer    peer.ID
	Removed bool
}

// ListenAddr fires when the host starts or stops listening on an address.
type ListenAddr struct {
	Addr    ma.Multiaddr
	Removed bool
}

func (PeerConnected) isEvent() {}
func (PeerDisconnected) isEvent() {}
func (MessageReceived) isEvent() {}
func (RoutingUpdated) isEvent() {}
func (ListenAddr) isEvent() {}
