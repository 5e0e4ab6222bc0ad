package swarm

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	pubsub "github.com/libp2p/go-libp2p-pubsub"

	"github.com/agentmesh/node/internal/apperrors"
)

const maintenanceTick = 10 * time.Second

// SwarmDriver owns the host, the combined behaviour, and the driver's own
// mutable state (subscriptions, routing-table snapshot), which only its
// run loop touches. Topic readers and DHT bootstrap/put/get queries run in
// goroutines the loop starts, calling the thread-safe libp2p objects
// directly. This is the command/event pattern of the teacher's
// Network/ServiceRegistry pair, generalized here to one explicit loop
// (original_source/node/src/network.rs's NetworkManager plays the same
// role around a tokio::select! loop).
type SwarmDriver struct {
	host     host.Host
	behavior *CombinedBehavior

	commands chan Command
	events   chan Event

	subs []*pubsub.Subscription

	rtPeers map[peer.ID]struct{}

	mu   sync.Mutex
	done chan struct{}
}

// NewSwarmDriver wraps h and behavior. Run must be called to start the
// event loop; Commands()/Events() give callers (typically a NetworkFacade)
// the channels to talk to it.
func NewSwarmDriver(h host.Host, behavior *CombinedBehavior) *SwarmDriver {
	return &SwarmDriver{
		host:     h,
		behavior: behavior,
		commands: make(chan Command, 64),
		events:   make(chan Event, 256),
		done:     make(chan struct{}),
	}
}

// Commands returns the channel callers send Command values on.
func (d *SwarmDriver) Commands() chan<- Command { return d.commands }

// Events returns the channel the driver publishes Event values on.
// Callers should drain it continuously; while the channel is full, new
// events are dropped.
func (d *SwarmDriver) Events() <-chan Event { return d.events }

// Run subscribes to every topic and libp2p connectivity events, then
// processes commands until ctx is canceled or a Shutdown command arrives.
func (d *SwarmDriver) Run(ctx context.Context) error {
	sub, err := d.host.EventBus().Subscribe([]interface{}{
		new(event.EvtPeerConnectednessChanged),
		new(event.EvtLocalAddressesUpdated),
	})
	if err != nil {
		return apperrors.Wrap(apperrors.KindNetwork, "subscribe connectivity events", err)
	}
	defer sub.Close()

	d.rtPeers = make(map[peer.ID]struct{})

	for _, topic := range d.behavior.Topics {
		s, err := topic.Subscribe()
		if err != nil {
			return apperrors.Wrap(apperrors.KindNetwork, "subscribe topic "+topic.String(), err)
		}
		d.subs = append(d.subs, s)
		go d.readTopic(ctx, s)
	}

	ticker := time.NewTicker(maintenanceTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return nil
		case evt := <-sub.Out():
			d.handleLibp2pEvent(evt)
		case <-ticker.C:
			d.maintain(ctx)
		case cmd := <-d.commands:
			if d.handleCommand(ctx, cmd) {
				return nil
			}
		}
	}
}

func (d *SwarmDriver) readTopic(ctx context.Context, sub *pubsub.Subscription) {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return // ctx canceled or subscription canceled
		}
		if msg.ReceivedFrom == d.host.ID() {
			continue // our own publish, looped back
		}
		d.emit(MessageReceived{Topic: sub.Topic(), From: msg.ReceivedFrom, Data: msg.Data})
	}
}

func (d *SwarmDriver) handleLibp2pEvent(raw interface{}) {
	switch evt := raw.(type) {
	case event.EvtPeerConnectednessChanged:
		switch evt.Connectedness {
		case network.Connected:
			d.emit(PeerConnected{Peer: evt.Peer})
		case network.NotConnected:
			d.emit(PeerDisconnected{Peer: evt.Peer})
		}
	case event.EvtLocalAddressesUpdated:
		for _, a := range evt.Current {
			if a.Action == event.Added {
				d.emit(ListenAddr{Addr: a.Address})
			}
		}
		for _, a := range evt.Removed {
			d.emit(ListenAddr{Addr: a.Address, Removed: true})
		}
	}
}

func (d *SwarmDriver) maintain(ctx context.Context) {
	go func() {
		queryCtx, cancel := context.WithTimeout(ctx, dhtQueryTimeout)
		defer cancel()
		// Best-effort refresh; errors are swallowed, the next tick tries
		// again. Runs off the driver's loop so a slow DHT round-trip never
		// delays the next tick, command, or shutdown signal.
		_ = d.behavior.DHT.Bootstrap(queryCtx)
	}()
	d.pollRoutingTable()
}

// pollRoutingTable diffs the DHT routing table's current peer set against
// the last-seen snapshot and emits RoutingUpdated for every peer added or
// evicted since the previous tick. The DHT exposes no change
// notification, so polling on the maintenance tick (the pattern the rest
// of the pack uses for routing-table observability) is how this node
// learns about it.
func (d *SwarmDriver) pollRoutingTable() {
	current := make(map[peer.ID]struct{})
	for _, p := range d.behavior.DHT.RoutingTable().ListPeers() {
		current[p] = struct{}{}
		if _, known := d.rtPeers[p]; !known {
			d.emit(RoutingUpdated{Peer: p})
		}
	}
	for p := range d.rtPeers {
		if _, still := current[p]; !still {
			d.emit(RoutingUpdated{Peer: p, Removed: true})
		}
	}
	d.rtPeers = current
}

func (d *SwarmDriver) handleCommand(ctx context.Context, cmd Command) (stop bool) {
	switch c := cmd.(type) {
	case Dial:
		err := d.host.Connect(ctx, c.Addr)
		replyErr(c.Reply, err)

	case Publish:
		topic, ok := d.behavior.Topics[c.Topic]
		if !ok {
			replyErr(c.Reply, apperrors.New(apperrors.KindNetwork, "unknown topic "+c.Topic))
			return false
		}
		err := topic.Publish(ctx, c.Data)
		replyErr(c.Reply, err)

	case GetPeers:
		if c.Reply != nil {
			c.Reply <- d.host.Network().Peers()
		}

	case Bootstrap:
		go func() {
			bctx, cancel := context.WithTimeout(ctx, dhtQueryTimeout)
			defer cancel()
			err := d.behavior.DHT.Bootstrap(bctx)
			replyErr(c.Reply, err)
		}()

	case PutRecord:
		go func() {
			pctx, cancel := context.WithTimeout(ctx, dhtQueryTimeout)
			defer cancel()
			err := d.behavior.DHT.PutValue(pctx, dhtRecordKey(c.Key), c.Value)
			replyErr(c.Reply, err)
		}()

	case GetRecord:
		go func() {
			gctx, cancel := context.WithTimeout(ctx, dhtQueryTimeout)
			defer cancel()
			val, err := d.behavior.DHT.GetValue(gctx, dhtRecordKey(c.Key))
			if c.Reply != nil {
				c.Reply <- GetRecordResult{Value: val, Err: err}
			}
		}()

	case Shutdown:
		d.shutdown()
		replyErr(c.Reply, nil)
		return true
	}
	return false
}

func (d *SwarmDriver) shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case <-d.done:
		return // already shut down
	default:
		close(d.done)
	}
	for _, s := range d.subs {
		s.Cancel()
	}
	_ = d.behavior.Close()
	_ = d.host.Close()
}

func (d *SwarmDriver) emit(e Event) {
	select {
	case d.events <- e:
	default:
		// Events channel full: drop rather than block the driver loop.
		// A slow consumer losing a connectivity event is preferable to
		// stalling every other command in flight.
	}
}

func replyErr(ch chan<- error, err error) {
	if ch == nil {
		return
	}
	ch <- err
}

// dhtRecordKey namespaces application records under a fixed prefix so
// they don't collide with libp2p's own /pk and /ipns key spaces.
func dhtRecordKey(key string) string {
	return "/agoramesh/" + hex.EncodeToString([]byte(key))
}
