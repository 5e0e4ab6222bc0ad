package swarm

import (
	"context"
	"errors"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/routing"

	"github.com/agentmesh/node/internal/apperrors"
)

// dhtOperationTimeout bounds every facade call that talks to the driver
// through its command channel, matching original_source/node/src/network.rs's
// get_dht_record 30-second tokio::time::timeout.
const dhtOperationTimeout = 30 * time.Second

// NetworkFacade is the narrow, synchronous-looking API the rest of the
// node (discovery, trust, CLI tooling) programs against, hiding the
// SwarmDriver's command/event channels. One-for-one with
// original_source/node/src/network.rs's NetworkManager: a thin façade
// around a background actor, not a reimplementation of its logic.
type NetworkFacade struct {
	localPeerID peer.ID
	commands    chan<- Command
}

// NewNetworkFacade wraps a running SwarmDriver's command channel.
func NewNetworkFacade(localPeerID peer.ID, commands chan<- Command) *NetworkFacade {
	return &NetworkFacade{localPeerID: localPeerID, commands: commands}
}

// LocalPeerID returns this node's own peer ID.
func (f *NetworkFacade) LocalPeerID() peer.ID { return f.localPeerID }

// Connect dials addr and waits for the driver to report success or failure.
func (f *NetworkFacade) Connect(ctx context.Context, addr peer.AddrInfo) error {
	reply := make(chan error, 1)
	if err := f.send(ctx, Dial{Addr: addr, Reply: reply}); err != nil {
		return err
	}
	return f.await(ctx, reply)
}

// Publish sends data on topic.
func (f *NetworkFacade) Publish(ctx context.Context, topic string, data []byte) error {
	reply := make(chan error, 1)
	if err := f.send(ctx, Publish{Topic: topic, Data: data, Reply: reply}); err != nil {
		return err
	}
	return f.await(ctx, reply)
}

// ConnectedPeers returns the driver's current connected-peer snapshot.
func (f *NetworkFacade) ConnectedPeers(ctx context.Context) ([]peer.ID, error) {
	reply := make(chan []peer.ID, 1)
	if err := f.send(ctx, GetPeers{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case peers := <-reply:
		return peers, nil
	case <-ctx.Done():
		return nil, apperrors.Wrap(apperrors.KindNetwork, "connected peers", ctx.Err())
	case <-time.After(dhtOperationTimeout):
		return nil, apperrors.New(apperrors.KindNetwork, "connected peers: timed out")
	}
}

// Bootstrap runs a DHT bootstrap round.
func (f *NetworkFacade) Bootstrap(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := f.send(ctx, Bootstrap{Reply: reply}); err != nil {
		return err
	}
	return f.await(ctx, reply)
}

// PutDHTRecord stores value under key in the DHT.
func (f *NetworkFacade) PutDHTRecord(ctx context.Context, key string, value []byte) error {
	reply := make(chan error, 1)
	if err := f.send(ctx, PutRecord{Key: key, Value: value, Reply: reply}); err != nil {
		return err
	}
	return f.await(ctx, reply)
}

// GetDHTRecord fetches the value stored under key, bounded by
// dhtOperationTimeout. A missing record is reported as (nil, nil), not
// an error — spec.md §4.7: "not_found is a normal outcome".
func (f *NetworkFacade) GetDHTRecord(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, dhtOperationTimeout)
	defer cancel()

	reply := make(chan GetRecordResult, 1)
	if err := f.send(ctx, GetRecord{Key: key, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		if errors.Is(res.Err, routing.ErrNotFound) {
			return nil, nil
		}
		if res.Err != nil {
			return nil, apperrors.Wrap(apperrors.KindNetwork, "get DHT record", res.Err)
		}
		return res.Value, nil
	case <-ctx.Done():
		return nil, apperrors.Wrap(apperrors.KindNetwork, "get DHT record", ctx.Err())
	}
}

// Shutdown asks the driver to tear down the host and stop its loop.
func (f *NetworkFacade) Shutdown(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := f.send(ctx, Shutdown{Reply: reply}); err != nil {
		return err
	}
	return f.await(ctx, reply)
}

func (f *NetworkFacade) send(ctx context.Context, cmd Command) error {
	select {
	case f.commands <- cmd:
		return nil
	case <-ctx.Done():
		return apperrors.Wrap(apperrors.KindNetwork, "send command", ctx.Err())
	}
}

func (f *NetworkFacade) await(ctx context.Context, reply <-chan error) error {
	select {
	case err := <-reply:
		if err != nil {
			return apperrors.Wrap(apperrors.KindNetwork, "swarm command", err)
		}
		return nil
	case <-ctx.Done():
		return apperrors.Wrap(apperrors.KindNetwork, "await command reply", ctx.Err())
	case <-time.After(dhtOperationTimeout):
		return apperrors.New(apperrors.KindNetwork, "swarm command: timed out")
	}
}
