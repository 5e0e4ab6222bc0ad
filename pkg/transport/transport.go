// Package transport builds the libp2p host this node runs on: TCP, QUIC
// and WebSocket transports plus NAT traversal and relay options, adapted
// from the teacher's pkg/p2pnet.New (network.go). Unlike the teacher,
// which built a Network that also owned service discovery and naming,
// BuildHost returns only the bare host.Host — everything above it
// (gossipsub, DHT, identify, mDNS) is wired by pkg/swarm against a
// connmgr.ConnectionGater supplied by pkg/security, not baked in here.
package transport

import (
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/connmgr"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	libp2pquic "github.com/libp2p/go-libp2p/p2p/transport/quic"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	ws "github.com/libp2p/go-libp2p/p2p/transport/websocket"

	"github.com/agentmesh/node/internal/apperrors"
)

// Options configures BuildHost. ListenAddresses are multiaddr strings
// (SPEC_FULL.md §6's [network].listen_addresses); Gater, when non-nil, is
// installed as the host's connmgr.ConnectionGater.
type Options struct {
	ListenAddresses []string
	Gater           connmgr.ConnectionGater

	EnableNATPortMap   bool
	EnableHolePunching bool
}

// BuildHost constructs a libp2p host.Host bound to priv's identity.
func BuildHost(priv crypto.PrivKey, opts Options) (host.Host, error) {
	if priv == nil {
		return nil, apperrors.New(apperrors.KindConfig, "transport: private key required")
	}

	hostOpts := []libp2p.Option{
		libp2p.Identity(priv),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Transport(libp2pquic.NewTransport),
		libp2p.Transport(ws.New),
	}

	if len(opts.ListenAddresses) > 0 {
		hostOpts = append(hostOpts, libp2p.ListenAddrStrings(opts.ListenAddresses...))
	}

	if opts.EnableNATPortMap {
		hostOpts = append(hostOpts, libp2p.NATPortMap())
	}
	if opts.EnableHolePunching {
		hostOpts = append(hostOpts, libp2p.EnableHolePunching())
	}

	if opts.Gater != nil {
		hostOpts = append(hostOpts, libp2p.ConnectionGater(opts.Gater))
	}

	h, err := libp2p.New(hostOpts...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransport, "build libp2p host", err)
	}
	return h, nil
}
