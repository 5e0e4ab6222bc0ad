// Package security implements the node's admission and validation layer:
// a libp2p connmgr.ConnectionGater that screens inbound connections
// before any cryptographic handshake runs, plus the config validators the
// original node ran at startup. Grounded on the teacher's
// internal/auth/gater.go (two-phase gating: cheap pre-handshake check,
// authoritative post-handshake check) and internal/validate/network.go
// (sentinel-error validator style), generalized from an authorized-keys
// allowlist to the rate-limit/subnet-cap admission model described in
// original_source/node/src/network.rs.
package security

import (
	"fmt"
	"net"

	"github.com/libp2p/go-libp2p/core/control"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/agentmesh/node/internal/apperrors"
)

// Guard is the node's connmgr.ConnectionGater. Admission is decided
// entirely in InterceptAccept, before the crypto handshake: global rate
// limit, then per-IP cap, then /24 cap, then /16 cap, in that order
// (SPEC_FULL.md §4.2). InterceptSecured always allows, since by the time
// a connection is secured it has already cleared every check that
// matters; this avoids running expensive crypto for peers that would be
// refused anyway.
type Guard struct {
	global  *GlobalConnectionRateLimiter
	perIP   *PerIPRateLimiter
	sub24   *SubnetTracker
	sub16   *SubnetTracker
	metrics MetricsSink
}

// MetricsSink receives admission decisions; nil-safe.
type MetricsSink interface {
	RecordDecision(stage string, allowed bool)
}

// NewGuard builds a Guard with the given per-minute connection budget and
// per-IP/subnet caps. Pass 0 for any cap to use the SPEC_FULL.md default.
func NewGuard(maxConnsPerMinute, maxPerIP, maxPerSubnet24, maxPerSubnet16 int, metrics MetricsSink) *Guard {
	if maxPerIP <= 0 {
		maxPerIP = DefaultMaxConnectionsPerIP
	}
	if maxPerSubnet24 <= 0 {
		maxPerSubnet24 = MaxPeersPerSubnet24
	}
	if maxPerSubnet16 <= 0 {
		maxPerSubnet16 = MaxPeersPerSubnet16
	}
	return &Guard{
		global:  NewGlobalConnectionRateLimiter(maxConnsPerMinute),
		perIP:   NewPerIPRateLimiter(maxPerIP),
		sub24:   NewSubnetTracker24(maxPerSubnet24),
		sub16:   NewSubnetTracker16(maxPerSubnet16),
		metrics: metrics,
	}
}

func (g *Guard) record(stage string, allowed bool) {
	if g.metrics != nil {
		g.metrics.RecordDecision(stage, allowed)
	}
}

// InterceptPeerDial always allows outbound dials; DHT and bootstrap
// connectivity depends on being able to reach anyone.
func (g *Guard) InterceptPeerDial(peer.ID) bool { return true }

// InterceptAddrDial always allows outbound dials to a specific address.
func (g *Guard) InterceptAddrDial(peer.ID, ma.Multiaddr) bool { return true }

// InterceptAccept runs the full admission chain before the handshake.
func (g *Guard) InterceptAccept(cm network.ConnMultiaddrs) bool {
	ip, ok := hostIP(cm.RemoteMultiaddr())
	if !ok {
		// Non-IP transport (e.g. circuit relay): admission by IP doesn't
		// apply, defer to the global budget only.
		allowed := g.global.Allow()
		g.record("global", allowed)
		return allowed
	}

	if !g.global.Allow() {
		g.record("global", false)
		return false
	}
	if !g.perIP.Allow(ip) {
		g.record("per_ip", false)
		return false
	}
	if !g.sub24.Allow(ip) {
		g.record("subnet24", false)
		return false
	}
	if !g.sub16.Allow(ip) {
		g.sub24.Release(ip)
		g.record("subnet16", false)
		return false
	}
	g.record("subnet16", true)
	return true
}

// InterceptSecured is a no-op; all admission happened pre-handshake.
func (g *Guard) InterceptSecured(dir network.Direction, _ peer.ID, _ network.ConnMultiaddrs) bool {
	return true
}

// InterceptUpgraded is a no-op; nothing further to check after mux
// negotiation.
func (g *Guard) InterceptUpgraded(network.Conn) (bool, control.DisconnectReason) {
	return true, 0
}

// OnDisconnected releases the subnet slots a connection held. agentmeshd's
// event loop calls it for each PeerDisconnected event that carries an
// address. The per-IP admission check is a
// rate limiter, not a concurrent-connection count, so it has nothing to
// release.
func (g *Guard) OnDisconnected(addr ma.Multiaddr) {
	ip, ok := hostIP(addr)
	if !ok {
		return
	}
	g.sub24.Release(ip)
	g.sub16.Release(ip)
}

func hostIP(addr ma.Multiaddr) (net.IP, bool) {
	if addr == nil {
		return nil, false
	}
	v, err := addr.ValueForProtocol(ma.P_IP4)
	if err == nil {
		return net.ParseIP(v), true
	}
	v, err = addr.ValueForProtocol(ma.P_IP6)
	if err == nil {
		return net.ParseIP(v), true
	}
	return nil, false
}

// ValidateNetworkConfig checks that maxConnections is large enough to
// sustain the minimum bootstrap fan-out and that listenAddresses is
// non-empty, matching original_source/node/src/network.rs's startup
// validation.
func ValidateNetworkConfig(maxConnections uint32, listenAddresses []string) error {
	if len(listenAddresses) == 0 {
		return apperrors.New(apperrors.KindValidation, "network: at least one listen address is required")
	}
	if maxConnections < MinBootstrapPeers {
		return apperrors.New(apperrors.KindValidation,
			fmt.Sprintf("network: max_connections (%d) must be at least %d", maxConnections, MinBootstrapPeers))
	}
	return nil
}

// ValidateBootstrapPeers rejects a malformed address, a non-empty set
// smaller than MinBootstrapPeers, or a set in which a single /24 subnet
// supplies more than half the peers (SPEC_FULL.md §4.2 eclipse
// prevention).
func ValidateBootstrapPeers(addrs []string) error {
	if len(addrs) == 0 {
		return nil // standalone/first-node bootstrap is legitimate
	}
	if len(addrs) < MinBootstrapPeers {
		return apperrors.New(apperrors.KindValidation,
			fmt.Sprintf("network: %d bootstrap peers configured, need at least %d", len(addrs), MinBootstrapPeers))
	}

	subnet24Count := make(map[string]int)
	for _, a := range addrs {
		parsed, err := ma.NewMultiaddr(a)
		if err != nil {
			return apperrors.Wrap(apperrors.KindValidation, fmt.Sprintf("bootstrap peer %q", a), err)
		}
		if ip, ok := hostIP(parsed); ok {
			if v4 := ip.To4(); v4 != nil {
				subnet24Count[fmt.Sprintf("%d.%d.%d", v4[0], v4[1], v4[2])]++
			}
		}
	}
	for subnet, count := range subnet24Count {
		if count*2 > len(addrs) {
			return apperrors.New(apperrors.KindValidation,
				fmt.Sprintf("network: subnet %s.0/24 supplies %d of %d bootstrap peers, exceeding half (eclipse risk)", subnet, count, len(addrs)))
		}
	}
	return nil
}
