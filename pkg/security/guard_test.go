package security

import (
	"net"
	"testing"
)

func TestValidateNetworkConfigRejectsEmptyListenAddresses(t *testing.T) {
	if err := ValidateNetworkConfig(10, nil); err == nil {
		t.Fatal("expected error for empty listen addresses")
	}
}

func TestValidateNetworkConfigRejectsLowMaxConnections(t *testing.T) {
	err := ValidateNetworkConfig(1, []string{"/ip4/0.0.0.0/tcp/4001"})
	if err == nil {
		t.Fatal("expected error for max_connections below MinBootstrapPeers")
	}
}

func TestValidateNetworkConfigAccepts(t *testing.T) {
	err := ValidateNetworkConfig(50, []string{"/ip4/0.0.0.0/tcp/4001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateBootstrapPeersRejectsMalformedAddr(t *testing.T) {
	err := ValidateBootstrapPeers([]string{
		"/ip4/10.0.0.1/tcp/4001",
		"/ip4/192.168.1.1/tcp/4001",
		"not-a-multiaddr",
	})
	if err == nil {
		t.Fatal("expected error for malformed bootstrap peer")
	}
}

func TestValidateBootstrapPeersAllowsEmpty(t *testing.T) {
	if err := ValidateBootstrapPeers(nil); err != nil {
		t.Fatalf("empty bootstrap list should be allowed, got %v", err)
	}
}

func TestValidateBootstrapPeersRejectsTooFew(t *testing.T) {
	err := ValidateBootstrapPeers([]string{
		"/ip4/10.0.0.1/tcp/4001",
		"/ip4/10.0.0.2/tcp/4001",
	})
	if err == nil {
		t.Fatal("expected error for fewer than MinBootstrapPeers")
	}
}

func TestValidateBootstrapPeersRejectsSubnetDomination(t *testing.T) {
	err := ValidateBootstrapPeers([]string{
		"/ip4/10.0.0.1/tcp/4001",
		"/ip4/10.0.0.2/tcp/4001",
		"/ip4/192.168.1.1/tcp/4001",
	})
	if err == nil {
		t.Fatal("expected error when one /24 supplies more than half the bootstrap peers")
	}
}

func TestValidateBootstrapPeersAcceptsDiverseSubnets(t *testing.T) {
	err := ValidateBootstrapPeers([]string{
		"/ip4/10.0.0.1/tcp/4001",
		"/ip4/192.168.1.1/tcp/4001",
		"/ip4/172.16.0.1/tcp/4001",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSubnetTrackerEnforcesLimit(t *testing.T) {
	st := NewSubnetTracker24(2)
	a := mustParseIP(t, "10.0.0.1")
	b := mustParseIP(t, "10.0.0.2")
	c := mustParseIP(t, "10.0.0.3")

	if !st.Allow(a) || !st.Allow(b) {
		t.Fatal("expected first two addresses in the same /24 to be allowed")
	}
	if st.Allow(c) {
		t.Fatal("expected third address in the same /24 to be rejected")
	}

	st.Release(a)
	if !st.Allow(c) {
		t.Fatal("expected slot freed by Release to admit another peer")
	}
}

func TestPerIPRateLimiterAcceptsUpToLimitThenRefuses(t *testing.T) {
	p := NewPerIPRateLimiter(60)
	ip := mustParseIP(t, "192.168.1.5")

	for i := 0; i < 60; i++ {
		if !p.Allow(ip) {
			t.Fatalf("expected connection %d of 60 to be accepted", i+1)
		}
	}
	if p.Allow(ip) {
		t.Fatal("expected the 61st connection within the minute to be refused")
	}
}

func TestPerIPRateLimiterTracksAddressesIndependently(t *testing.T) {
	p := NewPerIPRateLimiter(1)
	a := mustParseIP(t, "192.168.1.5")
	b := mustParseIP(t, "192.168.1.6")

	if !p.Allow(a) {
		t.Fatal("expected first connection from a to be allowed")
	}
	if p.Allow(a) {
		t.Fatal("expected second connection from a to be refused at limit 1")
	}
	if !p.Allow(b) {
		t.Fatal("expected a distinct IP to have its own, unexhausted bucket")
	}
}

func mustParseIP(t *testing.T, s string) net.IP {
	t.Helper()
	ip := net.ParseIP(s)
	if ip == nil {
		t.Fatalf("invalid test IP %q", s)
	}
	return ip
}
