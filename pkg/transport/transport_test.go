package transport

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"
)

func TestBuildHostRejectsNilKey(t *testing.T) {
	_, err := BuildHost(nil, Options{})
	if err == nil {
		t.Fatal("expected error for nil private key")
	}
}

func TestBuildHostListensOnConfiguredAddress(t *testing.T) {
	priv, _, err := crypto.GenerateEd25519Key(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	h, err := BuildHost(priv, Options{ListenAddresses: []string{"/ip4/127.0.0.1/tcp/0"}})
	if err != nil {
		t.Fatalf("BuildHost: %v", err)
	}
	defer h.Close()

	if len(h.Addrs()) == 0 {
		t.Error("expected at least one listen address")
	}
}
