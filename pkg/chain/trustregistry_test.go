package chain

import "testing"

func TestDIDHashIsDeterministic(t *testing.T) {
	did := "did:agentmesh:base-sepolia:abc123"
	h1 := DIDHash(did)
	h2 := DIDHash(did)
	if h1 != h2 {
		t.Fatalf("DIDHash not deterministic: %x != %x", h1, h2)
	}
}

func TestDIDHashDiffersByDID(t *testing.T) {
	h1 := DIDHash("did:agentmesh:base-sepolia:abc123")
	h2 := DIDHash("did:agentmesh:base-sepolia:xyz789")
	if h1 == h2 {
		t.Fatal("expected distinct DIDs to hash differently")
	}
}

func TestNewEthClientRejectsInvalidAddress(t *testing.T) {
	_, err := NewEthClient("https://sepolia.base.org", "not-an-address")
	if err == nil {
		t.Fatal("expected error for invalid contract address")
	}
}
