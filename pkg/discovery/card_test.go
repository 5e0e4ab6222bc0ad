package discovery

import "testing"

func validCard() CapabilityCard {
	return CapabilityCard{
		DID:          "did:agentmesh:base:abc123",
		Name:         "Example Agent",
		Description:  "does example things",
		URL:          "https://example.com/agent",
		Capabilities: []Capability{{ID: "translate"}},
		Provider:     "example-corp",
	}
}

func TestValidateRejectsMalformedDID(t *testing.T) {
	c := validCard()
	c.DID = "not-a-did"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for malformed DID")
	}
}

func TestValidateRejectsEmptyCapabilities(t *testing.T) {
	c := validCard()
	c.Capabilities = nil
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for empty capabilities")
	}
}

func TestValidateRejectsUnparsableURL(t *testing.T) {
	c := validCard()
	c.URL = "://not a url"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for unparsable URL")
	}
}

func TestValidateAcceptsWellFormedCard(t *testing.T) {
	if err := validCard().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDHTKeyIsDeterministic(t *testing.T) {
	k1 := DHTKey("did:agentmesh:base:abc123")
	k2 := DHTKey("did:agentmesh:base:abc123")
	if k1 != k2 {
		t.Fatal("expected DHTKey to be deterministic")
	}
}

func TestVerifyDHTValueRejectsKeyMismatch(t *testing.T) {
	c := validCard()
	raw, err := marshalCard(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	wrongKey := DHTKey("did:agentmesh:base:someone-else")
	if _, err := VerifyDHTValue(wrongKey, raw); err == nil {
		t.Fatal("expected error for DID/key mismatch")
	}
}

func TestVerifyDHTValueAcceptsMatchingKey(t *testing.T) {
	c := validCard()
	raw, err := marshalCard(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := VerifyDHTValue(DHTKey(c.DID), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DID != c.DID {
		t.Errorf("got DID %q, want %q", got.DID, c.DID)
	}
}
