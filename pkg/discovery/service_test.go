package discovery

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeNetwork struct {
	mu      sync.Mutex
	records map[string][]byte
	gets    int32
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{records: make(map[string][]byte)}
}

func (f *fakeNetwork) PutDHTRecord(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[key] = value
	return nil
}

func (f *fakeNetwork) GetDHTRecord(_ context.Context, key string) ([]byte, error) {
	atomic.AddInt32(&f.gets, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (f *fakeNetwork) Publish(_ context.Context, topic string, data []byte) error {
	return nil
}

func TestRegisterThenLookupReturnsSameCardWithoutNetwork(t *testing.T) {
	net := newFakeNetwork()
	s := New(net, nil, "local-peer")
	card := validCard()

	if err := s.Register(context.Background(), card); err != nil {
		t.Fatalf("Register: %v", err)
	}

	before := atomic.LoadInt32(&net.gets)
	got, ok, err := s.Lookup(context.Background(), card.DID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatal("expected card to be found")
	}
	if got.DID != card.DID {
		t.Errorf("got DID %q, want %q", got.DID, card.DID)
	}
	if atomic.LoadInt32(&net.gets) != before {
		t.Error("expected fresh in-memory lookup to skip the network")
	}
}

func TestLookupMissingDIDReturnsNotFoundWithoutError(t *testing.T) {
	net := newFakeNetwork()
	s := New(net, nil, "local-peer")

	_, ok, err := s.Lookup(context.Background(), "did:agentmesh:base:missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a missing DID")
	}
}

func TestSearchScoresCapabilityExactMatchHighest(t *testing.T) {
	net := newFakeNetwork()
	s := New(net, nil, "local-peer")

	a := validCard()
	a.DID = "did:agentmesh:base:a"
	a.Capabilities = []Capability{{ID: "translate"}}
	b := validCard()
	b.DID = "did:agentmesh:base:b"
	b.Name = "translate-helper"
	b.Capabilities = []Capability{{ID: "summarize"}}

	_ = s.Register(context.Background(), a)
	_ = s.Register(context.Background(), b)

	results := s.Search("translate")
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Card.DID != a.DID {
		t.Errorf("expected exact capability match to rank first, got %q", results[0].Card.DID)
	}
}

func TestRegisterRejectsNonMonotonicPublishedAt(t *testing.T) {
	net := newFakeNetwork()
	s := New(net, nil, "local-peer")
	card := validCard()

	if err := s.Register(context.Background(), card); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	// Force the existing entry's timestamp into the future so the second
	// register can never be "after" it.
	s.mu.Lock()
	entry := s.byDID[card.DID]
	entry.publishedAt = entry.publishedAt.Add(time.Hour)
	s.byDID[card.DID] = entry
	s.mu.Unlock()

	if err := s.Register(context.Background(), card); err == nil {
		t.Fatal("expected error for non-monotonic published_at")
	}
}
