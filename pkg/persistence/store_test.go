package persistence

import (
	"context"
	"errors"
	"testing"
)

func TestMemStoreGetMissingReturnsErrNotFound(t *testing.T) {
	s := NewMemStore()
	_, err := s.Get(context.Background(), FamilyCapabilityCards, []byte("missing"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemStorePutGetRoundTrip(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	if err := s.Put(ctx, FamilyTrustCache, []byte("did:x"), []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, FamilyTrustCache, []byte("did:x"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("got %q", got)
	}
}

func TestMemStoreDeleteRemovesKey(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	_ = s.Put(ctx, FamilyDHTRecords, []byte("k"), []byte("v"))
	if err := s.Delete(ctx, FamilyDHTRecords, []byte("k")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, FamilyDHTRecords, []byte("k")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemStoreIterateIsKeyOrdered(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	for _, k := range []string{"c", "a", "b"} {
		_ = s.Put(ctx, FamilyCapabilityCards, []byte(k), []byte(k))
	}

	var seen []string
	err := s.Iterate(ctx, FamilyCapabilityCards, func(key, value []byte) bool {
		seen = append(seen, string(key))
		return true
	})
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	want := []string{"a", "b", "c"}
	for i, k := range want {
		if seen[i] != k {
			t.Errorf("seen[%d] = %q, want %q", i, seen[i], k)
		}
	}
}

func TestMemStoreIterateStopsEarly(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		_ = s.Put(ctx, FamilyCapabilityCards, []byte(k), []byte(k))
	}

	count := 0
	_ = s.Iterate(ctx, FamilyCapabilityCards, func(key, value []byte) bool {
		count++
		return count < 2
	})
	if count != 2 {
		t.Errorf("count = %d, want 2 (stop after 2nd entry)", count)
	}
}

func TestMemStoreIsolatesFamilies(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	_ = s.Put(ctx, FamilyCapabilityCards, []byte("k"), []byte("cards"))
	_ = s.Put(ctx, FamilyTrustCache, []byte("k"), []byte("trust"))

	got, _ := s.Get(ctx, FamilyCapabilityCards, []byte("k"))
	if string(got) != "cards" {
		t.Errorf("got %q", got)
	}
}
