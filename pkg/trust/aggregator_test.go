package trust

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/agentmesh/node/pkg/chain"
)

// TestMain verifies that the aggregator's background refresh goroutines
// (triggerRefresh, awaitFirstRefresh) never outlive their test, matching
// the teacher's package-wide goroutine-leak discipline.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRegistry struct {
	mu      sync.Mutex
	calls   int32
	details chain.TrustDetails
	err     error
	delay   time.Duration
}

func (f *fakeRegistry) GetTrustScore(ctx context.Context, did string) (uint64, error) {
	d, err := f.GetTrustDetails(ctx, did)
	return d.Composite, err
}

func (f *fakeRegistry) GetTrustDetails(ctx context.Context, did string) (chain.TrustDetails, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return chain.TrustDetails{}, f.err
	}
	return f.details, nil
}

func (f *fakeRegistry) GetReputation(ctx context.Context, did string) (chain.ReputationDetails, error) {
	return chain.ReputationDetails{}, nil
}

func waitForCalls(t *testing.T, f *fakeRegistry, want int32) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&f.calls) >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d registry calls, got %d", want, atomic.LoadInt32(&f.calls))
}

func TestGetScoreColdMissBlocksForFirstFetch(t *testing.T) {
	reg := &fakeRegistry{details: chain.TrustDetails{Composite: 500, Reputation: 500}}
	a := NewAggregator(reg, DefaultWeights, time.Minute, nil)

	got := a.GetScore(context.Background(), "did:agentmesh:base:x")
	if got.Composite != 500 {
		t.Fatalf("expected composite 500, got %d", got.Composite)
	}
	if got.Source != SourceOnChain {
		t.Fatalf("expected SourceOnChain, got %s", got.Source)
	}
}

func TestGetScoreFreshHitSkipsRegistry(t *testing.T) {
	reg := &fakeRegistry{details: chain.TrustDetails{Composite: 500}}
	a := NewAggregator(reg, DefaultWeights, time.Minute, nil)

	a.GetScore(context.Background(), "did:agentmesh:base:x")
	before := atomic.LoadInt32(&reg.calls)

	got := a.GetScore(context.Background(), "did:agentmesh:base:x")
	if got.Composite != 500 {
		t.Fatalf("expected composite 500, got %d", got.Composite)
	}
	if atomic.LoadInt32(&reg.calls) != before {
		t.Fatal("expected a fresh cache hit not to call the registry again")
	}
}

func TestGetScoreStaleHitReturnsCachedAndRefreshesAsync(t *testing.T) {
	reg := &fakeRegistry{details: chain.TrustDetails{Composite: 500}}
	a := NewAggregator(reg, DefaultWeights, time.Millisecond, nil)

	a.GetScore(context.Background(), "did:agentmesh:base:x")
	waitForCalls(t, reg, 1)
	time.Sleep(5 * time.Millisecond) // let the entry go stale

	reg.mu.Lock()
	reg.details.Composite = 900
	reg.mu.Unlock()

	got := a.GetScore(context.Background(), "did:agentmesh:base:x")
	if got.Composite != 500 {
		t.Fatalf("expected stale call to return the old cached value immediately, got %d", got.Composite)
	}

	waitForCalls(t, reg, 2)
	time.Sleep(5 * time.Millisecond)

	got2 := a.GetScore(context.Background(), "did:agentmesh:base:x")
	if got2.Composite != 900 {
		t.Fatalf("expected the background refresh to have updated the cache, got %d", got2.Composite)
	}
}

func TestGetScoreFallsBackToDefaultWhenBreakerOpenAndNoCache(t *testing.T) {
	reg := &fakeRegistry{err: errors.New("rpc down")}
	a := NewAggregator(reg, DefaultWeights, time.Minute, nil)
	a.breaker = NewBreaker(1, time.Hour)

	got := a.GetScore(context.Background(), "did:agentmesh:base:x")
	if got.Source != SourceDefault {
		t.Fatalf("expected SourceDefault fallback, got %s", got.Source)
	}
}

func TestConcurrentRefreshesAreSingleFlighted(t *testing.T) {
	reg := &fakeRegistry{details: chain.TrustDetails{Composite: 500}, delay: 20 * time.Millisecond}
	a := NewAggregator(reg, DefaultWeights, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.GetScore(context.Background(), "did:agentmesh:base:shared")
		}()
	}
	wg.Wait()

	if calls := atomic.LoadInt32(&reg.calls); calls != 1 {
		t.Fatalf("expected exactly 1 registry call for concurrent cold misses, got %d", calls)
	}
}

func TestApplyObservationAdjustsGossipDerivedComposite(t *testing.T) {
	reg := &fakeRegistry{details: chain.TrustDetails{Composite: 500}}
	a := NewAggregator(reg, DefaultWeights, time.Minute, nil)

	a.ApplyObservation(Observation{SubjectDID: "did:agentmesh:base:y", Outcome: "success"})
	a.mu.Lock()
	entry := a.cache["did:agentmesh:base:y"]
	a.mu.Unlock()

	if entry.Score.Source != SourceGossip {
		t.Fatalf("expected SourceGossip, got %s", entry.Score.Source)
	}
	if entry.Score.Reputation != 1 {
		t.Fatalf("expected reputation 1, got %d", entry.Score.Reputation)
	}
}
