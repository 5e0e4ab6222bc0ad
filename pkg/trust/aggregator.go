package trust

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/agentmesh/node/pkg/chain"
)

// DefaultCacheTTL matches spec.md §4.8's 60s cache default.
const DefaultCacheTTL = 60 * time.Second

// CacheMetrics receives aggregator cache/chain-call outcomes; nil-safe.
type CacheMetrics interface {
	RecordCacheHit(freshness string) // "fresh" | "stale" | "miss"
	RecordChainCall(result string)   // "ok" | "error"
	RecordBreakerState(state string)
}

// Aggregator computes TrustScore(did) per spec.md §4.8: weighted blend
// of reputation/stake/endorsement, backed by a stale-while-revalidate
// cache and a circuit breaker around the on-chain fetch.
type Aggregator struct {
	registry chain.TrustRegistry
	breaker  *Breaker
	weights  Weights
	ttl      time.Duration
	metrics  CacheMetrics

	mu    sync.Mutex
	cache map[string]CacheEntry

	group singleflight.Group
}

// NewAggregator wires registry behind a breaker using the given weights
// and cache TTL (0 means DefaultCacheTTL).
func NewAggregator(registry chain.TrustRegistry, weights Weights, ttl time.Duration, metrics CacheMetrics) *Aggregator {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Aggregator{
		registry: registry,
		breaker:  NewBreaker(0, 0),
		weights:  weights,
		ttl:      ttl,
		metrics:  metrics,
		cache:    make(map[string]CacheEntry),
	}
}

// GetScore returns the cached score for did when fresh. On a stale hit it
// returns the cached score and kicks off a single-flight async refresh;
// on a cold miss it blocks until the first refresh completes (or ctx is
// done, yielding DefaultScore), per spec.md §4.8.
func (a *Aggregator) GetScore(ctx context.Context, did string) Score {
	now := time.Now()

	a.mu.Lock()
	entry, ok := a.cache[did]
	a.mu.Unlock()

	if ok && !entry.Stale(now) {
		a.record("fresh")
		return entry.Score
	}

	a.triggerRefresh(did)

	if ok {
		a.record("stale")
		return entry.Score
	}

	a.record("miss")
	return a.awaitFirstRefresh(ctx, did)
}

// awaitFirstRefresh blocks on the in-flight refresh for a DID with no
// cache entry at all (a cold miss has nothing else to serve the caller).
func (a *Aggregator) awaitFirstRefresh(ctx context.Context, did string) Score {
	resultCh := make(chan Score, 1)
	go func() {
		a.mu.Lock()
		entry, ok := a.cache[did]
		a.mu.Unlock()
		if ok {
			resultCh <- entry.Score
			return
		}
		resultCh <- a.refresh(context.Background(), did)
	}()

	select {
	case s := <-resultCh:
		return s
	case <-ctx.Done():
		return DefaultScore()
	}
}

func (a *Aggregator) triggerRefresh(did string) {
	go a.refresh(context.Background(), did)
}

// refresh is single-flighted per DID: N concurrent refreshes of one
// score issue exactly one chain fetch (spec.md §8).
func (a *Aggregator) refresh(ctx context.Context, did string) Score {
	v, err, _ := a.group.Do(did, func() (interface{}, error) {
		score, callErr := Call(a.breaker, ctx, func(ctx context.Context) (Score, error) {
			return a.fetchOnChain(ctx, did)
		})
		a.record2(callErr)
		if callErr != nil {
			a.mu.Lock()
			cached, ok := a.cache[did]
			a.mu.Unlock()
			if ok {
				return cached.Score, nil
			}
			return DefaultScore(), nil
		}

		a.mu.Lock()
		a.cache[did] = CacheEntry{DID: did, Score: score, FetchedAt: time.Now(), TTL: a.ttl}
		a.mu.Unlock()
		return score, nil
	})
	if a.metrics != nil {
		a.metrics.RecordBreakerState(a.breaker.State().String())
	}
	if err != nil {
		return DefaultScore()
	}
	return v.(Score)
}

func (a *Aggregator) fetchOnChain(ctx context.Context, did string) (Score, error) {
	details, err := a.registry.GetTrustDetails(ctx, did)
	if err != nil {
		return Score{}, err
	}
	composite := details.Composite
	if composite == 0 {
		// No authoritative on-chain composite: derive one from the
		// fetched components using the local weights (spec.md §9).
		composite = a.weights.Composite(details.Reputation, details.Stake, details.Endorsement)
	}
	return Score{
		Reputation:  details.Reputation,
		Stake:       details.Stake,
		Endorsement: details.Endorsement,
		Composite:   composite,
		Source:      SourceOnChain,
	}.Clamp(), nil
}

// ApplyObservation folds a gossip-derived observation into the cached
// score for its subject: "success" raises reputation by one, "failure" and
// "dispute" lower it by one (not below zero). The composite is recomputed
// with local weights only when the cached score did not come from the
// chain; an on-chain composite stays as fetched until the next refresh.
func (a *Aggregator) ApplyObservation(obs Observation) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.cache[obs.SubjectDID]
	if !ok {
		entry = CacheEntry{DID: obs.SubjectDID, Score: DefaultScore(), FetchedAt: time.Now(), TTL: a.ttl}
	}

	delta := uint64(1)
	switch obs.Outcome {
	case "success":
		entry.Score.Reputation += delta
	case "failure", "dispute":
		if entry.Score.Reputation > 0 {
			entry.Score.Reputation--
		}
	}
	entry.Score = entry.Score.Clamp()
	if entry.Score.Source != SourceOnChain {
		entry.Score.Composite = a.weights.Composite(entry.Score.Reputation, entry.Score.Stake, entry.Score.Endorsement)
		entry.Score.Source = SourceGossip
	}
	a.cache[obs.SubjectDID] = entry
}

// BreakerState reports the current state of the chain-call circuit
// breaker, for health reporting.
func (a *Aggregator) BreakerState() State {
	return a.breaker.State()
}

func (a *Aggregator) record(freshness string) {
	if a.metrics != nil {
		a.metrics.RecordCacheHit(freshness)
	}
}

func (a *Aggregator) record2(err error) {
	if a.metrics == nil {
		return
	}
	if err != nil {
		a.metrics.RecordChainCall("error")
		return
	}
	a.metrics.RecordChainCall("ok")
}
