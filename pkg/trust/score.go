// Package trust computes a node's composite trust score for a DID,
// fusing on-chain TrustRegistry state with gossip-propagated
// observations behind a circuit breaker and a stale-while-revalidate
// cache (spec.md §4.8). Grounded on
// original_source/node/src/contract.rs for the on-chain call shape and
// on spec.md §9's resolution that an on-chain compositeScore, when
// present, is authoritative over locally derived weights.
package trust

import (
	"time"
)

// ScoreCeiling is the maximum value of any trust component (spec.md §3).
const ScoreCeiling = 10000

// Source records where a TrustCacheEntry's score came from.
type Source string

const (
	SourceOnChain Source = "onchain"
	SourceGossip  Source = "gossip"
	SourceDefault Source = "default"
)

// Score is a composite trust score with its components, each clamped to
// [0, ScoreCeiling].
type Score struct {
	Reputation uint64
	Stake      uint64
	Endorsement uint64
	Composite  uint64
	Source     Source
}

// Clamp bounds every component to [0, ScoreCeiling].
func (s Score) Clamp() Score {
	clamp := func(v uint64) uint64 {
		if v > ScoreCeiling {
			return ScoreCeiling
		}
		return v
	}
	s.Reputation = clamp(s.Reputation)
	s.Stake = clamp(s.Stake)
	s.Endorsement = clamp(s.Endorsement)
	s.Composite = clamp(s.Composite)
	return s
}

// Weights is the local blend used when deriving a composite from
// gossip-only observations, or from on-chain components when the chain
// reports a zero compositeScore (spec.md §9 — a non-zero on-chain
// compositeScore wins). Defaults 50/30/20 per spec.md §3.
type Weights struct {
	Reputation  float64
	Stake       float64
	Endorsement float64
}

// DefaultWeights matches spec.md §3's default blend.
var DefaultWeights = Weights{Reputation: 0.5, Stake: 0.3, Endorsement: 0.2}

// Composite blends reputation/stake/endorsement per w, clamped to
// [0, ScoreCeiling].
func (w Weights) Composite(reputation, stake, endorsement uint64) uint64 {
	v := w.Reputation*float64(reputation) + w.Stake*float64(stake) + w.Endorsement*float64(endorsement)
	if v < 0 {
		return 0
	}
	if v > ScoreCeiling {
		return ScoreCeiling
	}
	return uint64(v)
}

// Observation is a single gossip trust signal (spec.md §3
// TrustObservation), retained only while it influences the cached
// composite score.
type Observation struct {
	SubjectDID     string
	ObserverPeerID string
	Outcome        string // "success" | "failure" | "dispute"
	VolumeUSD      float64
	Timestamp      time.Time
}

// CacheEntry is a cached score with its freshness window (spec.md §3
// TrustCacheEntry).
type CacheEntry struct {
	DID       string
	Score     Score
	FetchedAt time.Time
	TTL       time.Duration
}

// Stale reports whether the entry should be refreshed.
func (e CacheEntry) Stale(now time.Time) bool {
	return !now.Before(e.FetchedAt.Add(e.TTL))
}

// DefaultScore is returned when the breaker is open and no cache exists
// (spec.md §4.8 Fallback).
func DefaultScore() Score {
	return Score{Source: SourceDefault}
}
