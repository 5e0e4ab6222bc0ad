package discovery

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/agentmesh/node/internal/apperrors"
)

// CardTTL is how long a cached card is served from memory before a
// lookup falls through to the DHT (spec.md §4.7).
const CardTTL = 30 * time.Minute

// RepublishBackoff governs capability-card republish retries (spec.md
// §4.7 and §7): base 2s, cap 60s, 6 attempts, matching the teacher's
// peermanager.go constant-naming style.
var RepublishBackoff = apperrors.RetryPolicy{Base: 2 * time.Second, Cap: 60 * time.Second, MaxAttempts: 6}

// Network is the narrow subset of the swarm NetworkFacade the service
// needs: DHT put/get and discovery-topic announce.
type Network interface {
	PutDHTRecord(ctx context.Context, key string, value []byte) error
	GetDHTRecord(ctx context.Context, key string) ([]byte, error)
	Publish(ctx context.Context, topic string, data []byte) error
}

// RepublishMetrics receives republish outcomes; nil-safe.
type RepublishMetrics interface {
	RecordRepublishFailure()
}

type indexEntry struct {
	card        CapabilityCard
	publishedAt time.Time
}

// Service maintains the in-memory capability-card index and its
// inverted capability→DID index, and drives the DHT publish/lookup
// lifecycle (spec.md §4.7).
type Service struct {
	net          Network
	metrics      RepublishMetrics
	localPeerID  string

	mu          sync.RWMutex
	byDID       map[string]indexEntry
	byCapability map[string]map[string]struct{}

	group singleflight.Group
}

// New creates an empty Service. localPeerID stamps outgoing discovery
// announcements so receivers can verify the envelope's declared sender.
func New(net Network, metrics RepublishMetrics, localPeerID string) *Service {
	return &Service{
		net:          net,
		metrics:      metrics,
		localPeerID:  localPeerID,
		byDID:        make(map[string]indexEntry),
		byCapability: make(map[string]map[string]struct{}),
	}
}

// Register validates, stores, DHT-publishes, and announces card
// (spec.md §4.7). published_at is stamped here and must be monotonic per
// DID — a re-register with an older or equal timestamp than the existing
// entry is rejected as stale.
func (s *Service) Register(ctx context.Context, card CapabilityCard) error {
	if err := card.Validate(); err != nil {
		return err
	}

	now := time.Now()
	card.Extension.PublishedAt = now

	s.mu.Lock()
	if existing, ok := s.byDID[card.DID]; ok && !now.After(existing.publishedAt) {
		s.mu.Unlock()
		return apperrors.New(apperrors.KindValidation, "published_at must be monotonic per DID")
	}
	s.byDID[card.DID] = indexEntry{card: card, publishedAt: now}
	s.indexCapabilitiesLocked(card)
	s.mu.Unlock()

	if err := s.publishToDHT(ctx, card); err != nil {
		return err
	}

	announce := DiscoveryAnnouncement{DID: card.DID, Action: "announce"}
	data, err := announce.MarshalEnvelope(s.localPeerID)
	if err != nil {
		return err
	}
	return s.net.Publish(ctx, discoveryTopic, data)
}

func (s *Service) publishToDHT(ctx context.Context, card CapabilityCard) error {
	key := DHTKey(card.DID)
	value, err := marshalCard(card)
	if err != nil {
		return err
	}
	err = RepublishBackoff.Do(ctx, func(ctx context.Context) error {
		return s.net.PutDHTRecord(ctx, string(key[:]), value)
	})
	if err != nil && s.metrics != nil {
		s.metrics.RecordRepublishFailure()
	}
	return err
}

func (s *Service) indexCapabilitiesLocked(card CapabilityCard) {
	for _, cap := range card.Capabilities {
		set, ok := s.byCapability[cap.ID]
		if !ok {
			set = make(map[string]struct{})
			s.byCapability[cap.ID] = set
		}
		set[card.DID] = struct{}{}
	}
}

// Lookup returns the card for did, preferring a fresh in-memory entry;
// on a stale or missing entry it issues a single-flight DHT GetRecord
// (spec.md §4.7: "only one network query runs" per concurrent lookup
// set). ok is false, with a nil error, when the DID is genuinely absent
// — not_found is a normal outcome, not an error.
func (s *Service) Lookup(ctx context.Context, did string) (card CapabilityCard, ok bool, err error) {
	s.mu.RLock()
	entry, found := s.byDID[did]
	s.mu.RUnlock()
	if found && time.Since(entry.publishedAt) <= CardTTL {
		return entry.card, true, nil
	}

	result, err, _ := s.group.Do(did, func() (interface{}, error) {
		key := DHTKey(did)
		raw, err := s.net.GetDHTRecord(ctx, string(key[:]))
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, nil
		}
		fetched, verr := VerifyDHTValue(key, raw)
		if verr != nil {
			return nil, verr
		}
		s.mu.Lock()
		s.byDID[did] = indexEntry{card: fetched, publishedAt: time.Now()}
		s.indexCapabilitiesLocked(fetched)
		s.mu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return CapabilityCard{}, false, err
	}
	if result == nil {
		if found {
			return entry.card, true, nil // stale cache entry is still better than nothing on a DHT miss
		}
		return CapabilityCard{}, false, nil
	}
	return result.(CapabilityCard), true, nil
}

// SearchResult pairs a card with its relevance score.
type SearchResult struct {
	Card  CapabilityCard
	Score float64
}

// Search performs a case-insensitive substring scan over name,
// description, and capability ids, scoring matches (capability-id exact
// 1.0, name 0.5, description 0.25) and sorting descending (spec.md
// §4.7 — deliberately a thin consumer of the index, no embeddings).
func (s *Service) Search(query string) []SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for _, entry := range s.byDID {
		var score float64
		for _, cap := range entry.card.Capabilities {
			if strings.EqualFold(cap.ID, q) {
				score = max(score, 1.0)
			}
		}
		if strings.Contains(strings.ToLower(entry.card.Name), q) {
			score = max(score, 0.5)
		}
		if strings.Contains(strings.ToLower(entry.card.Description), q) {
			score = max(score, 0.25)
		}
		if score > 0 {
			results = append(results, SearchResult{Card: entry.card, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
