// Package discovery maintains the in-memory capability-card index and
// publishes/looks up cards through the DHT. A card is published once, with
// retry/backoff, when it is registered; nothing republishes it later —
// spec.md §4.7, grounded on the teacher's retry/backoff
// constant style in pkg/p2pnet/peermanager.go (backoffBase, backoffMax)
// and on original_source/node/src/search/embedding.rs for what Search
// deliberately does NOT do (no embeddings; linear scored scan only).
package discovery

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/agentmesh/node/internal/apperrors"
)

// MaxCardBytes bounds a serialized CapabilityCard (spec.md §3 DHT record).
const MaxCardBytes = 64 * 1024

var didRe = regexp.MustCompile(`^did:[a-z0-9]+:[a-z0-9-]+:.+$`)

// Capability is a single skill/operation an agent advertises.
type Capability struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
}

// CardExtension holds fields the original distillation grouped under
// CapabilityCard.extension (spec.md §3): payment methods the agent
// accepts and the card's publish timestamp.
type CardExtension struct {
	PaymentMethods []string  `json:"payment_methods,omitempty"`
	PublishedAt    time.Time `json:"published_at"`
}

// CapabilityCard is the agent descriptor published to the local index
// and the DHT (spec.md §3). Invariant: DID well-formed and unique per
// publisher; PublishedAt monotonic per DID (enforced by the Service on
// register, not by this type).
type CapabilityCard struct {
	DID          string       `json:"did"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	URL          string       `json:"url"`
	Capabilities []Capability `json:"capabilities"`
	Provider     string       `json:"provider"`
	Extension    CardExtension `json:"extension"`
}

// Validate checks the invariants register() must enforce before a card
// enters the index (spec.md §4.7): well-formed DID, non-empty
// capabilities, parseable URL, and a JSON encoding within MaxCardBytes.
func (c CapabilityCard) Validate() error {
	if !didRe.MatchString(c.DID) {
		return apperrors.New(apperrors.KindDID, fmt.Sprintf("malformed DID %q", c.DID))
	}
	if len(c.Capabilities) == 0 {
		return apperrors.New(apperrors.KindValidation, "capability card must declare at least one capability")
	}
	if c.URL != "" {
		if _, err := url.ParseRequestURI(c.URL); err != nil {
			return apperrors.Wrap(apperrors.KindValidation, "capability card url", err)
		}
	}
	encoded, err := json.Marshal(c)
	if err != nil {
		return apperrors.Wrap(apperrors.KindSerialization, "encode capability card", err)
	}
	if len(encoded) > MaxCardBytes {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("capability card is %d bytes, exceeds %d limit", len(encoded), MaxCardBytes))
	}
	return nil
}

// DHTKey returns the 32-byte SHA-256 of the DID, the DHT record key
// spec.md §3/§6 specify (H(did)).
func DHTKey(did string) [32]byte {
	return sha256.Sum256([]byte(did))
}

// VerifyDHTValue deserializes raw DHT-record bytes into a CapabilityCard
// and checks that the card's DID hashes to key, rejecting it otherwise
// (spec.md §3: "Records are self-authenticating ... else reject").
func VerifyDHTValue(key [32]byte, raw []byte) (CapabilityCard, error) {
	var card CapabilityCard
	if err := json.Unmarshal(raw, &card); err != nil {
		return CapabilityCard{}, apperrors.Wrap(apperrors.KindSerialization, "decode DHT value", err)
	}
	if DHTKey(card.DID) != key {
		return CapabilityCard{}, apperrors.New(apperrors.KindValidation, "DHT value DID does not hash to its key")
	}
	return card, nil
}
