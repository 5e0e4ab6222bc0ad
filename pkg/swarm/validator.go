package swarm

import (
	"bytes"
	"fmt"
)

// dhtNamespace is the key-space this node registers a validator for, so
// PutValue/GetValue against dhtRecordKey's "/agoramesh/..." keys clear
// go-libp2p-kad-dht's validation step instead of being rejected outright.
const dhtNamespace = "agoramesh"

// MaxDHTRecordBytes bounds a record this validator accepts, matching the
// discovery service's CapabilityCard size cap.
const MaxDHTRecordBytes = 64 * 1024

// RecordValidator enforces the structural well-formedness the DHT layer
// requires of a record before it ever reaches application code: non-empty,
// bounded in size. Semantic validation — DID binding, self-authentication —
// happens one layer up, in the discovery service's publishToDHT/Lookup,
// which is the only place that knows how to interpret the bytes.
type RecordValidator struct{}

// Validate rejects empty or oversized records; it has no opinion on the
// content, since this namespace carries opaque application payloads.
func (RecordValidator) Validate(key string, value []byte) error {
	if len(value) == 0 {
		return fmt.Errorf("swarm: empty record value for key %q", key)
	}
	if len(value) > MaxDHTRecordBytes {
		return fmt.Errorf("swarm: record value for key %q exceeds %d bytes", key, MaxDHTRecordBytes)
	}
	return nil
}

// Select picks a winner among multiple candidate values seen for the same
// key during a DHT lookup. Lacking an application-level version/timestamp
// at this layer, it falls back to a deterministic byte-wise ordering so
// every node in the network converges on the same choice.
func (RecordValidator) Select(key string, values [][]byte) (int, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("swarm: no candidate values for key %q", key)
	}
	best := 0
	for i := 1; i < len(values); i++ {
		if bytes.Compare(values[i], values[best]) > 0 {
			best = i
		}
	}
	return best, nil
}
