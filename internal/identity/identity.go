// Package identity manages the node's long-lived key pair and its binding
// to a DID label (SPEC_FULL.md §3: "Identity"). The key pair derives a
// stable PeerId; the DID is a configuration-supplied string bound to that
// PeerId. Gossip authenticity rests on the key pair, never on the DID
// string itself — Load rejects a malformed DID before it is ever bound to
// a PeerId, since every downstream component treats Identity.DID as
// already validated.
package identity

import (
	"fmt"
	"os"
	"regexp"
	"runtime"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

var didRe = regexp.MustCompile(`^did:[a-z0-9]+:[a-z0-9-]+:.+$`)

// Identity binds the node's key pair, derived PeerId, and configured DID
// label together. The DID is a separate namespace from the PeerId; nothing
// cryptographically ties a DID string to a PeerId beyond this struct
// carrying them side by side — authenticity of messages still flows from
// the key pair (signatures), per SPEC_FULL.md §3.
type Identity struct {
	PrivateKey crypto.PrivKey
	PeerID     peer.ID
	DID        string
}

// Load loads the Ed25519 key pair at keyFile (generating and persisting a
// new one on first run), derives the node's PeerId, and binds it to did.
// An empty did is accepted and leaves the DID unset. Returns an error if a
// non-empty did is malformed, the key file has insecure permissions, or
// the key itself cannot be read, generated, or persisted.
func Load(keyFile, did string) (*Identity, error) {
	if did != "" && !didRe.MatchString(did) {
		return nil, fmt.Errorf("identity: malformed DID %q", did)
	}

	priv, err := loadOrGenerateKey(keyFile)
	if err != nil {
		return nil, err
	}
	peerID, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("identity: derive peer ID: %w", err)
	}
	return &Identity{PrivateKey: priv, PeerID: peerID, DID: did}, nil
}

// loadOrGenerateKey reads the Ed25519 private key at path, rejecting a
// group/world-readable key file, or generates and persists a new one if
// none exists yet.
func loadOrGenerateKey(path string) (crypto.PrivKey, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if err := CheckKeyFilePermissions(path); err != nil {
			return nil, err
		}
		priv, err := crypto.UnmarshalPrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("identity: unmarshal key from %s: %w", path, err)
		}
		return priv, nil
	}

	priv, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	if err != nil {
		return nil, fmt.Errorf("identity: generate keypair: %w", err)
	}
	data, err = crypto.MarshalPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("identity: marshal private key: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("identity: save key to %s: %w", path, err)
	}
	return priv, nil
}

// CheckKeyFilePermissions verifies that a key file is not readable by
// group or others; Windows file ACLs work differently and are not checked.
func CheckKeyFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("identity: stat key file %s: %w", path, err)
	}
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		return fmt.Errorf("identity: key file %s has insecure permissions %04o (expected 0600); fix with: chmod 600 %s", path, mode, path)
	}
	return nil
}
