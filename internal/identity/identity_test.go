package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadGeneratesAndPersistsKey(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "node.key")

	id1, err := Load(keyFile, "did:agentmesh:base:node1")
	if err != nil {
		t.Fatalf("first load: %v", err)
	}

	id2, err := Load(keyFile, "did:agentmesh:base:node1")
	if err != nil {
		t.Fatalf("second load: %v", err)
	}

	b1, _ := id1.PrivateKey.Raw()
	b2, _ := id2.PrivateKey.Raw()
	if string(b1) != string(b2) {
		t.Fatal("expected the same key to be loaded on second call")
	}
	if id1.PeerID != id2.PeerID {
		t.Fatal("expected the same PeerID derived from the same key")
	}
}

func TestLoadBindsDID(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "node.key")

	id, err := Load(keyFile, "did:agentmesh:base:node1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if id.DID != "did:agentmesh:base:node1" {
		t.Errorf("DID = %q", id.DID)
	}
	if id.PeerID.String() == "" {
		t.Error("expected non-empty PeerID")
	}
}

func TestLoadRejectsMalformedDID(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "node.key")

	if _, err := Load(keyFile, "not-a-did"); err == nil {
		t.Fatal("expected error for malformed DID")
	}
}

func TestCheckKeyFilePermissionsRejectsWorldReadable(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "node.key")
	if _, err := Load(keyFile, "did:agentmesh:base:node1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := os.Chmod(keyFile, 0644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if _, err := Load(keyFile, "did:agentmesh:base:node1"); err == nil {
		t.Fatal("expected error for world-readable key file")
	}
}
