package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agentmesh.toml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validTOML = `
[identity]
key_file = "node.key"
did = "did:agentmesh:base:loaded"

[network]
listen_addresses = ["/ip4/0.0.0.0/tcp/9000"]
bootstrap_peers = []
max_connections = 50

[api]
listen_address = "0.0.0.0:8080"
cors_enabled = true
cors_origins = ["*"]

[trust]
min_trust_score = 0.5
require_stake = false
min_stake = 0

[blockchain]
chain_id = 84532
rpc_url = "https://sepolia.base.org"

[node_info]
name = "LoadedNode"
description = "Node loaded from config"
url = "https://loaded.example.com"
`

func TestLoadParsesAllSections(t *testing.T) {
	path := writeTempConfig(t, validTOML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Identity.DID != "did:agentmesh:base:loaded" {
		t.Errorf("DID = %q", cfg.Identity.DID)
	}
	if cfg.NodeInfo.Name != "LoadedNode" {
		t.Errorf("NodeInfo.Name = %q", cfg.NodeInfo.Name)
	}
	if cfg.Network.MaxConnections != 50 {
		t.Errorf("MaxConnections = %d", cfg.Network.MaxConnections)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadRejectsFutureVersion(t *testing.T) {
	path := writeTempConfig(t, "version = 99\n"+validTOML)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for config version newer than supported")
	}
}

func TestLoadRejectsWorldReadableFile(t *testing.T) {
	path := writeTempConfig(t, validTOML)
	if err := os.Chmod(path, 0644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for world-readable config file")
	}
}

func TestValidateRejectsMaxConnectionsBelowMinBootstrap(t *testing.T) {
	cfg := Default()
	cfg.Network.MaxConnections = 2
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for max_connections < MIN_BOOTSTRAP_PEERS")
	}
}

func TestValidateRejectsMissingListenAddresses(t *testing.T) {
	cfg := Default()
	cfg.Network.ListenAddresses = nil
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for empty listen_addresses")
	}
}

func TestTrustWeightsDefaultsTo503020(t *testing.T) {
	cfg := &Config{}
	r, s, e := cfg.TrustWeights()
	if r != 0.5 || s != 0.3 || e != 0.2 {
		t.Errorf("weights = (%v, %v, %v), want (0.5, 0.3, 0.2)", r, s, e)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roundtrip.toml")

	cfg := Default()
	cfg.Identity.DID = "did:agentmesh:base:roundtrip"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Identity.DID != cfg.Identity.DID {
		t.Errorf("DID = %q, want %q", loaded.Identity.DID, cfg.Identity.DID)
	}
}
