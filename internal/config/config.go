// Package config loads and validates the node's TOML configuration, per
// SPEC_FULL.md §6. The schema mirrors the original Rust node's NodeConfig
// field-for-field (identity, network, api, trust, blockchain, persistence,
// node_info); the loading discipline (file-permission check, typed errors,
// a version guard) follows the teacher's YAML config loader.
package config

// CurrentConfigVersion is the latest configuration schema version.
// Bump this when adding fields that require migration.
const CurrentConfigVersion = 1

// Config is the root configuration for an AgentMesh node.
type Config struct {
	Version     int               `toml:"version,omitempty"`
	Identity    IdentityConfig    `toml:"identity"`
	Network     NetworkConfig     `toml:"network"`
	API         APIConfig         `toml:"api"`
	Trust       TrustConfig       `toml:"trust"`
	Blockchain  BlockchainConfig  `toml:"blockchain"`
	Persistence PersistenceConfig `toml:"persistence,omitempty"`
	NodeInfo    NodeInfoConfig    `toml:"node_info,omitempty"`
}

// IdentityConfig holds identity-related configuration.
type IdentityConfig struct {
	// KeyFile is the path to the private key file; generated if absent.
	KeyFile string `toml:"key_file"`
	// DID is an optional string label bound to the node's PeerId.
	DID string `toml:"did,omitempty"`
}

// NetworkConfig holds P2P network configuration.
type NetworkConfig struct {
	ListenAddresses []string `toml:"listen_addresses"`
	BootstrapPeers  []string `toml:"bootstrap_peers"`
	MaxConnections  uint32   `toml:"max_connections"`
}

// APIConfig holds HTTP API configuration. The API server itself is an
// external collaborator (SPEC_FULL.md §1). The core loads these fields but
// reads none of them: AdminToken is not checked anywhere in this module,
// and agent registration has no admission check.
type APIConfig struct {
	ListenAddress string   `toml:"listen_address"`
	CORSEnabled   bool     `toml:"cors_enabled"`
	CORSOrigins   []string `toml:"cors_origins,omitempty"`
	TrustProxy    bool     `toml:"trust_proxy,omitempty"`
	AdminToken    string   `toml:"admin_token,omitempty"`
}

// TrustConfig holds trust-layer configuration, including the local
// composite-score weights used when no on-chain composite is available
// (SPEC_FULL.md §4.8 / §9).
type TrustConfig struct {
	MinTrustScore     float64 `toml:"min_trust_score"`
	RequireStake      bool    `toml:"require_stake"`
	MinStake          uint64  `toml:"min_stake"`
	ReputationWeight  float64 `toml:"reputation_weight,omitempty"`
	StakeWeight       float64 `toml:"stake_weight,omitempty"`
	EndorsementWeight float64 `toml:"endorsement_weight,omitempty"`
}

// BlockchainConfig holds on-chain RPC configuration.
type BlockchainConfig struct {
	ChainID              uint64 `toml:"chain_id"`
	RPCURL               string `toml:"rpc_url"`
	TrustRegistryAddress string `toml:"trust_registry_address,omitempty"`
	EscrowAddress        string `toml:"escrow_address,omitempty"`
}

// PersistenceConfig is opaque to the core; the persistence collaborator
// interprets it (SPEC_FULL.md §6).
type PersistenceConfig struct {
	Path string `toml:"path,omitempty"`
}

// NodeInfoConfig describes this node for its own capability card.
type NodeInfoConfig struct {
	Name        string `toml:"name,omitempty"`
	Description string `toml:"description,omitempty"`
	URL         string `toml:"url,omitempty"`
}

// Default returns the default configuration: one local listen address, no
// bootstrap peers, a permissive API, and Base Sepolia as the default chain.
func Default() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Identity: IdentityConfig{
			KeyFile: "node.key",
		},
		Network: NetworkConfig{
			ListenAddresses: []string{"/ip4/0.0.0.0/tcp/9000"},
			MaxConnections:  50,
		},
		API: APIConfig{
			ListenAddress: "0.0.0.0:8080",
			CORSEnabled:   true,
			CORSOrigins:   []string{"*"},
		},
		Trust: TrustConfig{
			MinTrustScore:     0.5,
			ReputationWeight:  0.5,
			StakeWeight:       0.3,
			EndorsementWeight: 0.2,
		},
		Blockchain: BlockchainConfig{
			ChainID: 84532,
			RPCURL:  "https://sepolia.base.org",
		},
	}
}

// TrustWeights returns the configured local composite-score weights,
// defaulting to 50/30/20 when unset (SPEC_FULL.md §4.8).
func (c *Config) TrustWeights() (reputation, stake, endorsement float64) {
	reputation, stake, endorsement = c.Trust.ReputationWeight, c.Trust.StakeWeight, c.Trust.EndorsementWeight
	if reputation == 0 && stake == 0 && endorsement == 0 {
		return 0.5, 0.3, 0.2
	}
	return reputation, stake, endorsement
}
