package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/agentmesh/node/internal/apperrors"
)

// checkConfigFilePermissions rejects a config file with overly permissive
// permissions (group/world readable), which makes Load fail. Config files may carry an admin
// token and blockchain RPC credentials.
func checkConfigFilePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil // file access errors are handled by the caller
	}
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		return apperrors.New(apperrors.KindConfig,
			fmt.Sprintf("config file %s has overly permissive mode %04o; expected 0600 — fix with: chmod 600 %s", path, mode, path))
	}
	return nil
}

// Load reads and parses a TOML config file at path, applying the version
// guard and defaulting rule: configs written before versioning was added
// default to version 1.
func Load(path string) (*Config, error) {
	if err := checkConfigFilePermissions(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.KindIO, path, ErrConfigNotFound)
		}
		return nil, apperrors.Wrap(apperrors.KindIO, "read config file "+path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, "parse TOML", err)
	}

	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Version > CurrentConfigVersion {
		return nil, apperrors.New(apperrors.KindConfig,
			fmt.Sprintf("config version %d is newer than supported version %d; please upgrade agentmeshd", cfg.Version, CurrentConfigVersion))
	}

	return &cfg, nil
}

// Save writes cfg to path as pretty-printed TOML with 0600 permissions.
func Save(cfg *Config, path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return apperrors.Wrap(apperrors.KindIO, "open config file "+path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(cfg); err != nil {
		return apperrors.Wrap(apperrors.KindConfig, "encode TOML", err)
	}
	return nil
}

// Validate checks the config for the invariants the core requires before
// it will start: identity.key_file non-empty, at least one listen
// address, max_connections large enough to admit the minimum bootstrap
// set (SecurityGuard's MinBootstrapPeers), a parseable blockchain RPC URL.
func Validate(cfg *Config) error {
	if cfg.Identity.KeyFile == "" {
		return apperrors.New(apperrors.KindConfig, "identity.key_file is required")
	}
	if len(cfg.Network.ListenAddresses) == 0 {
		return apperrors.New(apperrors.KindConfig, "network.listen_addresses must contain at least one address")
	}
	if cfg.Network.MaxConnections < 3 {
		return apperrors.New(apperrors.KindConfig, "network.max_connections must be at least MIN_BOOTSTRAP_PEERS (3)")
	}
	if cfg.Blockchain.RPCURL == "" {
		return apperrors.New(apperrors.KindConfig, "blockchain.rpc_url is required")
	}
	if _, err := url.ParseRequestURI(cfg.Blockchain.RPCURL); err != nil {
		return apperrors.Wrap(apperrors.KindConfig, "blockchain.rpc_url is not a valid URL", err)
	}
	if cfg.Trust.MinTrustScore < 0 || cfg.Trust.MinTrustScore > 1 {
		return apperrors.New(apperrors.KindConfig, "trust.min_trust_score must be in [0.0, 1.0]")
	}
	return nil
}
