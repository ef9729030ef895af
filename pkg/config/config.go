// Copyright 2025 Witness Protocol
//
// Network Configuration
// The gateway and its background managers are driven entirely by a single
// NetworkConfig loaded at startup from a JSON or YAML file. Witness nodes
// have their own smaller config (see pkg/witness).

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SignatureScheme selects the quorum signature variant for a network.
type SignatureScheme string

const (
	// SchemeEd25519 collects one Ed25519 signature per witness.
	SchemeEd25519 SignatureScheme = "ed25519"

	// SchemeBLS aggregates witness BLS signatures into one.
	SchemeBLS SignatureScheme = "bls"
)

// String implements fmt.Stringer.
func (s SignatureScheme) String() string {
	return string(s)
}

// IsValid reports whether the scheme is known.
func (s SignatureScheme) IsValid() bool {
	return s == SchemeEd25519 || s == SchemeBLS
}

// WitnessInfo describes one witness node in the network.
type WitnessInfo struct {
	// ID is unique within the network.
	ID string `json:"id" yaml:"id"`

	// Pubkey is the hex-encoded public key (Ed25519 32 bytes or BLS 96 bytes).
	Pubkey string `json:"pubkey" yaml:"pubkey"`

	// Endpoint is the witness HTTP base URL.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// PeerNetworkInfo describes a peer network for federation.
type PeerNetworkInfo struct {
	ID      string `json:"id" yaml:"id"`
	Gateway string `json:"gateway" yaml:"gateway"`

	// MinWitnesses is the minimum signature count expected from this peer.
	MinWitnesses int `json:"min_witnesses" yaml:"min_witnesses"`
}

// FederationConfig controls batching and cross-anchoring with peers.
type FederationConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// BatchPeriod is the batch close interval in seconds.
	BatchPeriod uint64 `json:"batch_period" yaml:"batch_period"`

	PeerNetworks []PeerNetworkInfo `json:"peer_networks" yaml:"peer_networks"`

	// CrossAnchorThreshold is the configured number of peer networks to
	// cross-anchor with. The federation client logs it; nothing enforces it.
	CrossAnchorThreshold int `json:"cross_anchor_threshold" yaml:"cross_anchor_threshold"`
}

// AnchorProviderType identifies an external anchoring backend.
type AnchorProviderType string

const (
	ProviderInternetArchive AnchorProviderType = "internet_archive"
	ProviderTrillian        AnchorProviderType = "trillian"
	ProviderDnsTxt          AnchorProviderType = "dns_txt"
	ProviderBlockchain      AnchorProviderType = "blockchain"
)

// String implements fmt.Stringer.
func (t AnchorProviderType) String() string {
	return string(t)
}

// AnchorProviderConfig configures one external anchor provider. The
// Options map carries provider-specific settings (log_url, api_url,
// domain, api_key, rpc_url, private_key).
type AnchorProviderConfig struct {
	Type     AnchorProviderType `json:"type" yaml:"type"`
	Enabled  bool               `json:"enabled" yaml:"enabled"`
	Priority uint32             `json:"priority" yaml:"priority"`
	Options  map[string]string  `json:"options" yaml:"options"`
}

// Option returns a provider option value, or "" when absent.
func (c *AnchorProviderConfig) Option(key string) string {
	if c.Options == nil {
		return ""
	}
	return c.Options[key]
}

// ExternalAnchorsConfig controls anchoring of batch roots into external
// tamper-evident systems.
type ExternalAnchorsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// AnchorPeriod is the configured anchoring interval in seconds. The
	// anchor manager does not read it: each batch is anchored when it closes.
	AnchorPeriod uint64 `json:"anchor_period" yaml:"anchor_period"`

	// MinimumRequired is the number of providers that must succeed before
	// any proof is persisted for a batch.
	MinimumRequired int `json:"minimum_required" yaml:"minimum_required"`

	Providers []AnchorProviderConfig `json:"providers" yaml:"providers"`
}

// EnabledProviders returns the enabled provider configs.
func (c *ExternalAnchorsConfig) EnabledProviders() []AnchorProviderConfig {
	out := make([]AnchorProviderConfig, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// NetworkConfig is the top-level gateway configuration.
type NetworkConfig struct {
	// ID is the network identifier committed into every attestation.
	ID string `json:"id" yaml:"id"`

	Witnesses []WitnessInfo `json:"witnesses" yaml:"witnesses"`

	// Threshold is the minimum verifying signatures for quorum.
	Threshold int `json:"threshold" yaml:"threshold"`

	SignatureScheme SignatureScheme `json:"signature_scheme" yaml:"signature_scheme"`

	Federation FederationConfig `json:"federation" yaml:"federation"`

	ExternalAnchors ExternalAnchorsConfig `json:"external_anchors" yaml:"external_anchors"`

	// FederationPeers is deprecated; retained read-only so old config files
	// still parse. New code reads Federation.PeerNetworks.
	FederationPeers []string `json:"federation_peers,omitempty" yaml:"federation_peers,omitempty"`
}

// DefaultBatchPeriod is applied when no batch period is configured.
const DefaultBatchPeriod = 3600

// DefaultAnchorPeriod is applied when no anchor period is configured.
const DefaultAnchorPeriod = 3600

// Load reads a NetworkConfig from a JSON or YAML file, selected by
// extension, applies defaults, and validates it.
func Load(path string) (*NetworkConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg NetworkConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse YAML config: %w", err)
		}
	default:
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse JSON config: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *NetworkConfig) applyDefaults() {
	if c.SignatureScheme == "" {
		c.SignatureScheme = SchemeEd25519
	}
	if c.Federation.BatchPeriod == 0 {
		c.Federation.BatchPeriod = DefaultBatchPeriod
	}
	if c.ExternalAnchors.AnchorPeriod == 0 {
		c.ExternalAnchors.AnchorPeriod = DefaultAnchorPeriod
	}
	if c.ExternalAnchors.MinimumRequired == 0 {
		c.ExternalAnchors.MinimumRequired = 1
	}
	for i := range c.ExternalAnchors.Providers {
		if c.ExternalAnchors.Providers[i].Priority == 0 {
			c.ExternalAnchors.Providers[i].Priority = 100
		}
	}
}

// Validate checks the structural invariants of the configuration.
func (c *NetworkConfig) Validate() error {
	var problems []string

	if c.ID == "" {
		problems = append(problems, "network id is required")
	}
	if len(c.Witnesses) == 0 {
		problems = append(problems, "no witnesses configured")
	}
	if c.Threshold < 1 || c.Threshold > len(c.Witnesses) {
		problems = append(problems, fmt.Sprintf(
			"threshold must be in [1, %d], got %d", len(c.Witnesses), c.Threshold))
	}
	if !c.SignatureScheme.IsValid() {
		problems = append(problems, fmt.Sprintf("unknown signature scheme %q", c.SignatureScheme))
	}

	seen := make(map[string]bool, len(c.Witnesses))
	for _, w := range c.Witnesses {
		if w.ID == "" {
			problems = append(problems, "witness with empty id")
			continue
		}
		if seen[w.ID] {
			problems = append(problems, "duplicate witness id "+strconv.Quote(w.ID))
		}
		seen[w.ID] = true
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s",
			strings.Join(problems, "\n  - "))
	}
	return nil
}

// FindWitness returns the witness with the given id, or nil.
func (c *NetworkConfig) FindWitness(id string) *WitnessInfo {
	for i := range c.Witnesses {
		if c.Witnesses[i].ID == id {
			return &c.Witnesses[i]
		}
	}
	return nil
}
