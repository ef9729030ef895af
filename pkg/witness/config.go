// Copyright 2025 Witness Protocol
//
// Witness Node Configuration
// A witness holds exactly one private key. Nothing else about the network
// is configured here: witnesses do not know about thresholds, peers, or
// storage.

package witness

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/config"
	"github.com/flammafex/witness/pkg/crypto/bls"
)

// DefaultMaxClockSkew bounds how far a sign request's timestamp may drift
// from the witness's own clock, in seconds.
const DefaultMaxClockSkew = 300

// DefaultPort is the witness HTTP port when none is configured.
const DefaultPort = 3000

// NodeConfig configures a single witness node.
type NodeConfig struct {
	// ID is this witness's unique identifier within its network.
	ID string `json:"id" yaml:"id"`

	// SignatureScheme selects ed25519 or bls signing.
	SignatureScheme config.SignatureScheme `json:"signature_scheme" yaml:"signature_scheme"`

	// PrivateKey is the hex-encoded private key (32 bytes either scheme).
	PrivateKey string `json:"private_key" yaml:"private_key"`

	// Port is the HTTP listen port.
	Port int `json:"port" yaml:"port"`

	// NetworkID is the network this witness belongs to.
	NetworkID string `json:"network_id" yaml:"network_id"`

	// MaxClockSkew is the allowed timestamp drift in seconds.
	MaxClockSkew uint64 `json:"max_clock_skew" yaml:"max_clock_skew"`
}

// LoadNodeConfig reads and validates a witness configuration from a JSON
// or YAML file, selected by extension.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg NodeConfig
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

func (c *NodeConfig) applyDefaults() {
	if c.SignatureScheme == "" {
		c.SignatureScheme = config.SchemeEd25519
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.MaxClockSkew == 0 {
		c.MaxClockSkew = DefaultMaxClockSkew
	}
}

// Validate checks the config and that the private key parses under the
// configured scheme.
func (c *NodeConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("witness id is required")
	}
	if c.NetworkID == "" {
		return fmt.Errorf("network id is required")
	}
	if !c.SignatureScheme.IsValid() {
		return fmt.Errorf("unknown signature scheme %q", c.SignatureScheme)
	}

	switch c.SignatureScheme {
	case config.SchemeEd25519:
		if _, err := c.Ed25519SigningKey(); err != nil {
			return fmt.Errorf("invalid ed25519 private key: %w", err)
		}
	case config.SchemeBLS:
		if _, err := c.BLSSecretKey(); err != nil {
			return fmt.Errorf("invalid BLS private key: %w", err)
		}
	}
	return nil
}

// Ed25519SigningKey decodes the Ed25519 private key.
func (c *NodeConfig) Ed25519SigningKey() (ed25519.PrivateKey, error) {
	return attestation.DecodePrivateKey(c.PrivateKey)
}

// BLSSecretKey decodes the BLS private key.
func (c *NodeConfig) BLSSecretKey() (*bls.PrivateKey, error) {
	return bls.PrivateKeyFromHex(c.PrivateKey)
}

// PublicKey returns the hex-encoded public key for the configured scheme,
// or "invalid" when the private key does not parse.
func (c *NodeConfig) PublicKey() string {
	switch c.SignatureScheme {
	case config.SchemeBLS:
		sk, err := c.BLSSecretKey()
		if err != nil {
			return "invalid"
		}
		return sk.PublicKey().Hex()
	default:
		sk, err := c.Ed25519SigningKey()
		if err != nil {
			return "invalid"
		}
		return attestation.EncodePublicKey(sk.Public().(ed25519.PublicKey))
	}
}
