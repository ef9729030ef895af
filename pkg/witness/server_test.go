// Copyright 2025 Witness Protocol

package witness

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/config"
	"github.com/flammafex/witness/pkg/crypto/bls"
)

func ed25519NodeConfig(t *testing.T) (*NodeConfig, ed25519.PublicKey) {
	t.Helper()

	sk, pk, err := attestation.GenerateKeyPair()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}

	cfg := &NodeConfig{
		ID:              "w1",
		SignatureScheme: config.SchemeEd25519,
		PrivateKey:      hex.EncodeToString(sk.Seed()),
		NetworkID:       "test-net",
		MaxClockSkew:    300,
		Port:            DefaultPort,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config invalid: %v", err)
	}
	return cfg, pk
}

func postSign(t *testing.T, handler http.Handler, a attestation.Attestation) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(SignRequest{Attestation: a})
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/sign", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSign_Ed25519(t *testing.T) {
	cfg, pk := ed25519NodeConfig(t)
	handler := NewServer(cfg, nil).Handler()

	a := attestation.Attestation{
		Hash:      attestation.Hash32{1},
		Timestamp: uint64(time.Now().Unix()),
		NetworkID: "test-net",
		Sequence:  1,
	}

	rec := postSign(t, handler, a)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	var resp SignResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.WitnessID != "w1" {
		t.Errorf("witness id: got %q", resp.WitnessID)
	}
	if err := attestation.VerifyAttestationSignature(&a, resp.Signature, pk); err != nil {
		t.Errorf("returned signature does not verify: %v", err)
	}
}

func TestSign_Idempotent(t *testing.T) {
	cfg, _ := ed25519NodeConfig(t)
	handler := NewServer(cfg, nil).Handler()

	a := attestation.Attestation{
		Hash:      attestation.Hash32{2},
		Timestamp: uint64(time.Now().Unix()),
		NetworkID: "test-net",
		Sequence:  7,
	}

	var first SignResponse
	if err := json.Unmarshal(postSign(t, handler, a).Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var second SignResponse
	if err := json.Unmarshal(postSign(t, handler, a).Body.Bytes(), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !bytes.Equal(first.Signature, second.Signature) {
		t.Error("same input produced different signatures")
	}
}

func TestSign_RejectsStaleTimestamp(t *testing.T) {
	cfg, _ := ed25519NodeConfig(t)
	handler := NewServer(cfg, nil).Handler()

	a := attestation.Attestation{
		Hash:      attestation.Hash32{3},
		Timestamp: uint64(time.Now().Add(-time.Hour).Unix()),
		NetworkID: "test-net",
		Sequence:  1,
	}

	rec := postSign(t, handler, a)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("stale timestamp: got status %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("Invalid timestamp")) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestSign_RejectsFutureTimestamp(t *testing.T) {
	cfg, _ := ed25519NodeConfig(t)
	handler := NewServer(cfg, nil).Handler()

	a := attestation.Attestation{
		Hash:      attestation.Hash32{4},
		Timestamp: uint64(time.Now().Add(time.Hour).Unix()),
		NetworkID: "test-net",
		Sequence:  1,
	}

	if rec := postSign(t, handler, a); rec.Code != http.StatusBadRequest {
		t.Errorf("future timestamp: got status %d", rec.Code)
	}
}

func TestSign_RejectsWrongNetwork(t *testing.T) {
	cfg, _ := ed25519NodeConfig(t)
	handler := NewServer(cfg, nil).Handler()

	a := attestation.Attestation{
		Hash:      attestation.Hash32{5},
		Timestamp: uint64(time.Now().Unix()),
		NetworkID: "other-net",
		Sequence:  1,
	}

	rec := postSign(t, handler, a)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong network: got status %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("Invalid network ID")) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestSign_BLS(t *testing.T) {
	sk, pk, err := bls.GenerateKeyPair()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}

	cfg := &NodeConfig{
		ID:              "w-bls",
		SignatureScheme: config.SchemeBLS,
		PrivateKey:      sk.Hex(),
		NetworkID:       "test-net",
		MaxClockSkew:    300,
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config invalid: %v", err)
	}

	handler := NewServer(cfg, nil).Handler()

	a := attestation.Attestation{
		Hash:      attestation.Hash32{6},
		Timestamp: uint64(time.Now().Unix()),
		NetworkID: "test-net",
		Sequence:  1,
	}

	rec := postSign(t, handler, a)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	var resp SignResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	sig, err := bls.SignatureFromBytes(resp.Signature)
	if err != nil {
		t.Fatalf("signature bytes invalid: %v", err)
	}
	if !pk.Verify(sig, a.CanonicalBytes()) {
		t.Error("BLS signature does not verify")
	}
}

func TestInfoEndpoint(t *testing.T) {
	cfg, pk := ed25519NodeConfig(t)
	handler := NewServer(cfg, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/info", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var info map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info["id"] != "w1" || info["network_id"] != "test-net" {
		t.Errorf("info wrong: %v", info)
	}
	if info["public_key"] != attestation.EncodePublicKey(pk) {
		t.Error("public key mismatch")
	}
}

func TestLoadNodeConfig(t *testing.T) {
	sk, _, err := attestation.GenerateKeyPair()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}

	content := `{
  "id": "w1",
  "network_id": "test-net",
  "private_key": "` + hex.EncodeToString(sk.Seed()) + `"
}`
	path := filepath.Join(t.TempDir(), "witness.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadNodeConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.SignatureScheme != config.SchemeEd25519 {
		t.Errorf("default scheme not applied: %q", cfg.SignatureScheme)
	}
	if cfg.MaxClockSkew != DefaultMaxClockSkew || cfg.Port != DefaultPort {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}
