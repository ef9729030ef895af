// Copyright 2025 Witness Protocol
//
// Ed25519 signing helpers for the multi-sig scheme.

package attestation

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateKeyPair generates a new Ed25519 key pair.
func GenerateKeyPair() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return priv, pub, nil
}

// SignAttestation signs the canonical bytes of an attestation.
func SignAttestation(a *Attestation, key ed25519.PrivateKey) []byte {
	return ed25519.Sign(key, a.CanonicalBytes())
}

// VerifyAttestationSignature checks a single Ed25519 signature over the
// canonical bytes.
func VerifyAttestationSignature(a *Attestation, signature []byte, pub ed25519.PublicKey) error {
	if len(signature) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(pub, a.CanonicalBytes(), signature) {
		return ErrInvalidSignature
	}
	return nil
}

// EncodePublicKey hex-encodes an Ed25519 public key.
func EncodePublicKey(pub ed25519.PublicKey) string {
	return hex.EncodeToString(pub)
}

// DecodePublicKey decodes a hex Ed25519 public key.
func DecodePublicKey(hexStr string) (ed25519.PublicKey, error) {
	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, &InvalidPublicKeyError{Reason: err.Error()}
	}
	if len(data) != ed25519.PublicKeySize {
		return nil, &InvalidPublicKeyError{
			Reason: fmt.Sprintf("length %d, want %d", len(data), ed25519.PublicKeySize),
		}
	}
	return ed25519.PublicKey(data), nil
}

// DecodePrivateKey decodes a hex Ed25519 private key from its 32-byte
// seed form.
func DecodePrivateKey(hexStr string) (ed25519.PrivateKey, error) {
	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return ed25519.NewKeyFromSeed(data), nil
}
