// Copyright 2025 Witness Protocol
//
// BLS12-381 Signatures (Pure Go)
// Min-sig orientation: public keys are G2 points (96 bytes compressed),
// signatures are G1 points (48 bytes compressed). Messages are hashed to
// G1 with the RFC 9380 suite under the network domain separation tag.
//
// This package provides:
// - Key generation (random and seed-derived)
// - Signing and pairing-check verification
// - Signature aggregation (multiple signatures -> single signature)
// - Public key aggregation

package bls

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// DomainSeparationTag distinguishes this protocol's signatures from other
// BLS12-381 uses. Every sign and verify operation commits to it.
const DomainSeparationTag = "WITNESS_BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_"

// Size constants (compressed point encodings).
const (
	PrivateKeySize = 32 // scalar in Fr
	PublicKeySize  = 96 // G2 point, compressed
	SignatureSize  = 48 // G1 point, compressed
)

var (
	initOnce sync.Once

	// Generator points, fixed for the curve.
	g1Gen bls12381.G1Affine
	g2Gen bls12381.G2Affine
)

func initGenerators() {
	initOnce.Do(func() {
		_, _, g1GenPoint, g2GenPoint := bls12381.Generators()
		g1Gen = g1GenPoint
		g2Gen = g2GenPoint
	})
}

// PrivateKey is a BLS secret key: a scalar in Fr.
type PrivateKey struct {
	scalar fr.Element
}

// PublicKey is a BLS public key: a point on G2.
type PublicKey struct {
	point bls12381.G2Affine
}

// Signature is a BLS signature: a point on G1.
type Signature struct {
	point bls12381.G1Affine
}

// GenerateKeyPair generates a new key pair from a secure random source.
func GenerateKeyPair() (*PrivateKey, *PublicKey, error) {
	initGenerators()

	var sk fr.Element
	if _, err := sk.SetRandom(); err != nil {
		return nil, nil, fmt.Errorf("generate random scalar: %w", err)
	}

	privateKey := &PrivateKey{scalar: sk}
	return privateKey, privateKey.PublicKey(), nil
}

// GenerateKeyPairFromSeed derives a deterministic key pair from a seed of
// at least 32 bytes. Used for tests and key recovery.
func GenerateKeyPairFromSeed(seed []byte) (*PrivateKey, *PublicKey, error) {
	initGenerators()

	if len(seed) < 32 {
		return nil, nil, errors.New("seed must be at least 32 bytes")
	}

	digest := sha256.Sum256(seed)

	var sk fr.Element
	sk.SetBytes(digest[:])
	if sk.IsZero() {
		return nil, nil, errors.New("seed derives zero scalar")
	}

	privateKey := &PrivateKey{scalar: sk}
	return privateKey, privateKey.PublicKey(), nil
}

// PrivateKeyFromBytes deserializes a private key.
func PrivateKeyFromBytes(data []byte) (*PrivateKey, error) {
	initGenerators()

	if len(data) != PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size: got %d, want %d", len(data), PrivateKeySize)
	}

	var sk fr.Element
	sk.SetBytes(data)
	return &PrivateKey{scalar: sk}, nil
}

// PrivateKeyFromHex deserializes a private key from a hex string.
func PrivateKeyFromHex(hexStr string) (*PrivateKey, error) {
	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return PrivateKeyFromBytes(data)
}

// PublicKeyFromBytes deserializes a compressed G2 public key and checks it
// is on the curve, non-identity, and in the correct subgroup.
func PublicKeyFromBytes(data []byte) (*PublicKey, error) {
	initGenerators()

	if len(data) != PublicKeySize {
		return nil, fmt.Errorf("invalid public key size: got %d, want %d", len(data), PublicKeySize)
	}

	var pk bls12381.G2Affine
	if _, err := pk.SetBytes(data); err != nil {
		return nil, fmt.Errorf("deserialize public key: %w", err)
	}
	if pk.IsInfinity() {
		return nil, errors.New("public key is the identity point")
	}
	if !pk.IsInSubGroup() {
		return nil, errors.New("public key not in G2 subgroup")
	}

	return &PublicKey{point: pk}, nil
}

// PublicKeyFromHex deserializes a public key from a hex string.
func PublicKeyFromHex(hexStr string) (*PublicKey, error) {
	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return PublicKeyFromBytes(data)
}

// SignatureFromBytes deserializes a compressed G1 signature with subgroup
// validation.
func SignatureFromBytes(data []byte) (*Signature, error) {
	initGenerators()

	if len(data) != SignatureSize {
		return nil, fmt.Errorf("invalid signature size: got %d, want %d", len(data), SignatureSize)
	}

	var sig bls12381.G1Affine
	if _, err := sig.SetBytes(data); err != nil {
		return nil, fmt.Errorf("deserialize signature: %w", err)
	}
	if sig.IsInfinity() {
		return nil, errors.New("signature is the identity point")
	}
	if !sig.IsInSubGroup() {
		return nil, errors.New("signature not in G1 subgroup")
	}

	return &Signature{point: sig}, nil
}

// Bytes returns the serialized private key.
func (sk *PrivateKey) Bytes() []byte {
	b := sk.scalar.Bytes()
	return b[:]
}

// Hex returns the private key as a hex string.
func (sk *PrivateKey) Hex() string {
	return hex.EncodeToString(sk.Bytes())
}

// PublicKey derives the public key: pk = sk * G2.
func (sk *PrivateKey) PublicKey() *PublicKey {
	initGenerators()

	var pk bls12381.G2Affine
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	pk.ScalarMultiplication(&g2Gen, &skBig)
	return &PublicKey{point: pk}
}

// Sign signs a message: sig = sk * H(message), where H maps to G1 under
// the protocol DST.
func (sk *PrivateKey) Sign(message []byte) (*Signature, error) {
	initGenerators()

	h, err := hashToG1(message)
	if err != nil {
		return nil, err
	}

	var sig bls12381.G1Affine
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	sig.ScalarMultiplication(&h, &skBig)

	return &Signature{point: sig}, nil
}

// Bytes returns the compressed public key bytes (96 bytes).
func (pk *PublicKey) Bytes() []byte {
	b := pk.point.Bytes()
	return b[:]
}

// Hex returns the public key as a hex string.
func (pk *PublicKey) Hex() string {
	return hex.EncodeToString(pk.Bytes())
}

// Equal reports whether two public keys are the same point.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	return pk.point.Equal(&other.point)
}

// Verify checks the pairing equation e(sig, G2) == e(H(message), pk).
func (pk *PublicKey) Verify(sig *Signature, message []byte) bool {
	initGenerators()

	h, err := hashToG1(message)
	if err != nil {
		return false
	}

	// e(sig, G2) * e(H(msg), -pk) == 1
	var negPk bls12381.G2Affine
	negPk.Neg(&pk.point)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{sig.point, h},
		[]bls12381.G2Affine{g2Gen, negPk},
	)
	return err == nil && ok
}

// Bytes returns the compressed signature bytes (48 bytes).
func (sig *Signature) Bytes() []byte {
	b := sig.point.Bytes()
	return b[:]
}

// Hex returns the signature as a hex string.
func (sig *Signature) Hex() string {
	return hex.EncodeToString(sig.Bytes())
}

// AggregateSignatures combines signatures by point addition on G1:
// aggSig = sig1 + sig2 + ... + sigN.
func AggregateSignatures(signatures []*Signature) (*Signature, error) {
	initGenerators()

	if len(signatures) == 0 {
		return nil, errors.New("no signatures to aggregate")
	}

	var agg bls12381.G1Jac
	agg.FromAffine(&signatures[0].point)
	for i := 1; i < len(signatures); i++ {
		var jac bls12381.G1Jac
		jac.FromAffine(&signatures[i].point)
		agg.AddAssign(&jac)
	}

	var result bls12381.G1Affine
	result.FromJacobian(&agg)
	return &Signature{point: result}, nil
}

// AggregateSignatureBytes parses and aggregates raw signatures.
func AggregateSignatureBytes(signatures [][]byte) ([]byte, error) {
	parsed := make([]*Signature, 0, len(signatures))
	for i, raw := range signatures {
		sig, err := SignatureFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		parsed = append(parsed, sig)
	}

	agg, err := AggregateSignatures(parsed)
	if err != nil {
		return nil, err
	}
	return agg.Bytes(), nil
}

// AggregatePublicKeys combines public keys by point addition on G2:
// aggPk = pk1 + pk2 + ... + pkN.
func AggregatePublicKeys(publicKeys []*PublicKey) (*PublicKey, error) {
	initGenerators()

	if len(publicKeys) == 0 {
		return nil, errors.New("no public keys to aggregate")
	}

	var agg bls12381.G2Jac
	agg.FromAffine(&publicKeys[0].point)
	for i := 1; i < len(publicKeys); i++ {
		var jac bls12381.G2Jac
		jac.FromAffine(&publicKeys[i].point)
		agg.AddAssign(&jac)
	}

	var result bls12381.G2Affine
	result.FromJacobian(&agg)
	return &PublicKey{point: result}, nil
}

// VerifyAggregate verifies an aggregated signature over a single message
// against the aggregate of the signers' public keys.
func VerifyAggregate(aggSig *Signature, publicKeys []*PublicKey, message []byte) bool {
	if len(publicKeys) == 0 {
		return false
	}

	aggPk, err := AggregatePublicKeys(publicKeys)
	if err != nil {
		return false
	}
	return aggPk.Verify(aggSig, message)
}

// hashToG1 maps a message to a G1 point with the RFC 9380 SSWU suite
// under the protocol DST.
func hashToG1(message []byte) (bls12381.G1Affine, error) {
	point, err := bls12381.HashToG1(message, []byte(DomainSeparationTag))
	if err != nil {
		return bls12381.G1Affine{}, fmt.Errorf("hash to G1: %w", err)
	}
	return point, nil
}
