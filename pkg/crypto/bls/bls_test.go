// Copyright 2025 Witness Protocol

package bls

import (
	"bytes"
	"testing"
)

func TestSignAndVerify(t *testing.T) {
	sk, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}

	message := []byte("attestation canonical bytes")
	sig, err := sk.Sign(message)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if !pk.Verify(sig, message) {
		t.Error("valid signature rejected")
	}
	if pk.Verify(sig, []byte("different message")) {
		t.Error("signature accepted over wrong message")
	}

	// A different key must not verify.
	_, otherPk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	if otherPk.Verify(sig, message) {
		t.Error("signature accepted under wrong key")
	}
}

func TestSignatureSizes(t *testing.T) {
	sk, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}

	if got := len(sk.Bytes()); got != PrivateKeySize {
		t.Errorf("private key size: got %d, want %d", got, PrivateKeySize)
	}
	if got := len(pk.Bytes()); got != PublicKeySize {
		t.Errorf("public key size: got %d, want %d", got, PublicKeySize)
	}

	sig, err := sk.Sign([]byte("msg"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if got := len(sig.Bytes()); got != SignatureSize {
		t.Errorf("signature size: got %d, want %d", got, SignatureSize)
	}
}

func TestInvalidSignatureBytes(t *testing.T) {
	if _, err := SignatureFromBytes(make([]byte, SignatureSize)); err == nil {
		t.Error("zero signature bytes accepted")
	}
	if _, err := SignatureFromBytes([]byte{1, 2, 3}); err == nil {
		t.Error("short signature accepted")
	}
	if _, err := PublicKeyFromBytes(make([]byte, PublicKeySize)); err == nil {
		t.Error("zero public key bytes accepted")
	}
}

func TestAggregation(t *testing.T) {
	message := []byte("shared message")

	var (
		keys []*PrivateKey
		pubs []*PublicKey
		sigs []*Signature
	)
	for i := 0; i < 3; i++ {
		sk, pk, err := GenerateKeyPair()
		if err != nil {
			t.Fatalf("keygen failed: %v", err)
		}
		sig, err := sk.Sign(message)
		if err != nil {
			t.Fatalf("sign failed: %v", err)
		}
		keys = append(keys, sk)
		pubs = append(pubs, pk)
		sigs = append(sigs, sig)
	}

	agg, err := AggregateSignatures(sigs)
	if err != nil {
		t.Fatalf("aggregation failed: %v", err)
	}

	if !VerifyAggregate(agg, pubs, message) {
		t.Error("aggregate of all signers rejected")
	}

	// Any subset aggregates and verifies against the same subset's keys.
	subsetAgg, err := AggregateSignatures(sigs[:2])
	if err != nil {
		t.Fatalf("subset aggregation failed: %v", err)
	}
	if !VerifyAggregate(subsetAgg, pubs[:2], message) {
		t.Error("subset aggregate rejected by matching keys")
	}

	// Aggregation against a different key set fails.
	if VerifyAggregate(subsetAgg, pubs[1:], message) {
		t.Error("subset aggregate accepted by wrong key set")
	}
	if VerifyAggregate(agg, pubs[:2], message) {
		t.Error("full aggregate accepted by partial key set")
	}
}

func TestAggregationWrongKeys(t *testing.T) {
	message := []byte("shared message")

	var sigs [][]byte
	for i := 0; i < 3; i++ {
		sk, _, err := GenerateKeyPair()
		if err != nil {
			t.Fatalf("keygen failed: %v", err)
		}
		sig, err := sk.Sign(message)
		if err != nil {
			t.Fatalf("sign failed: %v", err)
		}
		sigs = append(sigs, sig.Bytes())
	}

	aggBytes, err := AggregateSignatureBytes(sigs)
	if err != nil {
		t.Fatalf("aggregation failed: %v", err)
	}
	agg, err := SignatureFromBytes(aggBytes)
	if err != nil {
		t.Fatalf("aggregate parse failed: %v", err)
	}

	var wrongKeys []*PublicKey
	for i := 0; i < 3; i++ {
		_, pk, err := GenerateKeyPair()
		if err != nil {
			t.Fatalf("keygen failed: %v", err)
		}
		wrongKeys = append(wrongKeys, pk)
	}

	if VerifyAggregate(agg, wrongKeys, message) {
		t.Error("aggregate accepted under unrelated keys")
	}
}

func TestKeyEncoding(t *testing.T) {
	sk, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}

	decodedSk, err := PrivateKeyFromHex(sk.Hex())
	if err != nil {
		t.Fatalf("private key decode failed: %v", err)
	}
	if !bytes.Equal(sk.Bytes(), decodedSk.Bytes()) {
		t.Error("private key round trip mismatch")
	}

	decodedPk, err := PublicKeyFromHex(pk.Hex())
	if err != nil {
		t.Fatalf("public key decode failed: %v", err)
	}
	if !pk.Equal(decodedPk) {
		t.Error("public key round trip mismatch")
	}

	// Derived public key matches.
	if !decodedSk.PublicKey().Equal(pk) {
		t.Error("derived public key mismatch after round trip")
	}
}

func TestSeedDerivedKeys(t *testing.T) {
	seed := []byte("0123456789abcdef0123456789abcdef")

	sk1, pk1, err := GenerateKeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("seed keygen failed: %v", err)
	}
	sk2, pk2, err := GenerateKeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("seed keygen failed: %v", err)
	}

	if !bytes.Equal(sk1.Bytes(), sk2.Bytes()) || !pk1.Equal(pk2) {
		t.Error("seed-derived keys are not deterministic")
	}

	if _, _, err := GenerateKeyPairFromSeed([]byte("short")); err == nil {
		t.Error("short seed accepted")
	}
}
