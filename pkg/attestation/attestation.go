// Copyright 2025 Witness Protocol
//
// Core Attestation Model
// An attestation commits a content hash to a timestamp within a witness
// network. The canonical byte serialization defined here is what every
// witness signs and every verifier checks; it must never change shape.

package attestation

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// HashSize is the size of a content hash (SHA-256 by convention).
const HashSize = 32

// HexBytes is a byte slice that marshals to/from a hex string in JSON.
type HexBytes []byte

// MarshalJSON implements json.Marshaler.
func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decode hex: %w", err)
	}
	*h = decoded
	return nil
}

// Hash32 is a fixed 32-byte hash that marshals to/from hex in JSON.
type Hash32 [HashSize]byte

// MarshalJSON implements json.Marshaler.
func (h Hash32) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h[:]))
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *Hash32) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decode hex: %w", err)
	}
	if len(decoded) != HashSize {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidHash, len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// Hex returns the hash as a lowercase hex string.
func (h Hash32) Hex() string {
	return hex.EncodeToString(h[:])
}

// ParseHash decodes a hex string into a 32-byte content hash.
func ParseHash(hexStr string) (Hash32, error) {
	var h Hash32
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if len(decoded) != HashSize {
		return h, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidHash, len(decoded), HashSize)
	}
	copy(h[:], decoded)
	return h, nil
}

// Attestation is the atom that gets signed by witnesses.
type Attestation struct {
	// Hash is the SHA-256 content digest supplied by the client.
	Hash Hash32 `json:"hash"`

	// Timestamp is Unix seconds, set by the gateway at admission.
	Timestamp uint64 `json:"timestamp"`

	// NetworkID identifies the witness network.
	NetworkID string `json:"network_id"`

	// Sequence is monotonically increasing and unique within NetworkID.
	Sequence uint64 `json:"sequence"`
}

// New builds an attestation stamped with the current time.
func New(hash Hash32, networkID string, sequence uint64) Attestation {
	return Attestation{
		Hash:      hash,
		Timestamp: uint64(time.Now().Unix()),
		NetworkID: networkID,
		Sequence:  sequence,
	}
}

// CanonicalBytes returns the deterministic serialization used for signing:
// hash (32) || timestamp (8, little-endian) || network_id (raw UTF-8) ||
// sequence (8, little-endian).
func (a *Attestation) CanonicalBytes() []byte {
	var buf bytes.Buffer
	buf.Grow(HashSize + 8 + len(a.NetworkID) + 8)
	buf.Write(a.Hash[:])

	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], a.Timestamp)
	buf.Write(ts[:])

	buf.WriteString(a.NetworkID)

	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], a.Sequence)
	buf.Write(seq[:])

	return buf.Bytes()
}

// String implements fmt.Stringer.
func (a Attestation) String() string {
	return fmt.Sprintf("Attestation(hash=%s, ts=%d, net=%s, seq=%d)",
		a.Hash.Hex(), a.Timestamp, a.NetworkID, a.Sequence)
}

// SignedAttestation is an attestation together with its quorum signatures.
type SignedAttestation struct {
	Attestation Attestation  `json:"attestation"`
	Signatures  SignatureSet `json:"signatures"`
}

// NewSigned creates a signed attestation with an empty multi-sig set.
func NewSigned(a Attestation) *SignedAttestation {
	return &SignedAttestation{
		Attestation: a,
		Signatures:  NewMultiSig(),
	}
}

// NewSignedAggregated creates a signed attestation carrying a single
// aggregated BLS signature and the ordered list of signer ids.
func NewSignedAggregated(a Attestation, signature []byte, signers []string) *SignedAttestation {
	return &SignedAttestation{
		Attestation: a,
		Signatures:  NewAggregated(signature, signers),
	}
}

// AddSignature appends a witness signature. Only valid for multi-sig sets.
func (s *SignedAttestation) AddSignature(witnessID string, signature []byte) {
	s.Signatures.addMultiSig(witnessID, signature)
}

// SignatureCount returns the number of participating signers.
func (s *SignedAttestation) SignatureCount() int {
	return s.Signatures.SignerCount()
}

// IsAggregated reports whether the signatures are a single BLS aggregate.
func (s *SignedAttestation) IsAggregated() bool {
	return s.Signatures.IsAggregated()
}
