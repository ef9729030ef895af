// Copyright 2025 Witness Protocol
//
// Signature Set - the two quorum signature variants
// MultiSig carries one Ed25519 signature per witness; Aggregated carries a
// single BLS signature plus the ordered signer list. The variant is an
// explicit tag in memory; the storage layer has its own row encoding.

package attestation

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SignatureKind discriminates the two signature variants.
type SignatureKind string

const (
	// KindMultiSig is an ordered list of per-witness Ed25519 signatures.
	KindMultiSig SignatureKind = "multisig"

	// KindAggregated is a single aggregated BLS signature.
	KindAggregated SignatureKind = "aggregated"
)

// WitnessSignature is a single witness's signature on an attestation.
type WitnessSignature struct {
	// WitnessID identifies the witness that signed.
	WitnessID string `json:"witness_id"`

	// Signature holds the raw signature bytes (Ed25519: 64 bytes).
	Signature HexBytes `json:"signature"`
}

// AggregatedSignature is a single BLS signature covering multiple witnesses.
type AggregatedSignature struct {
	// Signature is the aggregated BLS signature (48 bytes, G1).
	Signature HexBytes `json:"signature"`

	// Signers lists the witness ids whose keys were aggregated, in order.
	Signers []string `json:"signers"`
}

// SignatureSet holds exactly one of the two variants.
type SignatureSet struct {
	MultiSig   []WitnessSignature
	Aggregated *AggregatedSignature
}

// NewMultiSig returns an empty multi-sig set.
func NewMultiSig() SignatureSet {
	return SignatureSet{MultiSig: []WitnessSignature{}}
}

// NewAggregated returns an aggregated set.
func NewAggregated(signature []byte, signers []string) SignatureSet {
	return SignatureSet{
		Aggregated: &AggregatedSignature{
			Signature: signature,
			Signers:   signers,
		},
	}
}

// Kind returns the variant tag.
func (s *SignatureSet) Kind() SignatureKind {
	if s.Aggregated != nil {
		return KindAggregated
	}
	return KindMultiSig
}

// IsAggregated reports whether this set is the aggregated variant.
func (s *SignatureSet) IsAggregated() bool {
	return s.Aggregated != nil
}

// SignerCount returns the number of participating witnesses.
func (s *SignatureSet) SignerCount() int {
	if s.Aggregated != nil {
		return len(s.Aggregated.Signers)
	}
	return len(s.MultiSig)
}

// SignerIDs returns the participating witness ids in order.
func (s *SignatureSet) SignerIDs() []string {
	if s.Aggregated != nil {
		ids := make([]string, len(s.Aggregated.Signers))
		copy(ids, s.Aggregated.Signers)
		return ids
	}
	ids := make([]string, 0, len(s.MultiSig))
	for _, sig := range s.MultiSig {
		ids = append(ids, sig.WitnessID)
	}
	return ids
}

func (s *SignatureSet) addMultiSig(witnessID string, signature []byte) {
	if s.Aggregated != nil {
		return
	}
	s.MultiSig = append(s.MultiSig, WitnessSignature{
		WitnessID: witnessID,
		Signature: signature,
	})
}

// multiSigJSON is the wire shape of the multi-sig variant.
type multiSigJSON struct {
	Signatures []WitnessSignature `json:"signatures"`
}

// aggregatedJSON is the wire shape of the aggregated variant.
type aggregatedJSON struct {
	Signature HexBytes `json:"signature"`
	Signers   []string `json:"signers"`
}

// MarshalJSON encodes the set as {"signatures":[...]} for multi-sig or
// {"signature":...,"signers":[...]} for aggregated.
func (s SignatureSet) MarshalJSON() ([]byte, error) {
	if s.Aggregated != nil {
		return json.Marshal(aggregatedJSON{
			Signature: s.Aggregated.Signature,
			Signers:   s.Aggregated.Signers,
		})
	}
	sigs := s.MultiSig
	if sigs == nil {
		sigs = []WitnessSignature{}
	}
	return json.Marshal(multiSigJSON{Signatures: sigs})
}

// UnmarshalJSON decodes either wire shape, inferring the variant from the
// fields present.
func (s *SignatureSet) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("decode signature set: %w", err)
	}

	if _, ok := probe["signers"]; ok {
		var agg aggregatedJSON
		if err := json.Unmarshal(data, &agg); err != nil {
			return fmt.Errorf("decode aggregated signatures: %w", err)
		}
		s.MultiSig = nil
		s.Aggregated = &AggregatedSignature{
			Signature: agg.Signature,
			Signers:   agg.Signers,
		}
		return nil
	}

	if _, ok := probe["signatures"]; ok {
		var multi multiSigJSON
		if err := json.Unmarshal(data, &multi); err != nil {
			return fmt.Errorf("decode multi-sig signatures: %w", err)
		}
		s.Aggregated = nil
		s.MultiSig = multi.Signatures
		if s.MultiSig == nil {
			s.MultiSig = []WitnessSignature{}
		}
		return nil
	}

	return errors.New("signature set has neither signatures nor signers")
}
