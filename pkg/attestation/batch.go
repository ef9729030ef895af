// Copyright 2025 Witness Protocol
//
// Batch, cross-anchor, and external anchor proof model types.

package attestation

import (
	"encoding/json"

	"github.com/flammafex/witness/pkg/config"
)

// Batch is a merkle-committed set of attestations closed at a period
// boundary. PeriodStart equals the prior batch's PeriodEnd (or the
// gateway start time for the first batch); Count is always >= 1 because
// empty periods produce no batch.
type Batch struct {
	ID          uint64 `json:"id"`
	NetworkID   string `json:"network_id"`
	MerkleRoot  Hash32 `json:"merkle_root"`
	PeriodStart uint64 `json:"period_start"`
	PeriodEnd   uint64 `json:"period_end"`
	Count       uint64 `json:"attestation_count"`
}

// CrossAnchor is a peer network's threshold-signed witness of a batch.
type CrossAnchor struct {
	Batch             Batch              `json:"batch"`
	WitnessingNetwork string             `json:"witnessing_network"`
	Signatures        []WitnessSignature `json:"signatures"`
	Timestamp         uint64             `json:"timestamp"`
}

// CrossAnchorRequest asks a peer network to witness a batch.
type CrossAnchorRequest struct {
	Batch Batch `json:"batch"`
}

// CrossAnchorResponse carries the peer's cross-anchor back.
type CrossAnchorResponse struct {
	CrossAnchor CrossAnchor `json:"cross_anchor"`
}

// ExternalAnchorProof records that a batch root was committed into a
// public third-party system. Proof holds the provider-specific evidence
// (archive URL, log index, DNS record, transaction hash) as JSON.
type ExternalAnchorProof struct {
	Provider  config.AnchorProviderType `json:"provider"`
	Timestamp uint64                    `json:"timestamp"`
	Proof     json.RawMessage           `json:"proof"`

	// AnchoredData optionally preserves the exact bytes handed to the
	// provider, for offline re-verification.
	AnchoredData HexBytes `json:"anchored_data,omitempty"`
}

// AnchorRequest is handed to each provider for one batch.
type AnchorRequest struct {
	Batch Batch `json:"batch"`
}

// AnchorResponse is a provider's result. Providers prefer returning
// Success=false with Error over returning a Go error, so one slow or
// broken backend never aborts its siblings.
type AnchorResponse struct {
	Success bool                 `json:"success"`
	Proof   *ExternalAnchorProof `json:"proof,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// MerkleProofResponse is the public proof payload for a batched hash.
type MerkleProofResponse struct {
	Hash       Hash32   `json:"hash"`
	Proof      []Hash32 `json:"proof"`
	Index      int      `json:"index"`
	MerkleRoot Hash32   `json:"merkle_root"`
	BatchID    uint64   `json:"batch_id"`
}
