// Copyright 2025 Witness Protocol
//
// Anchor provider contract. Providers are interchangeable black boxes:
// each commits a batch's merkle root and id into a public artifact that a
// third party can retrieve by request id (archive URL, log index, DNS
// record name, transaction hash).

package anchor

import (
	"context"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/config"
)

// Provider submits batches to one external anchoring backend.
//
// Implementations must honor a provider-internal timeout and must not
// panic; returning Success=false with an error string is preferred over
// returning a Go error.
type Provider interface {
	// Anchor submits a batch to be anchored.
	Anchor(ctx context.Context, request *attestation.AnchorRequest) (*attestation.AnchorResponse, error)

	// Type identifies the provider.
	Type() config.AnchorProviderType
}

// failure builds a failed response with the given error text.
func failure(err string) *attestation.AnchorResponse {
	return &attestation.AnchorResponse{Success: false, Error: err}
}

// success builds a successful response carrying a proof.
func success(proof *attestation.ExternalAnchorProof) *attestation.AnchorResponse {
	return &attestation.AnchorResponse{Success: true, Proof: proof}
}
