// Copyright 2025 Witness Protocol
//
// Error-to-status mapping for the gateway API. Internal errors are logged
// and surfaced as opaque 500s; anything that would leave the caller with
// a false impression of success is propagated.

package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/gateway"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeMappedError translates pipeline errors into HTTP statuses.
func writeMappedError(w http.ResponseWriter, logger *log.Logger, err error) {
	var (
		insufficient *attestation.InsufficientSignaturesError
		notFound     *attestation.WitnessNotFoundError
		badKey       *attestation.InvalidPublicKeyError
		untrusted    *gateway.UntrustedIssuerError
	)

	switch {
	case errors.Is(err, attestation.ErrInvalidHash):
		writeJSONError(w, "invalid hash: must be 64 hex characters (32 bytes)", http.StatusBadRequest)

	case errors.Is(err, attestation.ErrNotFound):
		writeJSONError(w, "attestation not found", http.StatusNotFound)

	case errors.Is(err, attestation.ErrNotBatched):
		writeJSONError(w, "attestation not yet included in a batch", http.StatusNotFound)

	case errors.As(err, &insufficient):
		writeJSONError(w, insufficient.Error(), http.StatusServiceUnavailable)

	case errors.Is(err, attestation.ErrInvalidSignature):
		writeJSONError(w, "invalid signature", http.StatusBadRequest)

	case errors.As(err, &notFound):
		writeJSONError(w, notFound.Error(), http.StatusBadRequest)

	case errors.As(err, &badKey):
		writeJSONError(w, badKey.Error(), http.StatusBadRequest)

	case errors.Is(err, gateway.ErrTokenRequired):
		writeJSONError(w, "authorization token required", http.StatusUnauthorized)

	case errors.Is(err, gateway.ErrTokenInvalid), errors.Is(err, gateway.ErrTokenExpired):
		writeJSONError(w, err.Error(), http.StatusForbidden)

	case errors.As(err, &untrusted):
		writeJSONError(w, untrusted.Error(), http.StatusForbidden)

	case errors.Is(err, gateway.ErrTokenVerificationFailed):
		writeJSONError(w, "token verification failed", http.StatusBadGateway)

	default:
		logger.Printf("Internal error: %v", err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
	}
}
