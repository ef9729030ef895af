// Copyright 2025 Witness Protocol
//
// Witness HTTP Client
// One shared client serves all witnesses; every sign request carries an
// independent timeout so a slow witness cannot hold the fan-out hostage.

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/config"
	"github.com/flammafex/witness/pkg/witness"
)

// SignTimeout bounds a single gateway-to-witness sign call.
const SignTimeout = 10 * time.Second

// HealthTimeout bounds a witness health probe.
const HealthTimeout = 5 * time.Second

// WitnessClient talks to witness nodes.
type WitnessClient struct {
	client *http.Client
}

// NewWitnessClient creates a client with the sign timeout applied.
func NewWitnessClient() *WitnessClient {
	return &WitnessClient{
		client: &http.Client{Timeout: SignTimeout},
	}
}

// RequestSignature posts an attestation to a witness's /v1/sign endpoint.
func (c *WitnessClient) RequestSignature(ctx context.Context, w *config.WitnessInfo, a *attestation.Attestation) (*witness.SignResponse, error) {
	body, err := json.Marshal(witness.SignRequest{Attestation: *a})
	if err != nil {
		return nil, fmt.Errorf("encode sign request: %w", err)
	}

	url := w.Endpoint + "/v1/sign"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to witness %s: %w", w.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("witness %s returned %d: %s", w.ID, resp.StatusCode, errText)
	}

	var signResp witness.SignResponse
	if err := json.NewDecoder(resp.Body).Decode(&signResp); err != nil {
		return nil, fmt.Errorf("parse response from witness %s: %w", w.ID, err)
	}
	return &signResp, nil
}

// HealthCheck probes a witness's /health endpoint.
func (c *WitnessClient) HealthCheck(ctx context.Context, w *config.WitnessInfo) bool {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.Endpoint+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
