// Copyright 2025 Witness Protocol
//
// DNS TXT anchor provider. Publishes the batch commitment as a TXT record
// named _witness-{batch_id}.{domain} through the operator's DNS API.

package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/config"
)

// DnsTxtProvider anchors batches as public DNS TXT records.
type DnsTxtProvider struct {
	client *http.Client
	apiURL string
	domain string
	apiKey string
}

// NewDnsTxtProvider creates the provider. apiKey may be empty.
func NewDnsTxtProvider(apiURL, domain, apiKey string) (*DnsTxtProvider, error) {
	if apiURL == "" || domain == "" {
		return nil, errors.New("missing 'api_url' or 'domain' option")
	}
	return &DnsTxtProvider{
		client: &http.Client{Timeout: 15 * time.Second},
		apiURL: apiURL,
		domain: domain,
		apiKey: apiKey,
	}, nil
}

// Type implements Provider.
func (p *DnsTxtProvider) Type() config.AnchorProviderType {
	return config.ProviderDnsTxt
}

func (p *DnsTxtProvider) recordName(batchID uint64) string {
	return fmt.Sprintf("_witness-%d.%s", batchID, p.domain)
}

func (p *DnsTxtProvider) recordValue(request *attestation.AnchorRequest) string {
	batch := &request.Batch
	return fmt.Sprintf("v=witness1;id=%d;root=%s;network=%s;start=%d;end=%d;count=%d",
		batch.ID,
		batch.MerkleRoot.Hex(),
		batch.NetworkID,
		batch.PeriodStart,
		batch.PeriodEnd,
		batch.Count,
	)
}

// Anchor implements Provider.
func (p *DnsTxtProvider) Anchor(ctx context.Context, request *attestation.AnchorRequest) (*attestation.AnchorResponse, error) {
	name := p.recordName(request.Batch.ID)
	value := p.recordValue(request)

	body, err := json.Marshal(map[string]any{
		"name":  name,
		"type":  "TXT",
		"value": value,
		"ttl":   3600,
	})
	if err != nil {
		return failure(fmt.Sprintf("encode request: %v", err)), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return failure(fmt.Sprintf("build DNS request: %v", err)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return failure(fmt.Sprintf("failed to connect to DNS API: %v", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return failure(fmt.Sprintf("DNS API returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(errText)))), nil
	}

	proofBody, err := json.Marshal(map[string]any{
		"record_name":  name,
		"record_value": value,
		"domain":       p.domain,
		"batch_id":     request.Batch.ID,
		"merkle_root":  request.Batch.MerkleRoot.Hex(),
	})
	if err != nil {
		return failure(fmt.Sprintf("encode proof: %v", err)), nil
	}

	return success(&attestation.ExternalAnchorProof{
		Provider:     config.ProviderDnsTxt,
		Timestamp:    uint64(time.Now().Unix()),
		Proof:        proofBody,
		AnchoredData: []byte(value),
	}), nil
}
