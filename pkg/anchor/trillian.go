// Copyright 2025 Witness Protocol
//
// Trillian/Tessera transparency log anchor provider. Submits the batch
// summary as a base64 log entry; the returned log index and inclusion
// proof are the public evidence.

package anchor

import (
	"bytes"
	"context"
	"encoding/base64"
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

// TrillianProvider anchors batches into a transparency log.
type TrillianProvider struct {
	client *http.Client
	logURL string
}

// NewTrillianProvider creates the provider for a log base URL.
func NewTrillianProvider(logURL string) (*TrillianProvider, error) {
	if logURL == "" {
		return nil, errors.New("missing 'log_url' option")
	}
	return &TrillianProvider{
		client: &http.Client{Timeout: 15 * time.Second},
		logURL: strings.TrimSuffix(logURL, "/"),
	}, nil
}

// Type implements Provider.
func (p *TrillianProvider) Type() config.AnchorProviderType {
	return config.ProviderTrillian
}

func (p *TrillianProvider) logEntry(request *attestation.AnchorRequest) ([]byte, error) {
	batch := &request.Batch
	return json.Marshal(map[string]any{
		"batch_id":          batch.ID,
		"network_id":        batch.NetworkID,
		"merkle_root":       batch.MerkleRoot.Hex(),
		"period_start":      batch.PeriodStart,
		"period_end":        batch.PeriodEnd,
		"attestation_count": batch.Count,
	})
}

// Anchor implements Provider.
func (p *TrillianProvider) Anchor(ctx context.Context, request *attestation.AnchorRequest) (*attestation.AnchorResponse, error) {
	entry, err := p.logEntry(request)
	if err != nil {
		return failure(fmt.Sprintf("encode log entry: %v", err)), nil
	}

	body, err := json.Marshal(map[string]string{
		"data": base64.StdEncoding.EncodeToString(entry),
	})
	if err != nil {
		return failure(fmt.Sprintf("encode request: %v", err)), nil
	}

	addURL := p.logURL + "/add"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addURL, bytes.NewReader(body))
	if err != nil {
		return failure(fmt.Sprintf("build log request: %v", err)), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return failure(fmt.Sprintf("failed to connect to log: %v", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return failure(fmt.Sprintf("log returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(errText)))), nil
	}

	var result map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return failure(fmt.Sprintf("parse log response: %v", err)), nil
	}

	proofFields := map[string]any{
		"log_url":     p.logURL,
		"batch_id":    request.Batch.ID,
		"merkle_root": request.Batch.MerkleRoot.Hex(),
	}
	for _, key := range []string{"tree_size", "log_index", "inclusion_proof"} {
		if raw, ok := result[key]; ok {
			proofFields[key] = raw
		}
	}

	proofBody, err := json.Marshal(proofFields)
	if err != nil {
		return failure(fmt.Sprintf("encode proof: %v", err)), nil
	}

	return success(&attestation.ExternalAnchorProof{
		Provider:     config.ProviderTrillian,
		Timestamp:    uint64(time.Now().Unix()),
		Proof:        proofBody,
		AnchoredData: entry,
	}), nil
}
