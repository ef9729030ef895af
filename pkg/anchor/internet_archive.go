// Copyright 2025 Witness Protocol
//
// Internet Archive anchor provider. Encodes the batch summary as a data
// URL and submits it to the archive's save API; the resulting archive URL
// is the public proof.

package anchor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/config"
)

const archiveUserAgent = "Witness-Timestamping/0.1.0"

// InternetArchiveProvider anchors batches via web.archive.org.
type InternetArchiveProvider struct {
	client  *http.Client
	baseURL string
}

// NewInternetArchiveProvider creates the provider with its default base
// URL and timeout.
func NewInternetArchiveProvider() *InternetArchiveProvider {
	return &InternetArchiveProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://web.archive.org",
	}
}

// Type implements Provider.
func (p *InternetArchiveProvider) Type() config.AnchorProviderType {
	return config.ProviderInternetArchive
}

// dataURL builds a deterministic data URL describing the batch.
func (p *InternetArchiveProvider) dataURL(request *attestation.AnchorRequest) string {
	batch := &request.Batch
	text := fmt.Sprintf(
		"Witness Batch Anchor\nNetwork: %s\nBatch ID: %d\nMerkle Root: %s\nPeriod: %d - %d\nAttestations: %d",
		batch.NetworkID,
		batch.ID,
		batch.MerkleRoot.Hex(),
		batch.PeriodStart,
		batch.PeriodEnd,
		batch.Count,
	)
	return "data:text/plain;charset=utf-8," + url.PathEscape(text)
}

// Anchor implements Provider.
func (p *InternetArchiveProvider) Anchor(ctx context.Context, request *attestation.AnchorRequest) (*attestation.AnchorResponse, error) {
	dataURL := p.dataURL(request)
	saveURL := fmt.Sprintf("%s/save/%s", p.baseURL, dataURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, saveURL, nil)
	if err != nil {
		return failure(fmt.Sprintf("build archive request: %v", err)), nil
	}
	req.Header.Set("User-Agent", archiveUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return failure(fmt.Sprintf("failed to connect to Internet Archive: %v", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return failure(fmt.Sprintf("Internet Archive returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(errText)))), nil
	}

	finalURL := saveURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	proofBody, err := json.Marshal(map[string]any{
		"archive_url": finalURL,
		"batch_id":    request.Batch.ID,
		"merkle_root": request.Batch.MerkleRoot.Hex(),
	})
	if err != nil {
		return failure(fmt.Sprintf("encode proof: %v", err)), nil
	}

	return success(&attestation.ExternalAnchorProof{
		Provider:     config.ProviderInternetArchive,
		Timestamp:    uint64(time.Now().Unix()),
		Proof:        proofBody,
		AnchoredData: []byte(dataURL),
	}), nil
}
