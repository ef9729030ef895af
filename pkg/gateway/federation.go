// Copyright 2025 Witness Protocol
//
// Federation Client
// Submits closed batches to peer networks for cross-anchoring and
// persists the cross-anchors they return. Peer failures are absorbed
// individually.

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/config"
	"github.com/flammafex/witness/pkg/storage"
)

// FederationClient cross-anchors batches with peer networks.
type FederationClient struct {
	config *config.NetworkConfig
	store  *storage.Store
	http   *http.Client
	logger *log.Logger
}

// NewFederationClient creates a federation client.
func NewFederationClient(cfg *config.NetworkConfig, store *storage.Store, logger *log.Logger) *FederationClient {
	if logger == nil {
		logger = log.New(log.Writer(), "[Federation] ", log.LstdFlags)
	}
	return &FederationClient{
		config: cfg,
		store:  store,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// CrossAnchorBatch submits a batch to every configured peer network
// concurrently and stores the cross-anchors that come back.
func (f *FederationClient) CrossAnchorBatch(ctx context.Context, batch *attestation.Batch) ([]*attestation.CrossAnchor, error) {
	if !f.config.Federation.Enabled {
		return nil, nil
	}

	peers := f.config.Federation.PeerNetworks
	if len(peers) == 0 {
		return nil, nil
	}

	f.logger.Printf("Submitting batch %d for cross-anchoring to %d peer networks",
		batch.ID, len(peers))

	var (
		mu      sync.Mutex
		anchors []*attestation.CrossAnchor
		wg      sync.WaitGroup
	)

	for i := range peers {
		peer := peers[i]
		wg.Add(1)
		go func() {
			defer wg.Done()

			anchor, err := f.requestCrossAnchor(ctx, &peer, batch)
			if err != nil {
				f.logger.Printf("Failed to get cross-anchor from peer %s: %v", peer.ID, err)
				return
			}

			f.logger.Printf("Received cross-anchor from network: %s", anchor.WitnessingNetwork)
			mu.Lock()
			anchors = append(anchors, anchor)
			mu.Unlock()
		}()
	}

	wg.Wait()

	for _, anchor := range anchors {
		if err := f.store.StoreCrossAnchor(ctx, anchor); err != nil {
			f.logger.Printf("Failed to store cross-anchor: %v", err)
		}
	}

	f.logger.Printf("Received %d cross-anchors for batch %d (threshold: %d)",
		len(anchors), batch.ID, f.config.Federation.CrossAnchorThreshold)

	return anchors, nil
}

func (f *FederationClient) requestCrossAnchor(ctx context.Context, peer *config.PeerNetworkInfo, batch *attestation.Batch) (*attestation.CrossAnchor, error) {
	body, err := json.Marshal(attestation.CrossAnchorRequest{Batch: *batch})
	if err != nil {
		return nil, fmt.Errorf("encode cross-anchor request: %w", err)
	}

	url := peer.Gateway + "/v1/federation/anchor"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to peer %s: %w", peer.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("peer %s returned %d: %s", peer.ID, resp.StatusCode, errText)
	}

	var car attestation.CrossAnchorResponse
	if err := json.NewDecoder(resp.Body).Decode(&car); err != nil {
		return nil, fmt.Errorf("parse response from peer %s: %w", peer.ID, err)
	}
	return &car.CrossAnchor, nil
}

// WitnessBatch timestamps a peer batch's merkle root through this
// network's own witness set and returns the resulting cross-anchor. Used
// by the federation endpoint when a peer asks us to witness its batch.
func (s *Service) WitnessBatch(ctx context.Context, batch *attestation.Batch) (*attestation.CrossAnchor, error) {
	sequence, err := s.store.NextSequence(ctx, s.config.ID)
	if err != nil {
		return nil, fmt.Errorf("allocate sequence: %w", err)
	}

	att := attestation.New(batch.MerkleRoot, s.config.ID, sequence)
	s.logger.Printf("Created attestation for batch cross-anchor: %s", att)

	responses := s.fanOut(ctx, &att)

	signatures := make([]attestation.WitnessSignature, 0, len(responses))
	for _, resp := range responses {
		signatures = append(signatures, attestation.WitnessSignature{
			WitnessID: resp.WitnessID,
			Signature: resp.Signature,
		})
	}

	s.logger.Printf("Collected %d signatures for cross-anchor (threshold: %d)",
		len(signatures), s.config.Threshold)

	if len(signatures) < s.config.Threshold {
		return nil, &attestation.InsufficientSignaturesError{
			Got: len(signatures), Required: s.config.Threshold,
		}
	}

	return &attestation.CrossAnchor{
		Batch:             *batch,
		WitnessingNetwork: s.config.ID,
		Signatures:        signatures,
		Timestamp:         uint64(time.Now().Unix()),
	}, nil
}
