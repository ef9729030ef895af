// Copyright 2025 Witness Protocol
//
// Gateway Timestamping Pipeline
// Admission -> duplicate check -> sequence allocation -> concurrent
// witness fan-out -> threshold aggregation -> verification ->
// persistence -> event broadcast. Nothing is persisted until quorum has
// been reached and locally verified, so a cancelled request leaves no
// partial rows.

package gateway

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/config"
	"github.com/flammafex/witness/pkg/crypto/bls"
	"github.com/flammafex/witness/pkg/merkle"
	"github.com/flammafex/witness/pkg/metrics"
	"github.com/flammafex/witness/pkg/storage"
	"github.com/flammafex/witness/pkg/witness"
)

// Service runs the gateway timestamping pipeline.
type Service struct {
	config        *config.NetworkConfig
	store         *storage.Store
	witnessClient *WitnessClient
	freebird      *FreebirdClient
	events        *EventHub
	logger        *log.Logger
}

// NewService wires the pipeline. freebird may be nil (tokens disabled).
func NewService(cfg *config.NetworkConfig, store *storage.Store, freebird *FreebirdClient, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.Writer(), "[Gateway] ", log.LstdFlags)
	}
	return &Service{
		config:        cfg,
		store:         store,
		witnessClient: NewWitnessClient(),
		freebird:      freebird,
		events:        NewEventHub(),
		logger:        logger,
	}
}

// Config returns the network configuration.
func (s *Service) Config() *config.NetworkConfig {
	return s.config
}

// Store returns the persistence layer.
func (s *Service) Store() *storage.Store {
	return s.store
}

// Events returns the attestation event hub.
func (s *Service) Events() *EventHub {
	return s.events
}

// WitnessClient returns the shared witness HTTP client.
func (s *Service) WitnessClient() *WitnessClient {
	return s.witnessClient
}

// Freebird returns the token verifier client, or nil when disabled.
func (s *Service) Freebird() *FreebirdClient {
	return s.freebird
}

// Timestamp runs the full pipeline for a hex-encoded hash. Submitting a
// hash that is already stored returns the existing attestation unchanged.
func (s *Service) Timestamp(ctx context.Context, hashHex string, token *FreebirdToken) (*attestation.SignedAttestation, error) {
	timer := metrics.NewRequestTimer("timestamp")
	defer timer.Stop()

	// Optional authorization.
	if s.freebird != nil {
		switch {
		case token != nil:
			if err := s.freebird.Verify(ctx, token); err != nil {
				return nil, err
			}
			s.logger.Printf("Token verified for hash %s", hashHex)
		case s.freebird.IsRequired():
			return nil, ErrTokenRequired
		}
	}

	hash, err := attestation.ParseHash(hashHex)
	if err != nil {
		return nil, err
	}

	// Idempotent admission: a known hash returns the stored attestation.
	exists, err := s.store.HasAttestation(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if exists {
		s.logger.Printf("Hash already timestamped: %s", hashHex)
		existing, err := s.store.GetAttestation(ctx, hash)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("attestation vanished during duplicate check")
		}
		return existing, nil
	}

	sequence, err := s.store.NextSequence(ctx, s.config.ID)
	if err != nil {
		return nil, fmt.Errorf("allocate sequence: %w", err)
	}

	att := attestation.New(hash, s.config.ID, sequence)
	s.logger.Printf("Created %s", att)

	signed, err := s.collectQuorum(ctx, &att)
	if err != nil {
		return nil, err
	}

	// Catch misbehaving witnesses before anything is persisted.
	verified, err := attestation.Verify(signed, s.config)
	if err != nil {
		s.logger.Printf("Signature verification failed: %v", err)
		return nil, err
	}
	s.logger.Printf("Verified %d signatures", verified)

	if err := s.store.StoreAttestation(ctx, signed); err != nil {
		return nil, fmt.Errorf("persist attestation: %w", err)
	}

	metrics.RecordAttestation()
	s.logger.Printf("Timestamped hash %s with sequence %d", hashHex, sequence)

	s.events.Publish(AttestationEvent{
		Type:      "attestation",
		Hash:      hashHex,
		Timestamp: signed.Attestation.Timestamp,
	})

	return signed, nil
}

// collectQuorum fans the attestation out to every witness concurrently,
// aggregates under the network scheme, and enforces the threshold.
func (s *Service) collectQuorum(ctx context.Context, att *attestation.Attestation) (*attestation.SignedAttestation, error) {
	responses := s.fanOut(ctx, att)

	switch s.config.SignatureScheme {
	case config.SchemeBLS:
		signatures := make([][]byte, 0, len(responses))
		signers := make([]string, 0, len(responses))
		for _, resp := range responses {
			metrics.RecordSignature(resp.WitnessID)
			signatures = append(signatures, resp.Signature)
			signers = append(signers, resp.WitnessID)
		}

		s.logger.Printf("Collected %d BLS signatures to aggregate (threshold: %d)",
			len(signatures), s.config.Threshold)

		if len(signatures) < s.config.Threshold {
			return nil, &attestation.InsufficientSignaturesError{
				Got: len(signatures), Required: s.config.Threshold,
			}
		}

		aggregated, err := bls.AggregateSignatureBytes(signatures)
		if err != nil {
			s.logger.Printf("BLS aggregation failed: %v", err)
			return nil, attestation.ErrInvalidSignature
		}
		return attestation.NewSignedAggregated(*att, aggregated, signers), nil

	default:
		signed := attestation.NewSigned(*att)
		for _, resp := range responses {
			metrics.RecordSignature(resp.WitnessID)
			signed.AddSignature(resp.WitnessID, resp.Signature)
		}

		s.logger.Printf("Collected %d Ed25519 signatures (threshold: %d)",
			signed.SignatureCount(), s.config.Threshold)

		if signed.SignatureCount() < s.config.Threshold {
			return nil, &attestation.InsufficientSignaturesError{
				Got: signed.SignatureCount(), Required: s.config.Threshold,
			}
		}
		return signed, nil
	}
}

// fanOut dispatches sign requests to all witnesses in parallel and
// returns the successful responses. A failed witness never aborts the
// others.
func (s *Service) fanOut(ctx context.Context, att *attestation.Attestation) []*witness.SignResponse {
	var (
		mu        sync.Mutex
		responses []*witness.SignResponse
		wg        sync.WaitGroup
	)

	for i := range s.config.Witnesses {
		w := s.config.Witnesses[i]
		wg.Add(1)
		go func() {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, SignTimeout)
			defer cancel()

			resp, err := s.witnessClient.RequestSignature(callCtx, &w, att)
			if err != nil {
				s.logger.Printf("Failed to get signature from %s: %v", w.ID, err)
				return
			}

			s.logger.Printf("Got signature from witness: %s", w.ID)
			mu.Lock()
			responses = append(responses, resp)
			mu.Unlock()
		}()
	}

	wg.Wait()
	return responses
}

// Get reassembles a stored attestation by hash.
func (s *Service) Get(ctx context.Context, hashHex string) (*attestation.SignedAttestation, error) {
	hash, err := attestation.ParseHash(hashHex)
	if err != nil {
		return nil, err
	}

	signed, err := s.store.GetAttestation(ctx, hash)
	if err != nil {
		return nil, err
	}
	if signed == nil {
		return nil, attestation.ErrNotFound
	}
	return signed, nil
}

// Proof rebuilds the merkle tree of the hash's batch and returns the
// sibling path for its leaf.
func (s *Service) Proof(ctx context.Context, hashHex string) (*attestation.MerkleProofResponse, error) {
	hash, err := attestation.ParseHash(hashHex)
	if err != nil {
		return nil, err
	}

	info, err := s.store.GetAttestationBatchInfo(ctx, hash)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, attestation.ErrNotBatched
	}

	leaves, err := s.store.GetBatchAttestationHashes(ctx, info.BatchID)
	if err != nil {
		return nil, err
	}

	fixed := make([][merkle.HashSize]byte, len(leaves))
	for i, leaf := range leaves {
		fixed[i] = leaf
	}
	tree := merkle.New(fixed)

	siblings, err := tree.Proof(info.MerkleIndex)
	if err != nil {
		return nil, fmt.Errorf("build proof: %w", err)
	}

	proof := make([]attestation.Hash32, len(siblings))
	for i, sib := range siblings {
		proof[i] = sib
	}

	return &attestation.MerkleProofResponse{
		Hash:       hash,
		Proof:      proof,
		Index:      info.MerkleIndex,
		MerkleRoot: info.MerkleRoot,
		BatchID:    info.BatchID,
	}, nil
}

// Anchors returns the external anchor proofs covering a hash's batch, or
// an empty list when the hash is not yet batched or anchored.
func (s *Service) Anchors(ctx context.Context, hashHex string) ([]*attestation.ExternalAnchorProof, error) {
	hash, err := attestation.ParseHash(hashHex)
	if err != nil {
		return nil, err
	}

	signed, err := s.store.GetAttestation(ctx, hash)
	if err != nil {
		return nil, err
	}
	if signed == nil {
		return nil, attestation.ErrNotFound
	}

	batchID, ok, err := s.store.GetBatchIDForAttestation(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []*attestation.ExternalAnchorProof{}, nil
	}

	proofs, err := s.store.GetAnchorProofs(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if proofs == nil {
		proofs = []*attestation.ExternalAnchorProof{}
	}
	return proofs, nil
}
