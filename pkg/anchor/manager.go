// Copyright 2025 Witness Protocol
//
// Anchor Manager
// Fans a closed batch out to every enabled provider in parallel. Each
// provider is a soft failure domain: a timeout or error is logged and
// counted as "no proof", never aborting siblings. Proof persistence is
// all-or-nothing per batch against minimum_required.

package anchor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/config"
	"github.com/flammafex/witness/pkg/metrics"
	"github.com/flammafex/witness/pkg/storage"
)

// anchorTimeout bounds one full anchoring cycle for a batch.
const anchorTimeout = 120 * time.Second

// Manager coordinates external anchoring of batches.
type Manager struct {
	config    *config.NetworkConfig
	store     *storage.Store
	providers []Provider
	logger    *log.Logger
}

// NewManager builds a manager with the providers constructed from the
// enabled provider configs. Providers whose configuration is incomplete
// are skipped with an error log.
func NewManager(cfg *config.NetworkConfig, store *storage.Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.Writer(), "[AnchorManager] ", log.LstdFlags)
	}

	m := &Manager{
		config: cfg,
		store:  store,
		logger: logger,
	}

	if !cfg.ExternalAnchors.Enabled {
		return m
	}

	for _, pc := range cfg.ExternalAnchors.EnabledProviders() {
		provider, err := buildProvider(pc)
		if err != nil {
			logger.Printf("Skipping %s provider: %v", pc.Type, err)
			continue
		}
		logger.Printf("Initialized %s anchor provider", pc.Type)
		m.providers = append(m.providers, provider)
	}

	return m
}

func buildProvider(pc config.AnchorProviderConfig) (Provider, error) {
	switch pc.Type {
	case config.ProviderInternetArchive:
		return NewInternetArchiveProvider(), nil
	case config.ProviderTrillian:
		return NewTrillianProvider(pc.Option("log_url"))
	case config.ProviderDnsTxt:
		return NewDnsTxtProvider(pc.Option("api_url"), pc.Option("domain"), pc.Option("api_key"))
	case config.ProviderBlockchain:
		return NewEthereumProvider(pc.Option("rpc_url"), pc.Option("private_key"))
	default:
		return nil, &UnknownProviderError{Type: string(pc.Type)}
	}
}

// UnknownProviderError reports an unrecognized provider type.
type UnknownProviderError struct {
	Type string
}

// Error implements error.
func (e *UnknownProviderError) Error() string {
	return "unknown anchor provider type: " + e.Type
}

// Providers returns the constructed providers.
func (m *Manager) Providers() []Provider {
	return m.providers
}

// SetProviders replaces the provider set. Used by tests.
func (m *Manager) SetProviders(providers []Provider) {
	m.providers = providers
}

// AnchorBatchAsync spawns a detached anchoring task for the batch. The
// task survives the originating request; its failure never rolls back
// the batch.
func (m *Manager) AnchorBatchAsync(batch attestation.Batch) {
	if !m.config.ExternalAnchors.Enabled {
		return
	}
	if len(m.providers) == 0 {
		m.logger.Println("No anchor providers enabled")
		return
	}

	m.logger.Printf("Anchoring batch %d to %d external providers",
		batch.ID, len(m.providers))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), anchorTimeout)
		defer cancel()

		if err := m.AnchorBatch(ctx, &batch); err != nil {
			m.logger.Printf("Failed to anchor batch %d: %v", batch.ID, err)
		}
	}()
}

// AnchorBatch runs one anchoring cycle synchronously: fan out to all
// providers, collect proofs, and persist them only if the minimum
// threshold is met.
func (m *Manager) AnchorBatch(ctx context.Context, batch *attestation.Batch) error {
	request := &attestation.AnchorRequest{Batch: *batch}

	var (
		mu     sync.Mutex
		proofs []*attestation.ExternalAnchorProof
		wg     sync.WaitGroup
	)

	for _, provider := range m.providers {
		p := provider
		wg.Add(1)
		go func() {
			defer wg.Done()

			m.logger.Printf("Submitting batch %d to %s", batch.ID, p.Type())

			resp, err := p.Anchor(ctx, request)
			if err != nil {
				m.logger.Printf("Error anchoring batch %d to %s: %v", batch.ID, p.Type(), err)
				return
			}
			if !resp.Success {
				m.logger.Printf("Failed to anchor batch %d to %s: %s", batch.ID, p.Type(), resp.Error)
				return
			}
			if resp.Proof == nil {
				m.logger.Printf("Provider %s reported success without a proof for batch %d", p.Type(), batch.ID)
				return
			}

			m.logger.Printf("Successfully anchored batch %d to %s", batch.ID, p.Type())
			mu.Lock()
			proofs = append(proofs, resp.Proof)
			mu.Unlock()
		}()
	}

	wg.Wait()

	minimum := m.config.ExternalAnchors.MinimumRequired
	if len(proofs) < minimum {
		m.logger.Printf("Insufficient anchors for batch %d: got %d, required %d",
			batch.ID, len(proofs), minimum)
		return &InsufficientAnchorsError{Got: len(proofs), Required: minimum}
	}

	m.logger.Printf("Batch %d successfully anchored to %d providers (minimum: %d)",
		batch.ID, len(proofs), minimum)

	for _, proof := range proofs {
		if err := m.store.StoreAnchorProof(ctx, batch.ID, proof); err != nil {
			return err
		}
		metrics.RecordAnchor(proof.Provider.String())
	}
	return nil
}

// InsufficientAnchorsError reports that too few providers succeeded, so
// no proofs were persisted.
type InsufficientAnchorsError struct {
	Got      int
	Required int
}

// Error implements error.
func (e *InsufficientAnchorsError) Error() string {
	return fmt.Sprintf("insufficient anchors: got %d, required %d", e.Got, e.Required)
}
