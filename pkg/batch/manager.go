// Copyright 2025 Witness Protocol
//
// Batch Manager
// Closes batches on a fixed period: loads unbatched attestations in
// sequence order, computes the merkle root over their hashes, writes the
// batch in one transaction, and hands it to the anchor manager. The
// manager is the single writer of batch membership; last_batch_time is
// held under a mutex across the whole close cycle so at most one close is
// in flight.

package batch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/config"
	"github.com/flammafex/witness/pkg/merkle"
	"github.com/flammafex/witness/pkg/metrics"
	"github.com/flammafex/witness/pkg/storage"
)

// AnchorSink receives newly closed batches for asynchronous anchoring.
type AnchorSink interface {
	AnchorBatchAsync(batch attestation.Batch)
}

// Manager closes batches periodically while federation is enabled.
type Manager struct {
	config *config.NetworkConfig
	store  *storage.Store
	anchor AnchorSink
	logger *log.Logger

	mu            sync.Mutex
	lastBatchTime uint64

	stopCh chan struct{}
	doneCh chan struct{}
}

// Option configures the manager.
type Option func(*Manager)

// WithAnchorSink attaches an anchor manager.
func WithAnchorSink(sink AnchorSink) Option {
	return func(m *Manager) {
		m.anchor = sink
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a batch manager. The first batch's period starts at
// the gateway start time.
func NewManager(cfg *config.NetworkConfig, store *storage.Store, opts ...Option) *Manager {
	m := &Manager{
		config:        cfg,
		store:         store,
		logger:        log.New(log.Writer(), "[BatchManager] ", log.LstdFlags),
		lastBatchTime: uint64(time.Now().Unix()),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the periodic close loop. It is a no-op when federation
// is disabled or the period is zero.
func (m *Manager) Start(ctx context.Context) {
	period := m.config.Federation.BatchPeriod
	if !m.config.Federation.Enabled || period == 0 {
		m.logger.Println("Batch manager disabled (federation not enabled)")
		return
	}

	m.logger.Printf("Starting batch manager with period: %d seconds", period)

	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	go func() {
		defer close(m.doneCh)

		ticker := time.NewTicker(time.Duration(period) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				if _, err := m.CloseBatch(ctx); err != nil {
					m.logger.Printf("Failed to close batch: %v", err)
				}
			}
		}
	}()
}

// Stop terminates the close loop and waits for it to finish.
func (m *Manager) Stop() {
	if m.stopCh == nil {
		return
	}
	close(m.stopCh)
	<-m.doneCh
	m.stopCh = nil
	m.logger.Println("Batch manager stopped")
}

// CloseBatch closes the current period. Returns nil when there was
// nothing to batch; empty periods produce no batch.
func (m *Manager) CloseBatch(ctx context.Context) (*attestation.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := uint64(time.Now().Unix())

	attestations, err := m.store.GetUnbatchedAttestations(ctx, m.lastBatchTime)
	if err != nil {
		return nil, err
	}

	if len(attestations) == 0 {
		m.logger.Println("No attestations to batch")
		return nil, nil
	}

	m.logger.Printf("Closing batch with %d attestations (period: %d - %d)",
		len(attestations), m.lastBatchTime, now)

	// The load order (sequence ascending) is the canonical leaf order.
	leaves := make([]attestation.Hash32, len(attestations))
	treeLeaves := make([][merkle.HashSize]byte, len(attestations))
	for i, signed := range attestations {
		leaves[i] = signed.Attestation.Hash
		treeLeaves[i] = signed.Attestation.Hash
	}

	tree := merkle.New(treeLeaves)

	batch := &attestation.Batch{
		NetworkID:   m.config.ID,
		MerkleRoot:  tree.Root(),
		PeriodStart: m.lastBatchTime,
		PeriodEnd:   now,
		Count:       uint64(len(attestations)),
	}

	batchID, err := m.store.StoreBatch(ctx, batch, leaves)
	if err != nil {
		return nil, err
	}
	batch.ID = batchID

	metrics.RecordBatch()
	m.logger.Printf("Batch %d created: %d attestations, root: %s",
		batchID, len(attestations), batch.MerkleRoot.Hex())

	m.lastBatchTime = now

	if m.anchor != nil {
		m.anchor.AnchorBatchAsync(*batch)
	}

	return batch, nil
}
