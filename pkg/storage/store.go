// Copyright 2025 Witness Protocol
//
// SQLite Storage
// Durable store for attestations, signatures, batches, batch membership,
// cross-anchors, and external anchor proofs, plus the sequence allocator
// and duplicate detector. Uses the pure Go SQLite driver.

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/config"
)

// aggregatedSentinel prefixes the witness_id of an aggregated signature
// row. It is a storage-layer encoding only: the typed variant is
// reconstructed at the load seam.
const aggregatedSentinel = "BLS_AGGREGATED:"

// Store is the gateway's SQLite-backed persistence layer.
type Store struct {
	db     *sql.DB
	logger *log.Logger

	// seqMu serializes sequence allocation; see NextSequence.
	seqMu sync.Mutex
}

// Option is a functional option for configuring the store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens (creating if needed) the database at path and applies the
// schema. Pass ":memory:" for an in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The gateway is the only writer; a single connection avoids SQLite
	// write contention and keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	store := &Store{
		db:     db,
		logger: log.New(log.Writer(), "[Storage] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nowUnix() int64 {
	return time.Now().Unix()
}

// ========== Attestations ==========

// StoreAttestation writes an attestation and its signatures in a single
// transaction. The attestation row uses INSERT OR REPLACE on the hash
// primary key; signature rows are unique on (hash, witness_id).
func (s *Store) StoreAttestation(ctx context.Context, signed *attestation.SignedAttestation) error {
	hashHex := signed.Attestation.Hash.Hex()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO attestations (hash, timestamp, network_id, sequence, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		hashHex,
		int64(signed.Attestation.Timestamp),
		signed.Attestation.NetworkID,
		int64(signed.Attestation.Sequence),
		nowUnix(),
	)
	if err != nil {
		return fmt.Errorf("insert attestation: %w", err)
	}

	if agg := signed.Signatures.Aggregated; agg != nil {
		witnessID := aggregatedSentinel + strings.Join(agg.Signers, ",")
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO signatures (hash, witness_id, signature)
			VALUES (?, ?, ?)`,
			hashHex, witnessID, []byte(agg.Signature),
		)
		if err != nil {
			return fmt.Errorf("insert aggregated signature: %w", err)
		}
	} else {
		for _, sig := range signed.Signatures.MultiSig {
			_, err = tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO signatures (hash, witness_id, signature)
				VALUES (?, ?, ?)`,
				hashHex, sig.WitnessID, []byte(sig.Signature),
			)
			if err != nil {
				return fmt.Errorf("insert signature from %s: %w", sig.WitnessID, err)
			}
		}
	}

	return tx.Commit()
}

// GetAttestation loads a signed attestation by hash. Returns nil when the
// hash is unknown.
func (s *Store) GetAttestation(ctx context.Context, hash attestation.Hash32) (*attestation.SignedAttestation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT timestamp, network_id, sequence
		FROM attestations
		WHERE hash = ?`,
		hash.Hex(),
	)

	var (
		timestamp int64
		networkID string
		sequence  int64
	)
	if err := row.Scan(&timestamp, &networkID, &sequence); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query attestation: %w", err)
	}

	att := attestation.Attestation{
		Hash:      hash,
		Timestamp: uint64(timestamp),
		NetworkID: networkID,
		Sequence:  uint64(sequence),
	}

	sigs, err := s.loadSignatures(ctx, hash.Hex())
	if err != nil {
		return nil, err
	}

	return &attestation.SignedAttestation{Attestation: att, Signatures: sigs}, nil
}

// HasAttestation reports whether the hash has already been timestamped.
func (s *Store) HasAttestation(ctx context.Context, hash attestation.Hash32) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attestations WHERE hash = ?`, hash.Hex())

	var count int64
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return count > 0, nil
}

// loadSignatures reconstructs the signature variant from stored rows. The
// sentinel witness_id prefix distinguishes an aggregate from multi-sig.
func (s *Store) loadSignatures(ctx context.Context, hashHex string) (attestation.SignatureSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT witness_id, signature
		FROM signatures
		WHERE hash = ?
		ORDER BY id ASC`,
		hashHex,
	)
	if err != nil {
		return attestation.SignatureSet{}, fmt.Errorf("query signatures: %w", err)
	}
	defer rows.Close()

	set := attestation.NewMultiSig()
	first := true

	for rows.Next() {
		var (
			witnessID string
			signature []byte
		)
		if err := rows.Scan(&witnessID, &signature); err != nil {
			return attestation.SignatureSet{}, fmt.Errorf("scan signature: %w", err)
		}

		if first && strings.HasPrefix(witnessID, aggregatedSentinel) {
			signers := strings.Split(strings.TrimPrefix(witnessID, aggregatedSentinel), ",")
			return attestation.NewAggregated(signature, signers), rows.Err()
		}
		first = false

		set.MultiSig = append(set.MultiSig, attestation.WitnessSignature{
			WitnessID: witnessID,
			Signature: signature,
		})
	}

	return set, rows.Err()
}

// ========== Sequence allocation ==========

// NextSequence atomically allocates the next sequence number for a
// network from a counter row, serialized by a store-level mutex and a
// transaction. The counter is seeded from MAX(sequence) so databases
// created before the counter table keep their ordering. Allocated numbers
// are never reused, so a request that fails after allocation leaves a gap
// rather than a duplicate.
func (s *Store) NextSequence(ctx context.Context, networkID string) (uint64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int64
	err = tx.QueryRowContext(ctx,
		`SELECT next_sequence FROM sequence_counters WHERE network_id = ?`,
		networkID,
	).Scan(&next)

	switch {
	case err == sql.ErrNoRows:
		var maxSeq sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			`SELECT MAX(sequence) FROM attestations WHERE network_id = ?`,
			networkID,
		).Scan(&maxSeq); err != nil {
			return 0, fmt.Errorf("seed sequence counter: %w", err)
		}
		next = maxSeq.Int64 + 1
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sequence_counters (network_id, next_sequence) VALUES (?, ?)`,
			networkID, next+1,
		); err != nil {
			return 0, fmt.Errorf("insert sequence counter: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("read sequence counter: %w", err)
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE sequence_counters SET next_sequence = ? WHERE network_id = ?`,
			next+1, networkID,
		); err != nil {
			return 0, fmt.Errorf("advance sequence counter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sequence allocation: %w", err)
	}
	return uint64(next), nil
}

// ========== Batches ==========

// GetUnbatchedAttestations returns attestations with no batch whose
// timestamp is >= since, ordered by sequence ascending. This order is the
// canonical merkle leaf order.
func (s *Store) GetUnbatchedAttestations(ctx context.Context, since uint64) ([]*attestation.SignedAttestation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, timestamp, network_id, sequence
		FROM attestations
		WHERE batch_id IS NULL AND timestamp >= ?
		ORDER BY sequence ASC`,
		int64(since),
	)
	if err != nil {
		return nil, fmt.Errorf("query unbatched attestations: %w", err)
	}

	attestations, err := s.scanAttestationRows(rows)
	if err != nil {
		return nil, err
	}

	for _, signed := range attestations {
		sigs, err := s.loadSignatures(ctx, signed.Attestation.Hash.Hex())
		if err != nil {
			return nil, err
		}
		signed.Signatures = sigs
	}

	return attestations, nil
}

func (s *Store) scanAttestationRows(rows *sql.Rows) ([]*attestation.SignedAttestation, error) {
	defer rows.Close()

	var out []*attestation.SignedAttestation
	for rows.Next() {
		var (
			hashHex   string
			timestamp int64
			networkID string
			sequence  int64
		)
		if err := rows.Scan(&hashHex, &timestamp, &networkID, &sequence); err != nil {
			return nil, fmt.Errorf("scan attestation: %w", err)
		}

		hash, err := attestation.ParseHash(hashHex)
		if err != nil {
			return nil, fmt.Errorf("stored hash %q: %w", hashHex, err)
		}

		out = append(out, &attestation.SignedAttestation{
			Attestation: attestation.Attestation{
				Hash:      hash,
				Timestamp: uint64(timestamp),
				NetworkID: networkID,
				Sequence:  uint64(sequence),
			},
		})
	}
	return out, rows.Err()
}

// StoreBatch inserts the batch row, one membership row per leaf with its
// merkle index, and back-references each attestation, all in a single
// transaction. Returns the assigned batch id.
func (s *Store) StoreBatch(ctx context.Context, batch *attestation.Batch, hashes []attestation.Hash32) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO batches (network_id, merkle_root, period_start, period_end, attestation_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		batch.NetworkID,
		batch.MerkleRoot[:],
		int64(batch.PeriodStart),
		int64(batch.PeriodEnd),
		int64(batch.Count),
		nowUnix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert batch: %w", err)
	}

	batchID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("batch id: %w", err)
	}

	for index, hash := range hashes {
		hashHex := hash.Hex()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO batch_attestations (batch_id, hash, merkle_index)
			VALUES (?, ?, ?)`,
			batchID, hashHex, index,
		); err != nil {
			return 0, fmt.Errorf("insert batch membership: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE attestations SET batch_id = ? WHERE hash = ?`,
			batchID, hashHex,
		); err != nil {
			return 0, fmt.Errorf("link attestation to batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return uint64(batchID), nil
}

// GetBatch loads a batch by id. Returns nil when absent.
func (s *Store) GetBatch(ctx context.Context, batchID uint64) (*attestation.Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, network_id, merkle_root, period_start, period_end, attestation_count
		FROM batches
		WHERE id = ?`,
		int64(batchID),
	)

	var (
		id          int64
		networkID   string
		merkleRoot  []byte
		periodStart int64
		periodEnd   int64
		count       int64
	)
	if err := row.Scan(&id, &networkID, &merkleRoot, &periodStart, &periodEnd, &count); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query batch: %w", err)
	}

	batch := &attestation.Batch{
		ID:          uint64(id),
		NetworkID:   networkID,
		PeriodStart: uint64(periodStart),
		PeriodEnd:   uint64(periodEnd),
		Count:       uint64(count),
	}
	if len(merkleRoot) != attestation.HashSize {
		return nil, fmt.Errorf("stored merkle root has %d bytes", len(merkleRoot))
	}
	copy(batch.MerkleRoot[:], merkleRoot)

	return batch, nil
}

// GetBatchIDForAttestation returns the batch id an attestation belongs
// to; ok is false when the attestation is unbatched.
func (s *Store) GetBatchIDForAttestation(ctx context.Context, hash attestation.Hash32) (uint64, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT batch_id FROM attestations WHERE hash = ?`, hash.Hex())

	var batchID sql.NullInt64
	if err := row.Scan(&batchID); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("query batch id: %w", err)
	}
	if !batchID.Valid {
		return 0, false, nil
	}
	return uint64(batchID.Int64), true, nil
}

// GetBatchAttestationHashes returns the leaf hashes of a batch ordered by
// merkle index.
func (s *Store) GetBatchAttestationHashes(ctx context.Context, batchID uint64) ([]attestation.Hash32, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash FROM batch_attestations
		WHERE batch_id = ?
		ORDER BY merkle_index ASC`,
		int64(batchID),
	)
	if err != nil {
		return nil, fmt.Errorf("query batch hashes: %w", err)
	}
	defer rows.Close()

	var hashes []attestation.Hash32
	for rows.Next() {
		var hashHex string
		if err := rows.Scan(&hashHex); err != nil {
			return nil, fmt.Errorf("scan batch hash: %w", err)
		}
		hash, err := attestation.ParseHash(hashHex)
		if err != nil {
			return nil, fmt.Errorf("stored hash %q: %w", hashHex, err)
		}
		hashes = append(hashes, hash)
	}
	return hashes, rows.Err()
}

// BatchInfo locates an attestation inside its batch.
type BatchInfo struct {
	BatchID     uint64
	MerkleIndex int
	MerkleRoot  attestation.Hash32
}

// GetAttestationBatchInfo returns the batch id, merkle index, and root
// for an attestation. Returns nil when the attestation is unbatched.
func (s *Store) GetAttestationBatchInfo(ctx context.Context, hash attestation.Hash32) (*BatchInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ba.batch_id, ba.merkle_index, b.merkle_root
		FROM batch_attestations ba
		JOIN batches b ON ba.batch_id = b.id
		WHERE ba.hash = ?`,
		hash.Hex(),
	)

	var (
		batchID     int64
		merkleIndex int64
		merkleRoot  []byte
	)
	if err := row.Scan(&batchID, &merkleIndex, &merkleRoot); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query batch info: %w", err)
	}

	info := &BatchInfo{
		BatchID:     uint64(batchID),
		MerkleIndex: int(merkleIndex),
	}
	if len(merkleRoot) != attestation.HashSize {
		return nil, fmt.Errorf("stored merkle root has %d bytes", len(merkleRoot))
	}
	copy(info.MerkleRoot[:], merkleRoot)

	return info, nil
}

// ========== Cross-anchors ==========

// StoreCrossAnchor persists a peer network's cross-anchor and its
// signatures.
func (s *Store) StoreCrossAnchor(ctx context.Context, anchor *attestation.CrossAnchor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO cross_anchors (batch_id, witnessing_network, timestamp, created_at)
		VALUES (?, ?, ?, ?)`,
		int64(anchor.Batch.ID),
		anchor.WitnessingNetwork,
		int64(anchor.Timestamp),
		nowUnix(),
	)
	if err != nil {
		return fmt.Errorf("insert cross-anchor: %w", err)
	}

	crossAnchorID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("cross-anchor id: %w", err)
	}

	for _, sig := range anchor.Signatures {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cross_anchor_signatures (cross_anchor_id, witness_id, signature)
			VALUES (?, ?, ?)`,
			crossAnchorID, sig.WitnessID, []byte(sig.Signature),
		); err != nil {
			return fmt.Errorf("insert cross-anchor signature: %w", err)
		}
	}

	return tx.Commit()
}

// GetCrossAnchors loads the cross-anchors recorded for a batch.
func (s *Store) GetCrossAnchors(ctx context.Context, batchID uint64) ([]*attestation.CrossAnchor, error) {
	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, fmt.Errorf("batch %d not found", batchID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, witnessing_network, timestamp
		FROM cross_anchors
		WHERE batch_id = ?`,
		int64(batchID),
	)
	if err != nil {
		return nil, fmt.Errorf("query cross-anchors: %w", err)
	}
	defer rows.Close()

	type anchorRow struct {
		id                int64
		witnessingNetwork string
		timestamp         int64
	}
	var anchorRows []anchorRow
	for rows.Next() {
		var r anchorRow
		if err := rows.Scan(&r.id, &r.witnessingNetwork, &r.timestamp); err != nil {
			return nil, fmt.Errorf("scan cross-anchor: %w", err)
		}
		anchorRows = append(anchorRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	anchors := make([]*attestation.CrossAnchor, 0, len(anchorRows))
	for _, r := range anchorRows {
		sigRows, err := s.db.QueryContext(ctx, `
			SELECT witness_id, signature
			FROM cross_anchor_signatures
			WHERE cross_anchor_id = ?`,
			r.id,
		)
		if err != nil {
			return nil, fmt.Errorf("query cross-anchor signatures: %w", err)
		}

		var signatures []attestation.WitnessSignature
		for sigRows.Next() {
			var (
				witnessID string
				signature []byte
			)
			if err := sigRows.Scan(&witnessID, &signature); err != nil {
				sigRows.Close()
				return nil, fmt.Errorf("scan cross-anchor signature: %w", err)
			}
			signatures = append(signatures, attestation.WitnessSignature{
				WitnessID: witnessID,
				Signature: signature,
			})
		}
		if err := sigRows.Err(); err != nil {
			sigRows.Close()
			return nil, err
		}
		sigRows.Close()

		anchors = append(anchors, &attestation.CrossAnchor{
			Batch:             *batch,
			WitnessingNetwork: r.witnessingNetwork,
			Signatures:        signatures,
			Timestamp:         uint64(r.timestamp),
		})
	}

	return anchors, nil
}

// ========== External anchor proofs ==========

// StoreAnchorProof appends an external anchor proof for a batch.
func (s *Store) StoreAnchorProof(ctx context.Context, batchID uint64, proof *attestation.ExternalAnchorProof) error {
	proofJSON, err := json.Marshal(proof.Proof)
	if err != nil {
		return fmt.Errorf("encode proof: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO external_anchor_proofs (batch_id, provider, timestamp, proof_json, anchored_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		int64(batchID),
		proof.Provider.String(),
		int64(proof.Timestamp),
		string(proofJSON),
		[]byte(proof.AnchoredData),
		nowUnix(),
	)
	if err != nil {
		return fmt.Errorf("insert anchor proof: %w", err)
	}
	return nil
}

// GetAnchorProofs loads all external anchor proofs for a batch in
// creation order.
func (s *Store) GetAnchorProofs(ctx context.Context, batchID uint64) ([]*attestation.ExternalAnchorProof, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, timestamp, proof_json, anchored_data
		FROM external_anchor_proofs
		WHERE batch_id = ?
		ORDER BY created_at ASC, id ASC`,
		int64(batchID),
	)
	if err != nil {
		return nil, fmt.Errorf("query anchor proofs: %w", err)
	}
	defer rows.Close()

	var proofs []*attestation.ExternalAnchorProof
	for rows.Next() {
		var (
			provider     string
			timestamp    int64
			proofJSON    string
			anchoredData []byte
		)
		if err := rows.Scan(&provider, &timestamp, &proofJSON, &anchoredData); err != nil {
			return nil, fmt.Errorf("scan anchor proof: %w", err)
		}

		providerType := config.AnchorProviderType(provider)
		switch providerType {
		case config.ProviderInternetArchive, config.ProviderTrillian,
			config.ProviderDnsTxt, config.ProviderBlockchain:
		default:
			s.logger.Printf("Skipping anchor proof with unknown provider %q", provider)
			continue
		}

		proofs = append(proofs, &attestation.ExternalAnchorProof{
			Provider:     providerType,
			Timestamp:    uint64(timestamp),
			Proof:        json.RawMessage(proofJSON),
			AnchoredData: anchoredData,
		})
	}

	return proofs, rows.Err()
}

// AnchorStats summarizes a provider's anchoring history.
type AnchorStats struct {
	LastAnchorTime uint64
	TotalAnchors   uint64
}

// GetAnchorStats returns anchor statistics for a provider.
func (s *Store) GetAnchorStats(ctx context.Context, provider config.AnchorProviderType) (*AnchorStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp), COUNT(*)
		FROM external_anchor_proofs
		WHERE provider = ?`,
		provider.String(),
	)

	var (
		lastTime sql.NullInt64
		total    int64
	)
	if err := row.Scan(&lastTime, &total); err != nil {
		return nil, fmt.Errorf("query anchor stats: %w", err)
	}

	stats := &AnchorStats{TotalAnchors: uint64(total)}
	if lastTime.Valid {
		stats.LastAnchorTime = uint64(lastTime.Int64)
	}
	return stats, nil
}

// ========== Counters and listings ==========

// CountAttestations returns the total number of stored attestations.
func (s *Store) CountAttestations(ctx context.Context) (uint64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attestations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count attestations: %w", err)
	}
	return uint64(count), nil
}

// CountAttestationsSince counts attestations with timestamp >= since.
func (s *Store) CountAttestationsSince(ctx context.Context, since uint64) (uint64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attestations WHERE timestamp >= ?`,
		int64(since)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count attestations since: %w", err)
	}
	return uint64(count), nil
}

// CountBatches returns the total number of closed batches.
func (s *Store) CountBatches(ctx context.Context) (uint64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM batches`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count batches: %w", err)
	}
	return uint64(count), nil
}

// GetRecentAttestations returns the most recent attestations with their
// signatures, newest first.
func (s *Store) GetRecentAttestations(ctx context.Context, limit int) ([]*attestation.SignedAttestation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, timestamp, network_id, sequence
		FROM attestations
		ORDER BY timestamp DESC, sequence DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent attestations: %w", err)
	}

	attestations, err := s.scanAttestationRows(rows)
	if err != nil {
		return nil, err
	}

	for _, signed := range attestations {
		sigs, err := s.loadSignatures(ctx, signed.Attestation.Hash.Hex())
		if err != nil {
			return nil, err
		}
		signed.Signatures = sigs
	}

	return attestations, nil
}

// SequencesForNetwork returns every stored sequence for a network. Used
// by tests asserting uniqueness.
func (s *Store) SequencesForNetwork(ctx context.Context, networkID string) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sequence FROM attestations WHERE network_id = ? ORDER BY sequence ASC`,
		networkID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sequences: %w", err)
	}
	defer rows.Close()

	var sequences []uint64
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, fmt.Errorf("scan sequence: %w", err)
		}
		sequences = append(sequences, uint64(seq))
	}
	return sequences, rows.Err()
}
