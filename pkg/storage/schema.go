// Copyright 2025 Witness Protocol
//
// SQLite schema for the gateway's persistent state. The gateway process
// is the only writer.

package storage

// Schema contains all table and index creation statements.
const Schema = `
-- Attestations, keyed by content hash (hex)
CREATE TABLE IF NOT EXISTS attestations (
    hash TEXT PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    network_id TEXT NOT NULL,
    sequence INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    batch_id INTEGER REFERENCES batches(id)
);

CREATE INDEX IF NOT EXISTS idx_attestations_timestamp
ON attestations(timestamp DESC);

CREATE INDEX IF NOT EXISTS idx_attestations_network_sequence
ON attestations(network_id, sequence);

-- Witness signatures. Aggregated BLS signatures are stored as a single
-- row whose witness_id carries the "BLS_AGGREGATED:" sentinel prefix.
CREATE TABLE IF NOT EXISTS signatures (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    hash TEXT NOT NULL,
    witness_id TEXT NOT NULL,
    signature BLOB NOT NULL,
    FOREIGN KEY (hash) REFERENCES attestations(hash),
    UNIQUE(hash, witness_id)
);

-- Per-network sequence allocator
CREATE TABLE IF NOT EXISTS sequence_counters (
    network_id TEXT PRIMARY KEY,
    next_sequence INTEGER NOT NULL
);

-- Closed batches
CREATE TABLE IF NOT EXISTS batches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    network_id TEXT NOT NULL,
    merkle_root BLOB NOT NULL,
    period_start INTEGER NOT NULL,
    period_end INTEGER NOT NULL,
    attestation_count INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);

-- Leaf membership: each attestation belongs to at most one batch
CREATE TABLE IF NOT EXISTS batch_attestations (
    batch_id INTEGER NOT NULL,
    hash TEXT NOT NULL,
    merkle_index INTEGER NOT NULL,
    FOREIGN KEY (batch_id) REFERENCES batches(id),
    FOREIGN KEY (hash) REFERENCES attestations(hash),
    PRIMARY KEY (batch_id, hash)
);

-- Cross-anchors from peer networks
CREATE TABLE IF NOT EXISTS cross_anchors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id INTEGER NOT NULL,
    witnessing_network TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (batch_id) REFERENCES batches(id)
);

CREATE TABLE IF NOT EXISTS cross_anchor_signatures (
    cross_anchor_id INTEGER NOT NULL,
    witness_id TEXT NOT NULL,
    signature BLOB NOT NULL,
    FOREIGN KEY (cross_anchor_id) REFERENCES cross_anchors(id),
    PRIMARY KEY (cross_anchor_id, witness_id)
);

-- Proofs from external anchor providers
CREATE TABLE IF NOT EXISTS external_anchor_proofs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id INTEGER NOT NULL,
    provider TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    proof_json TEXT NOT NULL,
    anchored_data BLOB,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (batch_id) REFERENCES batches(id)
);

CREATE INDEX IF NOT EXISTS idx_external_anchors_batch
ON external_anchor_proofs(batch_id);
`
