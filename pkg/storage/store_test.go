// Copyright 2025 Witness Protocol

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/config"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testAttestation(hash attestation.Hash32, sequence uint64) *attestation.SignedAttestation {
	signed := attestation.NewSigned(attestation.Attestation{
		Hash:      hash,
		Timestamp: 1700000000 + sequence,
		NetworkID: "test-network",
		Sequence:  sequence,
	})
	signed.AddSignature("witness-1", []byte{1, 2, 3, 4})
	signed.AddSignature("witness-2", []byte{5, 6, 7, 8})
	return signed
}

func hashN(b byte) attestation.Hash32 {
	var h attestation.Hash32
	h[0] = b
	return h
}

func TestStoreAndGetAttestation(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	hash := hashN(0)
	if err := store.StoreAttestation(ctx, testAttestation(hash, 1)); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	got, err := store.GetAttestation(ctx, hash)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("stored attestation not found")
	}

	if got.Attestation.Sequence != 1 || got.Attestation.NetworkID != "test-network" {
		t.Errorf("fields wrong: %+v", got.Attestation)
	}
	if got.IsAggregated() {
		t.Fatal("multi-sig loaded as aggregated")
	}
	sigs := got.Signatures.MultiSig
	if len(sigs) != 2 || sigs[0].WitnessID != "witness-1" || sigs[1].WitnessID != "witness-2" {
		t.Errorf("signatures wrong: %+v", sigs)
	}
}

func TestStoreAndGetAggregated(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	hash := hashN(1)
	signed := attestation.NewSignedAggregated(
		attestation.Attestation{Hash: hash, Timestamp: 1700000000, NetworkID: "test-network", Sequence: 1},
		[]byte{10, 20, 30, 40},
		[]string{"witness-1", "witness-2"},
	)

	if err := store.StoreAttestation(ctx, signed); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	got, err := store.GetAttestation(ctx, hash)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil || !got.IsAggregated() {
		t.Fatal("aggregated variant not reconstructed")
	}

	agg := got.Signatures.Aggregated
	if !bytes.Equal(agg.Signature, []byte{10, 20, 30, 40}) {
		t.Errorf("aggregated signature bytes wrong: %v", agg.Signature)
	}
	if len(agg.Signers) != 2 || agg.Signers[0] != "witness-1" || agg.Signers[1] != "witness-2" {
		t.Errorf("signer list wrong: %v", agg.Signers)
	}
}

func TestGetAttestation_NotFound(t *testing.T) {
	store := setupStore(t)

	got, err := store.GetAttestation(context.Background(), hashN(123))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown hash")
	}
}

func TestHasAttestation(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	hash := hashN(2)
	exists, err := store.HasAttestation(ctx, hash)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if exists {
		t.Error("unknown hash reported as duplicate")
	}

	if err := store.StoreAttestation(ctx, testAttestation(hash, 1)); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	exists, err = store.HasAttestation(ctx, hash)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !exists {
		t.Error("stored hash not reported as duplicate")
	}
}

func TestIdempotentStore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	hash := hashN(3)
	signed := testAttestation(hash, 7)

	if err := store.StoreAttestation(ctx, signed); err != nil {
		t.Fatalf("first store failed: %v", err)
	}
	if err := store.StoreAttestation(ctx, signed); err != nil {
		t.Fatalf("second store failed: %v", err)
	}

	got, err := store.GetAttestation(ctx, hash)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Attestation.Sequence != 7 {
		t.Errorf("sequence changed on re-store: %d", got.Attestation.Sequence)
	}
	if len(got.Signatures.MultiSig) != 2 {
		t.Errorf("duplicate signature rows created: %d", len(got.Signatures.MultiSig))
	}
}

func TestNextSequence(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	seq, err := store.NextSequence(ctx, "test-network")
	if err != nil {
		t.Fatalf("allocation failed: %v", err)
	}
	if seq != 1 {
		t.Errorf("first sequence: got %d, want 1", seq)
	}

	for want := uint64(2); want <= 5; want++ {
		seq, err := store.NextSequence(ctx, "test-network")
		if err != nil {
			t.Fatalf("allocation failed: %v", err)
		}
		if seq != want {
			t.Errorf("sequence: got %d, want %d", seq, want)
		}
	}

	// Independent per network.
	seq, err = store.NextSequence(ctx, "other-network")
	if err != nil {
		t.Fatalf("allocation failed: %v", err)
	}
	if seq != 1 {
		t.Errorf("other network first sequence: got %d, want 1", seq)
	}
}

func TestNextSequence_SeedsFromExistingRows(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	// Attestations stored before the counter existed.
	for i := uint64(1); i <= 5; i++ {
		if err := store.StoreAttestation(ctx, testAttestation(hashN(byte(i)), i)); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	seq, err := store.NextSequence(ctx, "test-network")
	if err != nil {
		t.Fatalf("allocation failed: %v", err)
	}
	if seq != 6 {
		t.Errorf("seeded sequence: got %d, want 6", seq)
	}
}

func TestNextSequence_ConcurrentUnique(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	const n = 50
	var (
		mu   sync.Mutex
		seen = make(map[uint64]bool, n)
		wg   sync.WaitGroup
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := store.NextSequence(ctx, "test-network")
			if err != nil {
				t.Errorf("allocation failed: %v", err)
				return
			}
			mu.Lock()
			if seen[seq] {
				t.Errorf("duplicate sequence allocated: %d", seq)
			}
			seen[seq] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("allocated %d distinct sequences, want %d", len(seen), n)
	}
}

func TestStoreBatchAndMembership(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	var hashes []attestation.Hash32
	for i := byte(0); i < 3; i++ {
		h := hashN(i)
		hashes = append(hashes, h)
		if err := store.StoreAttestation(ctx, testAttestation(h, uint64(i)+1)); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	batch := &attestation.Batch{
		NetworkID:   "test-network",
		MerkleRoot:  hashN(42),
		PeriodStart: 1700000000,
		PeriodEnd:   1700003600,
		Count:       3,
	}

	batchID, err := store.StoreBatch(ctx, batch, hashes)
	if err != nil {
		t.Fatalf("store batch failed: %v", err)
	}
	if batchID == 0 {
		t.Fatal("batch id not assigned")
	}

	got, err := store.GetBatch(ctx, batchID)
	if err != nil {
		t.Fatalf("get batch failed: %v", err)
	}
	if got == nil || got.MerkleRoot != hashN(42) || got.Count != 3 {
		t.Errorf("batch fields wrong: %+v", got)
	}

	// Membership preserves leaf order.
	batchHashes, err := store.GetBatchAttestationHashes(ctx, batchID)
	if err != nil {
		t.Fatalf("get batch hashes failed: %v", err)
	}
	if len(batchHashes) != 3 {
		t.Fatalf("membership count: got %d, want 3", len(batchHashes))
	}
	for i, h := range batchHashes {
		if h != hashes[i] {
			t.Errorf("leaf %d out of order", i)
		}
	}

	// Attestations point back at the batch.
	id, ok, err := store.GetBatchIDForAttestation(ctx, hashes[1])
	if err != nil {
		t.Fatalf("batch id lookup failed: %v", err)
	}
	if !ok || id != batchID {
		t.Errorf("batch back-reference wrong: ok=%t id=%d", ok, id)
	}

	// Batched attestations are excluded from the next close.
	unbatched, err := store.GetUnbatchedAttestations(ctx, 0)
	if err != nil {
		t.Fatalf("get unbatched failed: %v", err)
	}
	if len(unbatched) != 0 {
		t.Errorf("batched attestations still reported unbatched: %d", len(unbatched))
	}
}

func TestGetAttestationBatchInfo(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	hash := hashN(99)
	if err := store.StoreAttestation(ctx, testAttestation(hash, 1)); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	info, err := store.GetAttestationBatchInfo(ctx, hash)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if info != nil {
		t.Fatal("unbatched attestation has batch info")
	}

	batch := &attestation.Batch{
		NetworkID:   "test-network",
		MerkleRoot:  hashN(55),
		PeriodStart: 1700000000,
		PeriodEnd:   1700003600,
		Count:       1,
	}
	batchID, err := store.StoreBatch(ctx, batch, []attestation.Hash32{hash})
	if err != nil {
		t.Fatalf("store batch failed: %v", err)
	}

	info, err = store.GetAttestationBatchInfo(ctx, hash)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if info == nil {
		t.Fatal("batched attestation has no batch info")
	}
	if info.BatchID != batchID || info.MerkleIndex != 0 || info.MerkleRoot != hashN(55) {
		t.Errorf("batch info wrong: %+v", info)
	}
}

func TestGetUnbatchedAttestations_OrderAndSince(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	// Insert out of order; timestamps are 1700000000+seq.
	for _, seq := range []uint64{3, 1, 2} {
		if err := store.StoreAttestation(ctx, testAttestation(hashN(byte(seq)), seq)); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	got, err := store.GetUnbatchedAttestations(ctx, 0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("count: got %d, want 3", len(got))
	}
	for i, signed := range got {
		if signed.Attestation.Sequence != uint64(i)+1 {
			t.Errorf("position %d holds sequence %d", i, signed.Attestation.Sequence)
		}
	}

	// The since filter excludes older timestamps.
	got, err = store.GetUnbatchedAttestations(ctx, 1700000003)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 1 || got[0].Attestation.Sequence != 3 {
		t.Errorf("since filter wrong: %d rows", len(got))
	}
}

func TestAnchorProofs(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	hash := hashN(10)
	if err := store.StoreAttestation(ctx, testAttestation(hash, 1)); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	batchID, err := store.StoreBatch(ctx, &attestation.Batch{
		NetworkID: "test-network", MerkleRoot: hashN(11),
		PeriodStart: 1, PeriodEnd: 2, Count: 1,
	}, []attestation.Hash32{hash})
	if err != nil {
		t.Fatalf("store batch failed: %v", err)
	}

	proofs, err := store.GetAnchorProofs(ctx, batchID)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(proofs) != 0 {
		t.Errorf("fresh batch has %d proofs", len(proofs))
	}

	proof := &attestation.ExternalAnchorProof{
		Provider:     config.ProviderInternetArchive,
		Timestamp:    1700000100,
		Proof:        json.RawMessage(`{"archive_url":"https://web.archive.org/x"}`),
		AnchoredData: []byte("data-url"),
	}
	if err := store.StoreAnchorProof(ctx, batchID, proof); err != nil {
		t.Fatalf("store proof failed: %v", err)
	}

	proofs, err = store.GetAnchorProofs(ctx, batchID)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(proofs) != 1 {
		t.Fatalf("proof count: got %d, want 1", len(proofs))
	}
	if proofs[0].Provider != config.ProviderInternetArchive {
		t.Errorf("provider wrong: %s", proofs[0].Provider)
	}

	var decoded map[string]string
	if err := json.Unmarshal(proofs[0].Proof, &decoded); err != nil {
		t.Fatalf("proof JSON corrupted: %v", err)
	}
	if decoded["archive_url"] == "" {
		t.Error("proof payload lost")
	}

	stats, err := store.GetAnchorStats(ctx, config.ProviderInternetArchive)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalAnchors != 1 || stats.LastAnchorTime != 1700000100 {
		t.Errorf("stats wrong: %+v", stats)
	}
}

func TestCrossAnchors(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	hash := hashN(20)
	if err := store.StoreAttestation(ctx, testAttestation(hash, 1)); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	batchID, err := store.StoreBatch(ctx, &attestation.Batch{
		NetworkID: "test-network", MerkleRoot: hashN(21),
		PeriodStart: 1, PeriodEnd: 2, Count: 1,
	}, []attestation.Hash32{hash})
	if err != nil {
		t.Fatalf("store batch failed: %v", err)
	}

	batch, err := store.GetBatch(ctx, batchID)
	if err != nil {
		t.Fatalf("get batch failed: %v", err)
	}

	anchor := &attestation.CrossAnchor{
		Batch:             *batch,
		WitnessingNetwork: "peer-net",
		Timestamp:         1700000200,
		Signatures: []attestation.WitnessSignature{
			{WitnessID: "peer-w1", Signature: []byte{1}},
			{WitnessID: "peer-w2", Signature: []byte{2}},
		},
	}
	if err := store.StoreCrossAnchor(ctx, anchor); err != nil {
		t.Fatalf("store cross-anchor failed: %v", err)
	}

	anchors, err := store.GetCrossAnchors(ctx, batchID)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(anchors) != 1 {
		t.Fatalf("anchor count: got %d, want 1", len(anchors))
	}
	if anchors[0].WitnessingNetwork != "peer-net" || len(anchors[0].Signatures) != 2 {
		t.Errorf("cross-anchor wrong: %+v", anchors[0])
	}
}

func TestCountsAndSequenceListing(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i := byte(0); i < 5; i++ {
		if err := store.StoreAttestation(ctx, testAttestation(hashN(i), uint64(i)+1)); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	count, err := store.CountAttestations(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 5 {
		t.Errorf("count: got %d, want 5", count)
	}

	// Timestamps are 1700000001..1700000005.
	since, err := store.CountAttestationsSince(ctx, 1700000003)
	if err != nil {
		t.Fatalf("count since failed: %v", err)
	}
	if since != 3 {
		t.Errorf("count since: got %d, want 3", since)
	}

	sequences, err := store.SequencesForNetwork(ctx, "test-network")
	if err != nil {
		t.Fatalf("sequence listing failed: %v", err)
	}
	seen := make(map[uint64]bool)
	for _, s := range sequences {
		if seen[s] {
			t.Errorf("duplicate sequence stored: %d", s)
		}
		seen[s] = true
	}

	recent, err := store.GetRecentAttestations(ctx, 2)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].Attestation.Sequence != 5 {
		t.Errorf("recent ordering wrong: %+v", recent)
	}
}
