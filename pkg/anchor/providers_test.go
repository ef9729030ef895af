// Copyright 2025 Witness Protocol

package anchor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/config"
)

func testRequest() *attestation.AnchorRequest {
	var root attestation.Hash32
	root[0] = 0xaa
	return &attestation.AnchorRequest{
		Batch: attestation.Batch{
			ID:          1,
			NetworkID:   "test-network",
			MerkleRoot:  root,
			PeriodStart: 1000,
			PeriodEnd:   2000,
			Count:       42,
		},
	}
}

func TestInternetArchive_DataURL(t *testing.T) {
	provider := NewInternetArchiveProvider()
	url := provider.dataURL(testRequest())

	if !strings.HasPrefix(url, "data:text/plain;charset=utf-8,") {
		t.Errorf("unexpected data URL prefix: %s", url)
	}
	if !strings.Contains(url, "test-network") {
		t.Error("network id missing from data URL")
	}
	if !strings.Contains(url, testRequest().Batch.MerkleRoot.Hex()) {
		t.Error("merkle root missing from data URL")
	}
}

func TestInternetArchive_SubmitViaFake(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/save/") {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	provider := NewInternetArchiveProvider()
	provider.baseURL = srv.URL

	resp, err := provider.Anchor(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("anchor returned error: %v", err)
	}
	if !resp.Success || resp.Proof == nil {
		t.Fatalf("anchor failed: %+v", resp)
	}
	if resp.Proof.Provider != config.ProviderInternetArchive {
		t.Errorf("provider wrong: %s", resp.Proof.Provider)
	}

	var proof map[string]any
	if err := json.Unmarshal(resp.Proof.Proof, &proof); err != nil {
		t.Fatalf("proof not JSON: %v", err)
	}
	if proof["merkle_root"] != testRequest().Batch.MerkleRoot.Hex() {
		t.Error("proof does not commit the merkle root")
	}
}

func TestInternetArchive_BackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	provider := NewInternetArchiveProvider()
	provider.baseURL = srv.URL

	resp, err := provider.Anchor(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("soft failure surfaced as error: %v", err)
	}
	if resp.Success {
		t.Error("failed submission reported success")
	}
	if resp.Error == "" {
		t.Error("failure carries no error text")
	}
}

func TestTrillian_SubmitViaFake(t *testing.T) {
	var receivedEntry []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/add" {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		receivedEntry, _ = base64.StdEncoding.DecodeString(body["data"])

		json.NewEncoder(w).Encode(map[string]any{
			"tree_size": 10,
			"log_index": 9,
		})
	}))
	defer srv.Close()

	provider, err := NewTrillianProvider(srv.URL)
	if err != nil {
		t.Fatalf("build provider: %v", err)
	}

	resp, err := provider.Anchor(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("anchor returned error: %v", err)
	}
	if !resp.Success || resp.Proof == nil {
		t.Fatalf("anchor failed: %+v", resp)
	}

	// The log entry commits the batch fields.
	var entry map[string]any
	if err := json.Unmarshal(receivedEntry, &entry); err != nil {
		t.Fatalf("log entry not JSON: %v", err)
	}
	if entry["merkle_root"] != testRequest().Batch.MerkleRoot.Hex() {
		t.Error("log entry does not commit the merkle root")
	}

	var proof map[string]any
	if err := json.Unmarshal(resp.Proof.Proof, &proof); err != nil {
		t.Fatalf("proof not JSON: %v", err)
	}
	if proof["log_index"] == nil {
		t.Error("proof lost the log index")
	}
}

func TestDnsTxt_RecordFormat(t *testing.T) {
	provider, err := NewDnsTxtProvider("http://dns.example", "example.org", "")
	if err != nil {
		t.Fatalf("build provider: %v", err)
	}

	name := provider.recordName(1)
	if name != "_witness-1.example.org" {
		t.Errorf("record name: got %q", name)
	}

	value := provider.recordValue(testRequest())
	for _, want := range []string{
		"v=witness1",
		"id=1",
		"root=" + testRequest().Batch.MerkleRoot.Hex(),
		"network=test-network",
		"count=42",
	} {
		if !strings.Contains(value, want) {
			t.Errorf("record value missing %q: %s", want, value)
		}
	}
}

func TestDnsTxt_SubmitViaFake(t *testing.T) {
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if body["type"] != "TXT" {
			http.Error(w, "wrong record type", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	provider, err := NewDnsTxtProvider(srv.URL, "example.org", "secret-key")
	if err != nil {
		t.Fatalf("build provider: %v", err)
	}

	resp, err := provider.Anchor(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("anchor returned error: %v", err)
	}
	if !resp.Success {
		t.Fatalf("anchor failed: %s", resp.Error)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("api key not sent: %q", gotAuth)
	}
	if string(resp.Proof.AnchoredData) != provider.recordValue(testRequest()) {
		t.Error("anchored data does not match the record value")
	}
}

func TestEthereumProvider_Config(t *testing.T) {
	if _, err := NewEthereumProvider("", ""); err == nil {
		t.Error("missing options accepted")
	}
	if _, err := NewEthereumProvider("http://rpc.example", "nothex"); err == nil {
		t.Error("invalid private key accepted")
	}

	key := "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	provider, err := NewEthereumProvider("http://rpc.example", key)
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if provider.Type() != config.ProviderBlockchain {
		t.Error("provider type wrong")
	}
}
