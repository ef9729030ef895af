// Copyright 2025 Witness Protocol
//
// Gateway HTTP API
// Public surface of the timestamping service: timestamp submission,
// lookups, verification, merkle proofs, anchor proofs, federation
// cross-anchoring, configuration, health, metrics, and the WebSocket
// event stream.

package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/gateway"
	"github.com/flammafex/witness/pkg/metrics"
)

// Server exposes the gateway pipeline over HTTP.
type Server struct {
	service *gateway.Service
	logger  *log.Logger
}

// TimestampRequest is the body of POST /v1/timestamp.
type TimestampRequest struct {
	Hash          string                 `json:"hash"`
	FreebirdToken *gateway.FreebirdToken `json:"freebird_token,omitempty"`
}

// TimestampResponse wraps a signed attestation.
type TimestampResponse struct {
	Attestation *attestation.SignedAttestation `json:"attestation"`
}

// VerifyRequest is the body of POST /v1/verify.
type VerifyRequest struct {
	Attestation attestation.SignedAttestation `json:"attestation"`
}

// VerifyResponse reports verification results; the endpoint always
// answers 200 with validity in the body.
type VerifyResponse struct {
	Valid              bool   `json:"valid"`
	VerifiedSignatures int    `json:"verified_signatures"`
	RequiredSignatures int    `json:"required_signatures"`
	Message            string `json:"message"`
}

// New creates the API server.
func New(service *gateway.Service, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[API] ", log.LstdFlags)
	}
	return &Server{service: service, logger: logger}
}

// Handler returns the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /v1/config", s.handleConfig)
	mux.HandleFunc("POST /v1/timestamp", s.handleTimestamp)
	mux.HandleFunc("GET /v1/timestamp/{hash}", s.handleGetTimestamp)
	mux.HandleFunc("POST /v1/verify", s.handleVerify)
	mux.HandleFunc("POST /v1/federation/anchor", s.handleFederationAnchor)
	mux.HandleFunc("GET /v1/anchors/{hash}", s.handleGetAnchors)
	mux.HandleFunc("GET /v1/proof/{hash}", s.handleGetProof)
	mux.HandleFunc("GET /ws/events", s.handleEvents)

	return mux
}

// Run serves the API until the listener fails.
func (s *Server) Run(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.logger.Printf("Gateway listening on %s", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Config())
}

func (s *Server) handleTimestamp(w http.ResponseWriter, r *http.Request) {
	var req TimestampRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.logger.Printf("Received timestamp request for hash: %s", req.Hash)

	signed, err := s.service.Timestamp(r.Context(), req.Hash, req.FreebirdToken)
	if err != nil {
		writeMappedError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, TimestampResponse{Attestation: signed})
}

func (s *Server) handleGetTimestamp(w http.ResponseWriter, r *http.Request) {
	signed, err := s.service.Get(r.Context(), r.PathValue("hash"))
	if err != nil {
		writeMappedError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, TimestampResponse{Attestation: signed})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cfg := s.service.Config()
	s.logger.Printf("Verifying attestation for hash: %s", req.Attestation.Attestation.Hash.Hex())

	verified, err := attestation.Verify(&req.Attestation, cfg)
	if err != nil {
		writeJSON(w, http.StatusOK, VerifyResponse{
			Valid:              false,
			VerifiedSignatures: 0,
			RequiredSignatures: cfg.Threshold,
			Message:            fmt.Sprintf("Invalid: %v", err),
		})
		return
	}

	writeJSON(w, http.StatusOK, VerifyResponse{
		Valid:              true,
		VerifiedSignatures: verified,
		RequiredSignatures: cfg.Threshold,
		Message: fmt.Sprintf("Valid: %d of %d signatures verified, %d required",
			verified, len(cfg.Witnesses), cfg.Threshold),
	})
}

func (s *Server) handleFederationAnchor(w http.ResponseWriter, r *http.Request) {
	var req attestation.CrossAnchorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.logger.Printf("Received cross-anchor request from network: %s", req.Batch.NetworkID)

	crossAnchor, err := s.service.WitnessBatch(r.Context(), &req.Batch)
	if err != nil {
		writeMappedError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, attestation.CrossAnchorResponse{CrossAnchor: *crossAnchor})
}

func (s *Server) handleGetAnchors(w http.ResponseWriter, r *http.Request) {
	proofs, err := s.service.Anchors(r.Context(), r.PathValue("hash"))
	if err != nil {
		writeMappedError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, proofs)
}

func (s *Server) handleGetProof(w http.ResponseWriter, r *http.Request) {
	proof, err := s.service.Proof(r.Context(), r.PathValue("hash"))
	if err != nil {
		writeMappedError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, proof)
}
