// Copyright 2025 Witness Protocol
//
// Witness Node HTTP Server
// A witness signs well-formed attestations under a clock-skew bound and
// holds no per-request state: the same input yields the same signature.
// Witnesses do not deduplicate, do not judge whether a hash is
// interesting, and do not verify the gateway's clock; they stamp their
// own view.

package witness

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/config"
)

// SignRequest is the gateway's signing request.
type SignRequest struct {
	Attestation attestation.Attestation `json:"attestation"`
}

// SignResponse carries the witness's signature back to the gateway.
type SignResponse struct {
	WitnessID string               `json:"witness_id"`
	Signature attestation.HexBytes `json:"signature"`
}

// Server is the witness node HTTP service.
type Server struct {
	config *NodeConfig
	logger *log.Logger
}

// NewServer creates a witness server from a validated config.
func NewServer(cfg *NodeConfig, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[WitnessNode] ", log.LstdFlags)
	}
	return &Server{config: cfg, logger: logger}
}

// Handler returns the witness HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/sign", s.handleSign)
	mux.HandleFunc("/v1/info", s.handleInfo)
	return mux
}

// Run serves until the listener fails.
func (s *Server) Run(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.logger.Printf("Witness node %s listening on %s", s.config.ID, addr)

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

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":         s.config.ID,
		"public_key": s.config.PublicKey(),
		"network_id": s.config.NetworkID,
	})
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req SignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	signature, err := s.Sign(&req.Attestation)
	if err != nil {
		switch err {
		case errInvalidTimestamp:
			writeError(w, http.StatusBadRequest, "Invalid timestamp")
		case errInvalidNetwork:
			writeError(w, http.StatusBadRequest, "Invalid network ID")
		default:
			s.logger.Printf("Signing failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal error")
		}
		return
	}

	s.logger.Printf("Signed attestation seq=%d hash=%s scheme=%s",
		req.Attestation.Sequence, req.Attestation.Hash.Hex(), s.config.SignatureScheme)

	writeJSON(w, http.StatusOK, SignResponse{
		WitnessID: s.config.ID,
		Signature: signature,
	})
}

var (
	errInvalidTimestamp = fmt.Errorf("timestamp outside clock skew bound")
	errInvalidNetwork   = fmt.Errorf("network id mismatch")
)

// Sign checks the preconditions and signs the canonical bytes under the
// configured scheme.
func (s *Server) Sign(a *attestation.Attestation) ([]byte, error) {
	now := uint64(time.Now().Unix())

	var drift uint64
	if a.Timestamp > now {
		drift = a.Timestamp - now
	} else {
		drift = now - a.Timestamp
	}
	if drift > s.config.MaxClockSkew {
		s.logger.Printf("Rejecting attestation: timestamp %d vs now %d exceeds skew %d",
			a.Timestamp, now, s.config.MaxClockSkew)
		return nil, errInvalidTimestamp
	}

	if a.NetworkID != s.config.NetworkID {
		s.logger.Printf("Rejecting attestation: network %q, expected %q",
			a.NetworkID, s.config.NetworkID)
		return nil, errInvalidNetwork
	}

	switch s.config.SignatureScheme {
	case config.SchemeBLS:
		sk, err := s.config.BLSSecretKey()
		if err != nil {
			return nil, fmt.Errorf("load BLS key: %w", err)
		}
		sig, err := sk.Sign(a.CanonicalBytes())
		if err != nil {
			return nil, fmt.Errorf("BLS sign: %w", err)
		}
		return sig.Bytes(), nil

	default:
		sk, err := s.config.Ed25519SigningKey()
		if err != nil {
			return nil, fmt.Errorf("load ed25519 key: %w", err)
		}
		return attestation.SignAttestation(a, sk), nil
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
