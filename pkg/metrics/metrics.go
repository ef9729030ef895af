// Copyright 2025 Witness Protocol
//
// Prometheus instruments for the gateway. The standalone exporter process
// lives elsewhere; these are the in-process counters the pipeline and
// managers record into, served at /metrics.

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	attestationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "witness_attestations_total",
		Help: "Total attestations created by this gateway.",
	})

	signaturesCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "witness_signatures_collected",
		Help: "Signatures collected, by witness.",
	}, []string{"witness"})

	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "witness_batches_total",
		Help: "Batches closed.",
	})

	externalAnchorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "witness_external_anchors_total",
		Help: "External anchor proofs persisted, by provider.",
	}, []string{"provider"})

	attestations24h = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "witness_attestations_24h",
		Help: "Attestations created in the trailing 24 hours.",
	})

	witnessHealth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "witness_witness_health",
		Help: "Witness reachability (1 healthy, 0 unhealthy).",
	}, []string{"witness"})

	uptimeSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "witness_uptime_seconds",
		Help: "Gateway uptime in seconds.",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "witness_request_duration_seconds",
		Help:    "Request duration by endpoint.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAttestation counts a successful attestation.
func RecordAttestation() {
	attestationsTotal.Inc()
}

// RecordSignature counts a signature collected from a witness.
func RecordSignature(witnessID string) {
	signaturesCollected.WithLabelValues(witnessID).Inc()
}

// RecordBatch counts a closed batch.
func RecordBatch() {
	batchesTotal.Inc()
}

// RecordAnchor counts a persisted external anchor proof.
func RecordAnchor(provider string) {
	externalAnchorsTotal.WithLabelValues(provider).Inc()
}

// SetAttestations24h updates the trailing 24h gauge.
func SetAttestations24h(count uint64) {
	attestations24h.Set(float64(count))
}

// SetWitnessHealth updates a witness's health gauge.
func SetWitnessHealth(witnessID string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	witnessHealth.WithLabelValues(witnessID).Set(v)
}

// SetUptime updates the uptime gauge.
func SetUptime(d time.Duration) {
	uptimeSeconds.Set(d.Seconds())
}

// RequestTimer observes request duration on Stop.
type RequestTimer struct {
	start    time.Time
	endpoint string
}

// NewRequestTimer starts timing an endpoint.
func NewRequestTimer(endpoint string) *RequestTimer {
	return &RequestTimer{start: time.Now(), endpoint: endpoint}
}

// Stop records the elapsed duration.
func (t *RequestTimer) Stop() {
	requestDuration.WithLabelValues(t.endpoint).Observe(time.Since(t.start).Seconds())
}
