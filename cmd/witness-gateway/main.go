// Copyright 2025 Witness Protocol
//
// witness-gateway: aggregates witness signatures into attestations,
// batches them, and anchors batch roots into external systems.

package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/flammafex/witness/pkg/anchor"
	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/batch"
	"github.com/flammafex/witness/pkg/config"
	"github.com/flammafex/witness/pkg/gateway"
	"github.com/flammafex/witness/pkg/metrics"
	"github.com/flammafex/witness/pkg/server"
	"github.com/flammafex/witness/pkg/storage"
)

func main() {
	var (
		configPath = flag.String("config", "network.json", "path to network configuration file")
		port       = flag.Int("port", 8080, "HTTP port to listen on")
		dbPath     = flag.String("database", "gateway.db", "path to SQLite database")
	)
	flag.Parse()

	logger := log.New(log.Writer(), "[Gateway] ", log.LstdFlags)

	networkConfig, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Printf("Loaded network configuration: %s", networkConfig.ID)
	logger.Printf("Witnesses: %d", len(networkConfig.Witnesses))
	logger.Printf("Threshold: %d", networkConfig.Threshold)
	logger.Printf("Signature scheme: %s", networkConfig.SignatureScheme)

	if networkConfig.Federation.Enabled {
		logger.Printf("Federation enabled with %d peer networks",
			len(networkConfig.Federation.PeerNetworks))
		logger.Printf("Batch period: %d seconds", networkConfig.Federation.BatchPeriod)
	} else {
		logger.Println("Federation disabled")
	}

	if networkConfig.ExternalAnchors.Enabled {
		logger.Printf("External anchoring enabled with %d providers",
			len(networkConfig.ExternalAnchors.Providers))
		logger.Printf("Minimum required anchors: %d",
			networkConfig.ExternalAnchors.MinimumRequired)
	}

	store, err := storage.Open(*dbPath)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()
	logger.Printf("Database initialized: %s", *dbPath)

	freebird := gateway.NewFreebirdClient(config.FreebirdFromEnv())
	if freebird != nil {
		fc := freebird.Config()
		logger.Printf("Freebird enabled: verifier=%s, required=%t, trusted_issuers=%d",
			fc.VerifierURL, fc.Required, len(fc.IssuerIDs))
	} else {
		logger.Println("Freebird disabled (no FREEBIRD_VERIFIER_URL set)")
	}

	service := gateway.NewService(networkConfig, store, freebird, logger)

	anchorManager := anchor.NewManager(networkConfig, store, nil)
	federationClient := gateway.NewFederationClient(networkConfig, store, nil)

	sink := &batchSink{
		anchors:    anchorManager,
		federation: federationClient,
		logger:     logger,
	}
	batchManager := batch.NewManager(networkConfig, store, batch.WithAnchorSink(sink))

	ctx := context.Background()
	batchManager.Start(ctx)
	defer batchManager.Stop()

	startBackgroundTasks(ctx, service, logger)

	api := server.New(service, logger)
	if err := api.Run(*port); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
}

// batchSink fans closed batches out to external anchoring and to peer
// networks for cross-anchoring. Both run detached from the close cycle.
type batchSink struct {
	anchors    *anchor.Manager
	federation *gateway.FederationClient
	logger     *log.Logger
}

func (s *batchSink) AnchorBatchAsync(b attestation.Batch) {
	s.anchors.AnchorBatchAsync(b)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := s.federation.CrossAnchorBatch(ctx, &b); err != nil {
			s.logger.Printf("Cross-anchoring batch %d failed: %v", b.ID, err)
		}
	}()
}

// startBackgroundTasks launches the uptime updater, the trailing-24h
// attestation gauge, and the witness health checker.
func startBackgroundTasks(ctx context.Context, service *gateway.Service, logger *log.Logger) {
	start := time.Now()

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.SetUptime(time.Since(start))

				since := uint64(time.Now().Add(-24 * time.Hour).Unix())
				count, err := service.Store().CountAttestationsSince(ctx, since)
				if err != nil {
					logger.Printf("Failed to refresh 24h attestation count: %v", err)
					continue
				}
				metrics.SetAttestations24h(count)
			}
		}
	}()

	go func() {
		client := service.WitnessClient()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for i := range service.Config().Witnesses {
					w := service.Config().Witnesses[i]
					healthy := client.HealthCheck(ctx, &w)
					metrics.SetWitnessHealth(w.ID, healthy)
				}
			}
		}
	}()
}
