// Copyright 2025 Witness Protocol
//
// witness-node: signs well-formed attestations with this node's private
// key. Also generates keypairs with --generate-key.

package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/crypto/bls"
	"github.com/flammafex/witness/pkg/witness"
)

func main() {
	var (
		configPath  = flag.String("config", "witness.json", "path to witness configuration file")
		port        = flag.Int("port", 0, "HTTP port to listen on (overrides config)")
		generateKey = flag.Bool("generate-key", false, "generate a new keypair and exit")
		useBLS      = flag.Bool("bls", false, "generate a BLS keypair instead of Ed25519")
	)
	flag.Parse()

	logger := log.New(log.Writer(), "[WitnessNode] ", log.LstdFlags)

	if *generateKey {
		if err := generateKeypair(*useBLS); err != nil {
			logger.Fatalf("Key generation failed: %v", err)
		}
		return
	}

	cfg, err := witness.LoadNodeConfig(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	listenPort := cfg.Port
	if *port != 0 {
		listenPort = *port
	}

	logger.Printf("Starting witness node: %s", cfg.ID)
	logger.Printf("Public key: %s", cfg.PublicKey())
	logger.Printf("Network: %s, scheme: %s", cfg.NetworkID, cfg.SignatureScheme)

	srv := witness.NewServer(cfg, logger)
	if err := srv.Run(listenPort); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
}

func generateKeypair(useBLS bool) error {
	if useBLS {
		sk, pk, err := bls.GenerateKeyPair()
		if err != nil {
			return err
		}
		fmt.Println("Generated new BLS keypair:")
		fmt.Printf("Public key:  %s\n", pk.Hex())
		fmt.Printf("Private key: %s\n", sk.Hex())
		fmt.Println()
		fmt.Println("Store the private key securely in your witness configuration.")
		fmt.Println("Share the public key with the network coordinator.")
		fmt.Println()
		fmt.Println("In your witness config, set:")
		fmt.Println("  \"signature_scheme\": \"bls\"")
		return nil
	}

	sk, pk, err := attestation.GenerateKeyPair()
	if err != nil {
		return err
	}
	fmt.Println("Generated new Ed25519 keypair:")
	fmt.Printf("Public key:  %s\n", attestation.EncodePublicKey(pk))
	fmt.Printf("Private key: %s\n", hex.EncodeToString(sk.Seed()))
	fmt.Println()
	fmt.Println("Store the private key securely in your witness configuration.")
	fmt.Println("Share the public key with the network coordinator.")
	fmt.Println()
	fmt.Println("In your witness config, set:")
	fmt.Println("  \"signature_scheme\": \"ed25519\"")
	return nil
}
