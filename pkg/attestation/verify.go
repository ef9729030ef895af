// Copyright 2025 Witness Protocol
//
// Quorum Verification
// Verify is a pure function of (signature variant, network config): it
// looks up signer keys in the config, checks every signature over the
// canonical bytes, and enforces the threshold. It is used both before
// persistence and to answer public verify requests.

package attestation

import (
	"github.com/flammafex/witness/pkg/config"
	"github.com/flammafex/witness/pkg/crypto/bls"
)

// Verify validates a signed attestation against the network configuration
// and returns the number of verified signatures.
//
// Behavior is dispatched on (variant, scheme):
//   - (MultiSig, ed25519): verify each signature individually, count
//     successes, enforce the threshold on the count.
//   - (Aggregated, bls): enforce the threshold on the signer list, then
//     verify the single aggregated signature against the aggregate of the
//     signers' public keys.
//   - any other pair is a scheme mismatch and fails.
func Verify(signed *SignedAttestation, cfg *config.NetworkConfig) (int, error) {
	switch {
	case !signed.Signatures.IsAggregated() && cfg.SignatureScheme == config.SchemeEd25519:
		return verifyMultiSig(signed, cfg)

	case signed.Signatures.IsAggregated() && cfg.SignatureScheme == config.SchemeBLS:
		return verifyAggregated(signed, cfg)

	default:
		return 0, ErrInvalidSignature
	}
}

func verifyMultiSig(signed *SignedAttestation, cfg *config.NetworkConfig) (int, error) {
	signatures := signed.Signatures.MultiSig
	if len(signatures) == 0 {
		return 0, &InsufficientSignaturesError{Got: 0, Required: cfg.Threshold}
	}

	verified := 0
	for _, sig := range signatures {
		witness := cfg.FindWitness(sig.WitnessID)
		if witness == nil {
			return 0, &WitnessNotFoundError{WitnessID: sig.WitnessID}
		}

		pub, err := DecodePublicKey(witness.Pubkey)
		if err != nil {
			return 0, err
		}

		if VerifyAttestationSignature(&signed.Attestation, sig.Signature, pub) == nil {
			verified++
		}
	}

	if verified < cfg.Threshold {
		return 0, &InsufficientSignaturesError{Got: verified, Required: cfg.Threshold}
	}
	return verified, nil
}

func verifyAggregated(signed *SignedAttestation, cfg *config.NetworkConfig) (int, error) {
	agg := signed.Signatures.Aggregated
	if len(agg.Signers) == 0 {
		return 0, &InsufficientSignaturesError{Got: 0, Required: cfg.Threshold}
	}
	if len(agg.Signers) < cfg.Threshold {
		return 0, &InsufficientSignaturesError{Got: len(agg.Signers), Required: cfg.Threshold}
	}

	publicKeys := make([]*bls.PublicKey, 0, len(agg.Signers))
	for _, signerID := range agg.Signers {
		witness := cfg.FindWitness(signerID)
		if witness == nil {
			return 0, &WitnessNotFoundError{WitnessID: signerID}
		}

		pub, err := bls.PublicKeyFromHex(witness.Pubkey)
		if err != nil {
			return 0, &InvalidPublicKeyError{Reason: err.Error()}
		}
		publicKeys = append(publicKeys, pub)
	}

	sig, err := bls.SignatureFromBytes(agg.Signature)
	if err != nil {
		return 0, ErrInvalidSignature
	}

	if !bls.VerifyAggregate(sig, publicKeys, signed.Attestation.CanonicalBytes()) {
		return 0, ErrInvalidSignature
	}
	return len(agg.Signers), nil
}
