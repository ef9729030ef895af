// Copyright 2025 Witness Protocol
//
// Ethereum/EVM anchor provider. Anchors a batch root by sending a 0-value
// transaction to the sender's own address carrying the root in the input
// data. The transaction hash and block number are the public proof.

package anchor

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/flammafex/witness/pkg/attestation"
	"github.com/flammafex/witness/pkg/config"
)

// ethAnchorTimeout bounds one anchoring transaction including mining.
const ethAnchorTimeout = 90 * time.Second

// EthereumProvider anchors batch roots on an EVM chain.
type EthereumProvider struct {
	rpcURL     string
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewEthereumProvider creates the provider from an RPC URL and a hex
// private key. The connection is established lazily per anchor call so a
// temporarily unreachable RPC endpoint does not block startup.
func NewEthereumProvider(rpcURL, privateKeyHex string) (*EthereumProvider, error) {
	if rpcURL == "" || privateKeyHex == "" {
		return nil, errors.New("missing 'rpc_url' or 'private_key' option")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &EthereumProvider{
		rpcURL:     rpcURL,
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Type implements Provider.
func (p *EthereumProvider) Type() config.AnchorProviderType {
	return config.ProviderBlockchain
}

// Anchor implements Provider.
func (p *EthereumProvider) Anchor(ctx context.Context, request *attestation.AnchorRequest) (*attestation.AnchorResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, ethAnchorTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, p.rpcURL)
	if err != nil {
		return failure(fmt.Sprintf("connect to RPC: %v", err)), nil
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return failure(fmt.Sprintf("query chain id: %v", err)), nil
	}

	nonce, err := client.PendingNonceAt(ctx, p.address)
	if err != nil {
		return failure(fmt.Sprintf("query nonce: %v", err)), nil
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return failure(fmt.Sprintf("query gas price: %v", err)), nil
	}

	// The payload is the raw merkle root; the recipient is the sender.
	data := request.Batch.MerkleRoot[:]

	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:  p.address,
		To:    &p.address,
		Value: big.NewInt(0),
		Data:  data,
	})
	if err != nil {
		return failure(fmt.Sprintf("estimate gas: %v", err)), nil
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &p.address,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), p.privateKey)
	if err != nil {
		return failure(fmt.Sprintf("sign transaction: %v", err)), nil
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return failure(fmt.Sprintf("send transaction: %v", err)), nil
	}

	receipt, err := waitMined(ctx, client, signedTx.Hash())
	if err != nil {
		return failure(fmt.Sprintf("wait for receipt: %v", err)), nil
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return failure("transaction reverted"), nil
	}

	proofBody, err := json.Marshal(map[string]any{
		"network":      "ethereum",
		"chain_id":     chainID.String(),
		"tx_hash":      signedTx.Hash().Hex(),
		"block_number": receipt.BlockNumber.Uint64(),
		"batch_id":     request.Batch.ID,
		"merkle_root":  request.Batch.MerkleRoot.Hex(),
	})
	if err != nil {
		return failure(fmt.Sprintf("encode proof: %v", err)), nil
	}

	return success(&attestation.ExternalAnchorProof{
		Provider:     config.ProviderBlockchain,
		Timestamp:    uint64(time.Now().Unix()),
		Proof:        proofBody,
		AnchoredData: data,
	}), nil
}

// waitMined polls for the transaction receipt until the context expires.
func waitMined(ctx context.Context, client *ethclient.Client, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
