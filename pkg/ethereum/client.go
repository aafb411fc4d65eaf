package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/stablerelay/transfer-middleware/internal/metrics"
	"github.com/stablerelay/transfer-middleware/pkg/config"
)

const receiptPollInterval = 2 * time.Second

// Client is a chain-bound RPC client for one configured chain. It reads
// blocks and token transfer logs and submits transactions signed by the relay
// identity, with nonce allocation serialized through a per-chain manager.
type Client struct {
	chain        string
	cfg          config.ChainConfig
	client       *ethclient.Client
	privateKey   *ecdsa.PrivateKey
	address      common.Address
	tokenAddress common.Address
	nonces       *NonceManager
	logger       *zap.Logger
}

// NewClient connects to the chain's RPC endpoint and binds the relay key.
func NewClient(chain string, cfg config.ChainConfig, relayPrivateKey string, logger *zap.Logger) (*Client, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s RPC: %w", chain, err)
	}

	privateKey, err := crypto.HexToECDSA(relayPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load relay private key: %w", err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	logger.Info("Connected to chain",
		zap.String("chain", chain),
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("rpc_url", cfg.RPCURL),
		zap.String("token_contract", cfg.TokenContract),
		zap.String("relay_address", address.Hex()))

	return &Client{
		chain:        chain,
		cfg:          cfg,
		client:       client,
		privateKey:   privateKey,
		address:      address,
		tokenAddress: common.HexToAddress(cfg.TokenContract),
		nonces:       NewNonceManager(),
		logger:       logger,
	}, nil
}

// Close closes the underlying RPC connection
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Chain returns the configured chain name
func (c *Client) Chain() string {
	return c.chain
}

// RelayAddress returns the relay identity's address
func (c *Client) RelayAddress() common.Address {
	return c.address
}

// TokenAddress returns the bridged asset's contract address on this chain
func (c *Client) TokenAddress() common.Address {
	return c.tokenAddress
}

// BlockNumber returns the current chain height
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return header.Number.Uint64(), nil
}

// FilterTokenTransfers returns the decoded Transfer events of the bridged
// asset in the inclusive block range.
func (c *Client) FilterTokenTransfers(ctx context.Context, fromBlock, toBlock uint64) ([]*TransferEvent, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.tokenAddress},
		Topics:    [][]common.Hash{{TransferEventSig}},
	}

	logs, err := c.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to filter transfer logs: %w", err)
	}

	events := make([]*TransferEvent, 0, len(logs))
	for i := range logs {
		event, err := DecodeTransferLog(&logs[i])
		if err != nil {
			c.logger.Warn("Skipping undecodable transfer log",
				zap.String("chain", c.chain),
				zap.String("tx_hash", logs[i].TxHash.Hex()),
				zap.Error(err))
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// SubmitCall signs and submits a contract call from the relay identity and
// returns the transaction hash. Nonce allocation goes through the per-chain
// manager so concurrent pipelines do not collide.
func (c *Client) SubmitCall(ctx context.Context, to common.Address, calldata []byte) (common.Hash, error) {
	nonce, err := c.nonces.Reserve(ctx, func(ctx context.Context) (uint64, error) {
		return c.client.PendingNonceAt(ctx, c.address)
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to reserve nonce: %w", err)
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		c.nonces.Reset()
		return common.Hash{}, fmt.Errorf("failed to suggest gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), c.cfg.GasLimit, gasPrice, calldata)

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(c.cfg.ChainID)), c.privateKey)
	if err != nil {
		c.nonces.Reset()
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		c.nonces.Reset()
		metrics.TransactionsSent.WithLabelValues(c.chain, "error").Inc()
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	metrics.TransactionsSent.WithLabelValues(c.chain, "submitted").Inc()

	c.logger.Info("Transaction submitted",
		zap.String("chain", c.chain),
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.Uint64("nonce", nonce))

	return signedTx.Hash(), nil
}

// TransferToken sends amount (base units) of the bridged asset from the relay
// identity to the given address.
func (c *Client) TransferToken(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	calldata, err := PackTransfer(to, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack transfer: %w", err)
	}
	return c.SubmitCall(ctx, c.tokenAddress, calldata)
}

// WaitForReceipt polls until the transaction is mined or ctx expires.
func (c *Client) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("transaction %s reverted", txHash.Hex())
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
