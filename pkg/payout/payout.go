// Package payout sends the bridged funds from the relay identity to the
// user's destination address once the bridge run has minted them.
package payout

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// ChainClient is the chain access the executor needs. Satisfied by
// ethereum.Client.
type ChainClient interface {
	TransferToken(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Executor performs the final token transfer of a job on the destination
// chain.
type Executor struct {
	clients map[string]ChainClient
	logger  *zap.Logger
}

// NewExecutor binds the executor to the configured chain clients.
func NewExecutor(clients map[string]ChainClient, logger *zap.Logger) *Executor {
	return &Executor{clients: clients, logger: logger}
}

// Payout transfers amount (base units) to the given address on the named
// chain and waits for the transaction to be mined. The returned hash is
// recorded on the job whether or not the transfer later reverts.
func (e *Executor) Payout(ctx context.Context, chain string, to string, amount *big.Int) (string, error) {
	client, ok := e.clients[chain]
	if !ok {
		return "", fmt.Errorf("unknown payout chain %s", chain)
	}
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid payout address %s", to)
	}

	txHash, err := client.TransferToken(ctx, common.HexToAddress(to), amount)
	if err != nil {
		return "", fmt.Errorf("payout transfer failed: %w", err)
	}

	e.logger.Info("Payout submitted",
		zap.String("chain", chain),
		zap.String("to", to),
		zap.String("amount", amount.String()),
		zap.String("tx_hash", txHash.Hex()))

	if _, err := client.WaitForReceipt(ctx, txHash); err != nil {
		return txHash.Hex(), fmt.Errorf("payout transaction failed: %w", err)
	}

	return txHash.Hex(), nil
}
