// Package watcher detects inbound deposits of the bridged asset on a source
// chain. Each job runs its own poll loop; there is no shared waiter state
// beyond the claim set, so a restarted process rebuilds the same loop from
// the persisted job.
package watcher

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/stablerelay/transfer-middleware/internal/metrics"
	"github.com/stablerelay/transfer-middleware/pkg/ethereum"
)

// ErrDepositTimeout is returned when the deposit-wait budget is exhausted.
var ErrDepositTimeout = errors.New("timed out waiting for deposit")

// ChainReader is the chain access the watcher needs
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterTokenTransfers(ctx context.Context, fromBlock, toBlock uint64) ([]*ethereum.TransferEvent, error)
}

// Watcher polls one chain for deposits to the relay address.
type Watcher struct {
	chain        string
	reader       ChainReader
	relayAddress common.Address
	pollInterval time.Duration
	timeout      time.Duration
	claims       *ClaimSet
	logger       *zap.Logger
}

// New creates a watcher for the given chain.
func New(chain string, reader ChainReader, relayAddress common.Address, pollInterval, timeout time.Duration, claims *ClaimSet, logger *zap.Logger) *Watcher {
	return &Watcher{
		chain:        chain,
		reader:       reader,
		relayAddress: relayAddress,
		pollInterval: pollInterval,
		timeout:      timeout,
		claims:       claims,
		logger:       logger,
	}
}

// ReleaseDeposit gives back jobID's claim on txHash. Called when the caller
// could not durably record a matched deposit, so a later job can claim the
// same transaction.
func (w *Watcher) ReleaseDeposit(txHash, jobID string) {
	w.claims.Release(txHash, jobID)
}

// WaitForDeposit blocks until a transfer of at least requiredAmount (base
// units) from fromAddress to the relay address lands on the chain, or the
// timeout budget runs out. The low-water mark is the height at the time of
// the call; older transfers are never matched. Deposits below the required
// amount are ignored, not accumulated. Transient read errors are retried
// inside the budget.
func (w *Watcher) WaitForDeposit(ctx context.Context, jobID string, fromAddress common.Address, requiredAmount *big.Int) (string, error) {
	deadline := time.Now().Add(w.timeout)

	var lastScanned uint64
	haveMark := false

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if !haveMark {
			height, err := w.reader.BlockNumber(ctx)
			if err != nil {
				w.logger.Warn("Failed to read chain height",
					zap.String("chain", w.chain),
					zap.String("job_id", jobID),
					zap.Error(err))
				metrics.ErrorsTotal.WithLabelValues("watcher", "chain_read").Inc()
			} else {
				lastScanned = height
				haveMark = true
			}
		} else if txHash, found := w.scan(ctx, jobID, fromAddress, requiredAmount, &lastScanned); found {
			return txHash, nil
		}

		if time.Now().After(deadline) {
			return "", ErrDepositTimeout
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// scan advances the low-water mark block by block, one block per log filter
// to bound filter size, and reports the first satisfying transfer.
func (w *Watcher) scan(ctx context.Context, jobID string, fromAddress common.Address, requiredAmount *big.Int, lastScanned *uint64) (string, bool) {
	latest, err := w.reader.BlockNumber(ctx)
	if err != nil {
		w.logger.Warn("Failed to read chain height",
			zap.String("chain", w.chain),
			zap.String("job_id", jobID),
			zap.Error(err))
		metrics.ErrorsTotal.WithLabelValues("watcher", "chain_read").Inc()
		return "", false
	}

	for block := *lastScanned + 1; block <= latest; block++ {
		events, err := w.reader.FilterTokenTransfers(ctx, block, block)
		if err != nil {
			w.logger.Warn("Failed to filter transfer logs",
				zap.String("chain", w.chain),
				zap.Uint64("block", block),
				zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues("watcher", "log_filter").Inc()
			// Retry the same block on the next tick.
			return "", false
		}
		metrics.BlocksScanned.WithLabelValues(w.chain).Inc()

		for _, event := range events {
			if event.From != fromAddress || event.To != w.relayAddress {
				continue
			}
			if event.Value.Cmp(requiredAmount) < 0 {
				continue
			}
			txHash := event.TxHash.Hex()
			if !w.claims.Claim(txHash, jobID) {
				// Already consumed by another job watching the same address.
				continue
			}

			metrics.DepositsMatched.WithLabelValues(w.chain).Inc()
			w.logger.Info("Deposit matched",
				zap.String("chain", w.chain),
				zap.String("job_id", jobID),
				zap.String("tx_hash", txHash),
				zap.Uint64("block", event.BlockNumber))
			return txHash, true
		}

		*lastScanned = block
	}

	return "", false
}
