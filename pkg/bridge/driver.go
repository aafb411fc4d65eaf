package bridge

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/stablerelay/transfer-middleware/internal/metrics"
)

// Outcome is the extract of a successful bridge run that the orchestrator
// persists into the job record.
type Outcome struct {
	ApproveTxHash string
	BurnTxHash    string
	Attestation   string
	MintTxHash    string
}

// Driver runs the bridge engine for one job and turns the step-level result
// into either an Outcome or a terminal error. There is no internal retry: a
// failed run is terminal for the job and the user must resubmit.
type Driver struct {
	engine Engine
	logger *zap.Logger
}

// NewDriver creates a driver around the given engine.
func NewDriver(engine Engine, logger *zap.Logger) *Driver {
	return &Driver{engine: engine, logger: logger}
}

// Run executes the bridge protocol for (sourceChain -> destChain, amount in
// base units). On failure the first failed step's name and message are
// preserved verbatim in the error.
func (d *Driver) Run(ctx context.Context, sourceChain, destChain string, amount *big.Int) (*Outcome, error) {
	result, err := d.engine.Run(ctx, Request{
		SourceChain:      sourceChain,
		DestinationChain: destChain,
		Amount:           amount,
	})
	if err != nil {
		return nil, fmt.Errorf("bridge engine failed: %w", err)
	}

	for _, step := range result.Steps {
		metrics.BridgeSteps.WithLabelValues(string(step.Name), string(step.Status)).Inc()
	}

	outcome := &Outcome{}
	for _, extract := range []struct {
		name StepName
		dst  *string
		data bool
	}{
		{StepApprove, &outcome.ApproveTxHash, false},
		{StepBurn, &outcome.BurnTxHash, false},
		{StepFetchAttestation, &outcome.Attestation, true},
		{StepMint, &outcome.MintTxHash, false},
	} {
		step, ok := result.StepByName(extract.name)
		if !ok || step.Status != StepOK {
			continue
		}
		if extract.data {
			*extract.dst = step.Data
		} else {
			*extract.dst = step.TxHash
		}
	}

	if result.State != StateCompleted {
		// Hashes of the steps that did land are still returned so the
		// caller can persist them alongside the failure.
		if step, ok := result.FirstFailed(); ok {
			return outcome, fmt.Errorf("%s step failed: %s", step.Name, step.Message)
		}
		return outcome, fmt.Errorf("bridge failed without a reported step")
	}

	if outcome.ApproveTxHash == "" || outcome.BurnTxHash == "" || outcome.Attestation == "" || outcome.MintTxHash == "" {
		return nil, fmt.Errorf("bridge result missing a completed step")
	}

	d.logger.Info("Bridge run completed",
		zap.String("source_chain", sourceChain),
		zap.String("dest_chain", destChain),
		zap.String("burn_tx_hash", outcome.BurnTxHash),
		zap.String("mint_tx_hash", outcome.MintTxHash))

	return outcome, nil
}
