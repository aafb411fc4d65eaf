// Package cctp implements the burn/attest/mint bridge protocol against
// Circle's CCTP contracts: approve and depositForBurn on the source chain,
// attestation fetch from the attestation service, receiveMessage on the
// destination chain.
package cctp

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/stablerelay/transfer-middleware/pkg/bridge"
	"github.com/stablerelay/transfer-middleware/pkg/config"
	chain "github.com/stablerelay/transfer-middleware/pkg/ethereum"
)

// ChainClient is the chain access the engine needs. Satisfied by
// ethereum.Client.
type ChainClient interface {
	RelayAddress() common.Address
	TokenAddress() common.Address
	SubmitCall(ctx context.Context, to common.Address, calldata []byte) (common.Hash, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Attestor fetches the attestation over a burn message. Satisfied by
// AttestationClient.
type Attestor interface {
	Fetch(ctx context.Context, messageHash common.Hash) (string, error)
}

type chainBinding struct {
	client             ChainClient
	tokenMessenger     common.Address
	messageTransmitter common.Address
	domain             uint32
}

// Engine executes the CCTP protocol steps for one bridge run. It implements
// bridge.Engine.
type Engine struct {
	chains   map[string]chainBinding
	attestor Attestor
	logger   *zap.Logger
}

// NewEngine binds the engine to the configured chains and attestation service.
func NewEngine(clients map[string]ChainClient, chains map[string]config.ChainConfig, attestor Attestor, logger *zap.Logger) (*Engine, error) {
	bindings := make(map[string]chainBinding, len(clients))
	for name, client := range clients {
		cfg, ok := chains[name]
		if !ok {
			return nil, fmt.Errorf("no chain config for %s", name)
		}
		if cfg.TokenMessenger == "" || cfg.MessageTransmitter == "" {
			return nil, fmt.Errorf("chain %s is missing bridge contract addresses", name)
		}
		bindings[name] = chainBinding{
			client:             client,
			tokenMessenger:     common.HexToAddress(cfg.TokenMessenger),
			messageTransmitter: common.HexToAddress(cfg.MessageTransmitter),
			domain:             cfg.CCTPDomain,
		}
	}
	return &Engine{chains: bindings, attestor: attestor, logger: logger}, nil
}

// Run executes approve, burn, attestation fetch and mint in order. Step
// failures are reported in-band; the run stops at the first failed step.
func (e *Engine) Run(ctx context.Context, req bridge.Request) (*bridge.Result, error) {
	source, ok := e.chains[req.SourceChain]
	if !ok {
		return nil, fmt.Errorf("unknown source chain %s", req.SourceChain)
	}
	dest, ok := e.chains[req.DestinationChain]
	if !ok {
		return nil, fmt.Errorf("unknown destination chain %s", req.DestinationChain)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("bridge amount must be positive")
	}

	result := &bridge.Result{State: bridge.StateCompleted}

	fail := func(name bridge.StepName, err error) (*bridge.Result, error) {
		e.logger.Error("Bridge step failed",
			zap.String("step", string(name)),
			zap.String("source_chain", req.SourceChain),
			zap.String("dest_chain", req.DestinationChain),
			zap.Error(err))
		result.Steps = append(result.Steps, bridge.Step{
			Name:    name,
			Status:  bridge.StepError,
			Message: err.Error(),
		})
		result.State = bridge.StateFailed
		return result, nil
	}

	// Approve the token messenger to pull the burn amount.
	approveTx, err := e.approve(ctx, source, req.Amount)
	if err != nil {
		return fail(bridge.StepApprove, err)
	}
	result.Steps = append(result.Steps, bridge.Step{
		Name:   bridge.StepApprove,
		Status: bridge.StepOK,
		TxHash: approveTx.Hex(),
	})

	burnTx, message, err := e.burn(ctx, source, dest, req.Amount)
	if err != nil {
		return fail(bridge.StepBurn, err)
	}
	result.Steps = append(result.Steps, bridge.Step{
		Name:   bridge.StepBurn,
		Status: bridge.StepOK,
		TxHash: burnTx.Hex(),
	})

	messageHash := crypto.Keccak256Hash(message)
	attestation, err := e.attestor.Fetch(ctx, messageHash)
	if err != nil {
		return fail(bridge.StepFetchAttestation, err)
	}
	result.Steps = append(result.Steps, bridge.Step{
		Name:   bridge.StepFetchAttestation,
		Status: bridge.StepOK,
		Data:   attestation,
	})

	mintTx, err := e.mint(ctx, dest, message, attestation)
	if err != nil {
		return fail(bridge.StepMint, err)
	}
	result.Steps = append(result.Steps, bridge.Step{
		Name:   bridge.StepMint,
		Status: bridge.StepOK,
		TxHash: mintTx.Hex(),
	})

	e.logger.Info("Bridge protocol completed",
		zap.String("source_chain", req.SourceChain),
		zap.String("dest_chain", req.DestinationChain),
		zap.String("burn_tx_hash", burnTx.Hex()),
		zap.String("mint_tx_hash", mintTx.Hex()))

	return result, nil
}

func (e *Engine) approve(ctx context.Context, source chainBinding, amount *big.Int) (common.Hash, error) {
	calldata, err := chain.PackApprove(source.tokenMessenger, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack approve: %w", err)
	}
	txHash, err := source.client.SubmitCall(ctx, source.client.TokenAddress(), calldata)
	if err != nil {
		return common.Hash{}, err
	}
	if _, err := source.client.WaitForReceipt(ctx, txHash); err != nil {
		return common.Hash{}, err
	}
	return txHash, nil
}

func (e *Engine) burn(ctx context.Context, source, dest chainBinding, amount *big.Int) (common.Hash, []byte, error) {
	calldata, err := PackDepositForBurn(amount, dest.domain, dest.client.RelayAddress(), source.client.TokenAddress())
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("failed to pack depositForBurn: %w", err)
	}
	txHash, err := source.client.SubmitCall(ctx, source.tokenMessenger, calldata)
	if err != nil {
		return common.Hash{}, nil, err
	}
	receipt, err := source.client.WaitForReceipt(ctx, txHash)
	if err != nil {
		return common.Hash{}, nil, err
	}
	message, err := ExtractMessageSent(receipt)
	if err != nil {
		return common.Hash{}, nil, err
	}
	return txHash, message, nil
}

func (e *Engine) mint(ctx context.Context, dest chainBinding, message []byte, attestation string) (common.Hash, error) {
	attestationBytes, err := hexutil.Decode(attestation)
	if err != nil {
		return common.Hash{}, fmt.Errorf("attestation is not valid hex: %w", err)
	}
	calldata, err := PackReceiveMessage(message, attestationBytes)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack receiveMessage: %w", err)
	}
	txHash, err := dest.client.SubmitCall(ctx, dest.messageTransmitter, calldata)
	if err != nil {
		return common.Hash{}, err
	}
	if _, err := dest.client.WaitForReceipt(ctx, txHash); err != nil {
		return common.Hash{}, err
	}
	return txHash, nil
}
