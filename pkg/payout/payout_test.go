package payout

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockChainClient struct {
	TransferTokenFunc  func(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error)
	WaitForReceiptFunc func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

func (m *mockChainClient) TransferToken(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	return m.TransferTokenFunc(ctx, to, amount)
}

func (m *mockChainClient) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return m.WaitForReceiptFunc(ctx, txHash)
}

func TestExecutor_Payout(t *testing.T) {
	wantTo := common.HexToAddress("0x1234567890123456789012345678901234567890")
	wantHash := common.HexToHash("0xabcd")

	client := &mockChainClient{
		TransferTokenFunc: func(_ context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
			assert.Equal(t, wantTo, to)
			assert.Equal(t, big.NewInt(5000000), amount)
			return wantHash, nil
		},
		WaitForReceiptFunc: func(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
			assert.Equal(t, wantHash, txHash)
			return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
		},
	}

	executor := NewExecutor(map[string]ChainClient{"base": client}, zap.NewNop())
	txHash, err := executor.Payout(context.Background(), "base", wantTo.Hex(), big.NewInt(5000000))
	require.NoError(t, err)
	assert.Equal(t, wantHash.Hex(), txHash)
}

func TestExecutor_Payout_UnknownChain(t *testing.T) {
	executor := NewExecutor(map[string]ChainClient{}, zap.NewNop())
	_, err := executor.Payout(context.Background(), "base", "0x1234567890123456789012345678901234567890", big.NewInt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown payout chain")
}

func TestExecutor_Payout_InvalidAddress(t *testing.T) {
	executor := NewExecutor(map[string]ChainClient{"base": &mockChainClient{}}, zap.NewNop())
	_, err := executor.Payout(context.Background(), "base", "not-an-address", big.NewInt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid payout address")
}

func TestExecutor_Payout_TransferError(t *testing.T) {
	client := &mockChainClient{
		TransferTokenFunc: func(context.Context, common.Address, *big.Int) (common.Hash, error) {
			return common.Hash{}, errors.New("nonce too low")
		},
	}
	executor := NewExecutor(map[string]ChainClient{"base": client}, zap.NewNop())
	_, err := executor.Payout(context.Background(), "base", "0x1234567890123456789012345678901234567890", big.NewInt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonce too low")
}

func TestExecutor_Payout_RevertedStillReturnsHash(t *testing.T) {
	wantHash := common.HexToHash("0xabcd")
	client := &mockChainClient{
		TransferTokenFunc: func(context.Context, common.Address, *big.Int) (common.Hash, error) {
			return wantHash, nil
		},
		WaitForReceiptFunc: func(context.Context, common.Hash) (*types.Receipt, error) {
			return &types.Receipt{Status: types.ReceiptStatusFailed}, errors.New("transaction reverted")
		},
	}
	executor := NewExecutor(map[string]ChainClient{"base": client}, zap.NewNop())
	txHash, err := executor.Payout(context.Background(), "base", "0x1234567890123456789012345678901234567890", big.NewInt(1))
	require.Error(t, err)
	assert.Equal(t, wantHash.Hex(), txHash)
}
