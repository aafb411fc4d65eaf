package ethereum

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const erc20ABIJSON = `[
	{
		"type": "function",
		"name": "transfer",
		"inputs": [
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}]
	},
	{
		"type": "function",
		"name": "approve",
		"inputs": [
			{"internalType": "address", "name": "spender", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}]
	},
	{
		"type": "event",
		"name": "Transfer",
		"inputs": [
			{"internalType": "address", "name": "from", "type": "address", "indexed": true},
			{"internalType": "address", "name": "to", "type": "address", "indexed": true},
			{"internalType": "uint256", "name": "value", "type": "uint256", "indexed": false}
		]
	}
]`

// TransferEventSig is the keccak topic of the ERC-20 Transfer event
var TransferEventSig = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid erc20 abi: %v", err))
	}
	erc20ABI = parsed
}

// PackTransfer returns calldata for an ERC-20 transfer
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("transfer", to, amount)
}

// PackApprove returns calldata for an ERC-20 approve
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("approve", spender, amount)
}

// DecodeTransferLog decodes an ERC-20 Transfer log. The log must carry the
// Transfer topic and both indexed address topics.
func DecodeTransferLog(log *types.Log) (*TransferEvent, error) {
	if len(log.Topics) != 3 || log.Topics[0] != TransferEventSig {
		return nil, fmt.Errorf("log is not an ERC-20 Transfer event")
	}

	value := new(big.Int)
	if len(log.Data) > 0 {
		value.SetBytes(log.Data)
	}

	return &TransferEvent{
		From:        common.BytesToAddress(log.Topics[1].Bytes()),
		To:          common.BytesToAddress(log.Topics[2].Bytes()),
		Value:       value,
		TxHash:      log.TxHash,
		BlockNumber: log.BlockNumber,
		LogIndex:    log.Index,
	}, nil
}
