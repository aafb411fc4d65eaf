package ethereum

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TransferEvent represents a decoded ERC-20 Transfer log
type TransferEvent struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint
}
