package cctp

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const tokenMessengerABIJSON = `[
	{
		"type": "function",
		"name": "depositForBurn",
		"inputs": [
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "uint32", "name": "destinationDomain", "type": "uint32"},
			{"internalType": "bytes32", "name": "mintRecipient", "type": "bytes32"},
			{"internalType": "address", "name": "burnToken", "type": "address"}
		],
		"outputs": [{"internalType": "uint64", "name": "nonce", "type": "uint64"}]
	}
]`

const messageTransmitterABIJSON = `[
	{
		"type": "function",
		"name": "receiveMessage",
		"inputs": [
			{"internalType": "bytes", "name": "message", "type": "bytes"},
			{"internalType": "bytes", "name": "attestation", "type": "bytes"}
		],
		"outputs": [{"internalType": "bool", "name": "success", "type": "bool"}]
	},
	{
		"type": "event",
		"name": "MessageSent",
		"inputs": [
			{"internalType": "bytes", "name": "message", "type": "bytes", "indexed": false}
		]
	}
]`

// MessageSentEventSig is the keccak topic of the MessageSent event emitted by
// the message transmitter during depositForBurn.
var MessageSentEventSig = crypto.Keccak256Hash([]byte("MessageSent(bytes)"))

var (
	tokenMessengerABI     abi.ABI
	messageTransmitterABI abi.ABI
)

func init() {
	var err error
	tokenMessengerABI, err = abi.JSON(strings.NewReader(tokenMessengerABIJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid token messenger abi: %v", err))
	}
	messageTransmitterABI, err = abi.JSON(strings.NewReader(messageTransmitterABIJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid message transmitter abi: %v", err))
	}
}

// PackDepositForBurn returns calldata for TokenMessenger.depositForBurn. The
// mint recipient is the relay address left-padded to bytes32.
func PackDepositForBurn(amount *big.Int, destinationDomain uint32, mintRecipient common.Address, burnToken common.Address) ([]byte, error) {
	var recipient [32]byte
	copy(recipient[12:], mintRecipient.Bytes())
	return tokenMessengerABI.Pack("depositForBurn", amount, destinationDomain, recipient, burnToken)
}

// PackReceiveMessage returns calldata for MessageTransmitter.receiveMessage
func PackReceiveMessage(message, attestation []byte) ([]byte, error) {
	return messageTransmitterABI.Pack("receiveMessage", message, attestation)
}

// ExtractMessageSent finds the MessageSent event in a burn receipt and
// returns the raw message bytes.
func ExtractMessageSent(receipt *types.Receipt) ([]byte, error) {
	for _, log := range receipt.Logs {
		if len(log.Topics) == 0 || log.Topics[0] != MessageSentEventSig {
			continue
		}
		values, err := messageTransmitterABI.Events["MessageSent"].Inputs.Unpack(log.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack MessageSent log: %w", err)
		}
		message, ok := values[0].([]byte)
		if !ok {
			return nil, fmt.Errorf("MessageSent payload is not bytes")
		}
		return message, nil
	}
	return nil, fmt.Errorf("burn receipt carries no MessageSent event")
}
