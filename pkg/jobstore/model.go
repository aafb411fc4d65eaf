package jobstore

import (
	"time"
)

// Status represents the current state of a transfer job. Statuses only move
// forward: pending -> awaiting_deposit -> processing -> completed, with failed
// reachable from awaiting_deposit and processing.
type Status string

const (
	StatusPending         Status = "pending"
	StatusAwaitingDeposit Status = "awaiting_deposit"
	StatusProcessing      Status = "processing"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job represents one user-initiated cross-chain transfer and its durable
// progress record. Tx-hash and attestation fields are append-only: once set
// they are never overwritten or cleared. Jobs are never deleted.
type Job struct {
	ID                string    `json:"id"`
	UserSourceAddress string    `json:"userSourceAddress"`
	UserDestAddress   string    `json:"userDestAddress"`
	Amount            string    `json:"amount"`
	FromChain         string    `json:"fromChain"`
	ToChain           string    `json:"toChain"`
	Status            Status    `json:"status"`
	DepositTxHash     *string   `json:"depositTxHash,omitempty"`
	ApproveTxHash     *string   `json:"approveTxHash,omitempty"`
	BurnTxHash        *string   `json:"burnTxHash,omitempty"`
	Attestation       *string   `json:"attestation,omitempty"`
	MintTxHash        *string   `json:"mintTxHash,omitempty"`
	PayoutTxHash      *string   `json:"payoutTxHash,omitempty"`
	ErrorMessage      *string   `json:"errorMessage,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Update is a partial update for a job. Nil fields keep their persisted
// value; non-nil tx-hash and attestation fields only fill columns that are
// still null.
type Update struct {
	Status        *Status
	DepositTxHash *string
	ApproveTxHash *string
	BurnTxHash    *string
	Attestation   *string
	MintTxHash    *string
	PayoutTxHash  *string
	ErrorMessage  *string
}
