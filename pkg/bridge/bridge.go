// Package bridge defines the burn/attest/mint protocol contract and the
// driver that runs it for one job. The protocol itself is an external
// capability behind the Engine interface.
package bridge

import (
	"context"
	"math/big"
)

// StepName identifies one protocol step. The engine executes them in this
// fixed order.
type StepName string

const (
	StepApprove          StepName = "approve"
	StepBurn             StepName = "burn"
	StepFetchAttestation StepName = "fetchAttestation"
	StepMint             StepName = "mint"
)

// StepStatus is the outcome of one step
type StepStatus string

const (
	StepOK    StepStatus = "ok"
	StepError StepStatus = "error"
)

// Step records one executed protocol step. TxHash is set for on-chain steps,
// Data carries the attestation payload for fetchAttestation, Message the
// failure reason for an errored step.
type Step struct {
	Name    StepName   `json:"name"`
	Status  StepStatus `json:"status"`
	TxHash  string     `json:"txHash,omitempty"`
	Data    string     `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
}

// State is the overall outcome of a bridge run
type State string

const (
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Result is the full outcome of a bridge run
type Result struct {
	Steps []Step `json:"steps"`
	State State  `json:"state"`
}

// FirstFailed returns the first errored step, if any.
func (r *Result) FirstFailed() (*Step, bool) {
	for i := range r.Steps {
		if r.Steps[i].Status == StepError {
			return &r.Steps[i], true
		}
	}
	return nil, false
}

// StepByName returns the named step, if present.
func (r *Result) StepByName(name StepName) (*Step, bool) {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i], true
		}
	}
	return nil, false
}

// Request describes one bridge run. Amount is in the asset's base units. The
// engine signs everything with the relay identity; user keys are never
// involved.
type Request struct {
	SourceChain      string
	DestinationChain string
	Amount           *big.Int
}

// Engine executes the protocol steps and reports per-step results. A step
// failure is reported in-band through the result; the returned error is
// reserved for the engine being unable to run at all.
type Engine interface {
	Run(ctx context.Context, req Request) (*Result, error)
}
