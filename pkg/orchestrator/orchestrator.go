// Package orchestrator runs the per-job transfer state machine: deposit
// detection, bridge run, payout. Every transition is persisted before the
// next step starts, so a crashed process resumes from the last durable state.
package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stablerelay/transfer-middleware/internal/metrics"
	apperrors "github.com/stablerelay/transfer-middleware/pkg/app/errors"
	"github.com/stablerelay/transfer-middleware/pkg/asset"
	"github.com/stablerelay/transfer-middleware/pkg/bridge"
	"github.com/stablerelay/transfer-middleware/pkg/jobstore"
)

const janitorInterval = time.Minute

// DepositWatcher waits for a matching inbound deposit on one chain
type DepositWatcher interface {
	WaitForDeposit(ctx context.Context, jobID string, fromAddress common.Address, requiredAmount *big.Int) (string, error)
	ReleaseDeposit(txHash, jobID string)
}

// BridgeDriver runs the burn/attest/mint protocol for one job
type BridgeDriver interface {
	Run(ctx context.Context, sourceChain, destChain string, amount *big.Int) (*bridge.Outcome, error)
}

// PayoutExecutor sends the bridged funds to the user's destination address
type PayoutExecutor interface {
	Payout(ctx context.Context, chain string, to string, amount *big.Int) (string, error)
}

// SubmitRequest is a validated transfer submission
type SubmitRequest struct {
	UserSourceAddress string
	UserDestAddress   string
	Amount            string
	FromChain         string
	ToChain           string
}

// Orchestrator owns every in-flight job pipeline. One goroutine per job; the
// orchestrator is the only writer of a job's record after submission.
type Orchestrator struct {
	store    jobstore.Store
	watchers map[string]DepositWatcher
	bridge   BridgeDriver
	payout   PayoutExecutor
	asset    *asset.Asset
	logger   *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an orchestrator and starts its janitor. Watchers are keyed by
// source chain name; a job can only be submitted for chains present here.
func New(store jobstore.Store, watchers map[string]DepositWatcher, driver BridgeDriver, payout PayoutExecutor, bridgedAsset *asset.Asset, logger *zap.Logger) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		store:    store,
		watchers: watchers,
		bridge:   driver,
		payout:   payout,
		asset:    bridgedAsset,
		logger:   logger,
		baseCtx:  ctx,
		cancel:   cancel,
	}
	o.wg.Add(1)
	go o.janitor()
	return o
}

// Stop cancels all in-flight pipelines and waits for them to persist their
// current state.
func (o *Orchestrator) Stop() {
	o.cancel()
	o.wg.Wait()
}

// Submit validates the request, creates the job and starts its pipeline. The
// returned job is already in awaiting_deposit; the caller gets it back before
// any chain interaction happens.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*jobstore.Job, error) {
	if _, ok := o.watchers[req.FromChain]; !ok {
		return nil, apperrors.BadRequestError(nil, fmt.Sprintf("unsupported source chain %q", req.FromChain))
	}
	if _, ok := o.watchers[req.ToChain]; !ok {
		return nil, apperrors.BadRequestError(nil, fmt.Sprintf("unsupported destination chain %q", req.ToChain))
	}
	if req.FromChain == req.ToChain {
		return nil, apperrors.BadRequestError(nil, "source and destination chain must differ")
	}
	if !common.IsHexAddress(req.UserSourceAddress) {
		return nil, apperrors.BadRequestError(nil, "userSourceAddress is not a valid address")
	}
	if !common.IsHexAddress(req.UserDestAddress) {
		return nil, apperrors.BadRequestError(nil, "userDestAddress is not a valid address")
	}
	amountBase, err := o.asset.ToBaseUnits(req.Amount)
	if err != nil {
		return nil, apperrors.BadRequestError(err, err.Error())
	}

	job := &jobstore.Job{
		ID:                uuid.NewString(),
		UserSourceAddress: req.UserSourceAddress,
		UserDestAddress:   req.UserDestAddress,
		Amount:            req.Amount,
		FromChain:         req.FromChain,
		ToChain:           req.ToChain,
		Status:            jobstore.StatusPending,
	}
	if err := o.store.Create(ctx, job); err != nil {
		return nil, apperrors.DependencyError(err, "failed to create job")
	}

	job, err = o.transition(ctx, job.ID, jobstore.StatusAwaitingDeposit, jobstore.Update{})
	if err != nil {
		return nil, apperrors.DependencyError(err, "failed to start job")
	}

	metrics.JobsTotal.WithLabelValues("submitted").Inc()
	o.logger.Info("Job submitted",
		zap.String("job_id", job.ID),
		zap.String("from_chain", job.FromChain),
		zap.String("to_chain", job.ToChain),
		zap.String("amount", job.Amount))

	o.launch(job, amountBase)
	return job, nil
}

// Resume re-enters the state machine for every persisted non-terminal job.
// Called once on startup, before the HTTP server accepts submissions.
func (o *Orchestrator) Resume(ctx context.Context) error {
	jobs, err := o.store.ListUnfinished(ctx)
	if err != nil {
		return fmt.Errorf("failed to list unfinished jobs: %w", err)
	}

	resumed := 0
	for _, job := range jobs {
		amountBase, err := o.asset.ToBaseUnits(job.Amount)
		if err != nil {
			// Persisted amount no longer parses under the current asset
			// config. Fail the job rather than crash the whole resume.
			o.failJob(ctx, job, fmt.Sprintf("unrecoverable amount: %s", err))
			continue
		}
		o.logger.Info("Resuming job",
			zap.String("job_id", job.ID),
			zap.String("status", string(job.Status)))
		o.launch(job, amountBase)
		resumed++
	}

	o.logger.Info("Crash recovery complete", zap.Int("resumed_jobs", resumed))
	return nil
}

func (o *Orchestrator) launch(job *jobstore.Job, amountBase *big.Int) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(job, amountBase)
	}()
}

// run drives one job from its current status to a terminal state. Nothing
// escapes the job boundary: errors and panics become a failed transition.
func (o *Orchestrator) run(job *jobstore.Job, amountBase *big.Int) {
	ctx := o.baseCtx
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Job pipeline panicked",
				zap.String("job_id", job.ID),
				zap.Any("panic", r))
			metrics.ErrorsTotal.WithLabelValues("orchestrator", "panic").Inc()
			o.failJob(ctx, job, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if job.Status == jobstore.StatusPending {
		updated, err := o.transition(ctx, job.ID, jobstore.StatusAwaitingDeposit, jobstore.Update{})
		if err != nil {
			o.failJob(ctx, job, fmt.Sprintf("failed to enter awaiting_deposit: %s", err))
			return
		}
		job = updated
	}

	if job.Status == jobstore.StatusAwaitingDeposit {
		watcher := o.watchers[job.FromChain]
		if watcher == nil {
			o.failJob(ctx, job, fmt.Sprintf("source chain %s is no longer configured", job.FromChain))
			return
		}

		depositTxHash, err := watcher.WaitForDeposit(ctx, job.ID, common.HexToAddress(job.UserSourceAddress), amountBase)
		if err != nil {
			o.failJob(ctx, job, fmt.Sprintf("deposit not received: %s", err))
			return
		}

		updated, err := o.transition(ctx, job.ID, jobstore.StatusProcessing, jobstore.Update{
			DepositTxHash: &depositTxHash,
		})
		if err != nil {
			// The deposit was never durably tied to this job; give the claim
			// back so a resubmitted job can match the same transaction.
			watcher.ReleaseDeposit(depositTxHash, job.ID)
			o.failJob(ctx, job, fmt.Sprintf("failed to record deposit: %s", err))
			return
		}
		job = updated
		o.logger.Info("Deposit matched",
			zap.String("job_id", job.ID),
			zap.String("deposit_tx_hash", depositTxHash))
	}

	// processing: bridge then payout. Hash fields are append-only, so a
	// recorded hash means that step already moved funds; a resumed job must
	// never run it again.
	var payoutTxHash string
	if job.PayoutTxHash != nil {
		payoutTxHash = *job.PayoutTxHash
		o.logger.Info("Payout already recorded, finishing job",
			zap.String("job_id", job.ID),
			zap.String("payout_tx_hash", payoutTxHash))
	} else {
		if job.MintTxHash == nil {
			if job.BurnTxHash != nil {
				// The burn landed but the mint did not, and the burn message
				// is not persisted, so the mint cannot be replayed here.
				// Re-burning would move the funds twice.
				o.failJob(ctx, job, "burn submitted but mint not confirmed; manual reconciliation required")
				return
			}

			outcome, bridgeErr := o.bridge.Run(ctx, job.FromChain, job.ToChain, amountBase)
			if outcome != nil {
				upd := jobstore.Update{
					ApproveTxHash: nonEmpty(outcome.ApproveTxHash),
					BurnTxHash:    nonEmpty(outcome.BurnTxHash),
					Attestation:   nonEmpty(outcome.Attestation),
					MintTxHash:    nonEmpty(outcome.MintTxHash),
				}
				if updated, err := o.store.Update(ctx, job.ID, upd); err != nil {
					o.logger.Error("Failed to persist bridge transactions",
						zap.String("job_id", job.ID),
						zap.Error(err))
				} else {
					job = updated
				}
			}
			if bridgeErr != nil {
				o.failJob(ctx, job, bridgeErr.Error())
				return
			}
		} else {
			o.logger.Info("Mint already recorded, skipping bridge",
				zap.String("job_id", job.ID),
				zap.String("mint_tx_hash", *job.MintTxHash))
		}

		hash, err := o.payout.Payout(ctx, job.ToChain, job.UserDestAddress, amountBase)
		if hash != "" {
			payoutTxHash = hash
			if updated, uerr := o.store.Update(ctx, job.ID, jobstore.Update{PayoutTxHash: &hash}); uerr != nil {
				o.logger.Error("Failed to persist payout transaction",
					zap.String("job_id", job.ID),
					zap.Error(uerr))
			} else {
				job = updated
			}
		}
		if err != nil {
			o.failJob(ctx, job, fmt.Sprintf("payout failed: %s", err))
			return
		}
	}

	if _, err := o.transition(ctx, job.ID, jobstore.StatusCompleted, jobstore.Update{}); err != nil {
		o.logger.Error("Failed to mark job completed",
			zap.String("job_id", job.ID),
			zap.Error(err))
		return
	}

	metrics.JobsTotal.WithLabelValues(string(jobstore.StatusCompleted)).Inc()
	metrics.JobDuration.WithLabelValues(job.FromChain, job.ToChain).Observe(time.Since(start).Seconds())
	o.logger.Info("Job completed",
		zap.String("job_id", job.ID),
		zap.String("payout_tx_hash", payoutTxHash),
		zap.Duration("elapsed", time.Since(start)))
}

// transition persists a forward status change together with any accompanying
// fields.
func (o *Orchestrator) transition(ctx context.Context, jobID string, status jobstore.Status, upd jobstore.Update) (*jobstore.Job, error) {
	upd.Status = &status
	return o.store.Update(ctx, jobID, upd)
}

func (o *Orchestrator) failJob(ctx context.Context, job *jobstore.Job, reason string) {
	if o.baseCtx.Err() != nil {
		// Shutting down. The job keeps its persisted state and is resumed
		// on the next start; a shutdown is not a job failure.
		o.logger.Info("Leaving job for resume after shutdown",
			zap.String("job_id", job.ID),
			zap.String("status", string(job.Status)))
		return
	}

	// Persist the failure even when the pipeline context was cancelled.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	o.logger.Error("Job failed",
		zap.String("job_id", job.ID),
		zap.String("from_chain", job.FromChain),
		zap.String("to_chain", job.ToChain),
		zap.String("reason", reason))

	if _, err := o.transition(ctx, job.ID, jobstore.StatusFailed, jobstore.Update{ErrorMessage: &reason}); err != nil {
		o.logger.Error("Failed to persist job failure",
			zap.String("job_id", job.ID),
			zap.Error(err))
		return
	}
	metrics.JobsTotal.WithLabelValues(string(jobstore.StatusFailed)).Inc()
}

// janitor periodically reports how many jobs are still in flight.
func (o *Orchestrator) janitor() {
	defer o.wg.Done()

	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.baseCtx.Done():
			return
		case <-ticker.C:
			jobs, err := o.store.ListUnfinished(o.baseCtx)
			if err != nil {
				o.logger.Warn("Janitor failed to list unfinished jobs", zap.Error(err))
				metrics.ErrorsTotal.WithLabelValues("janitor", "store").Inc()
				continue
			}
			metrics.UnfinishedJobs.Set(float64(len(jobs)))
			if len(jobs) > 0 {
				o.logger.Info("Unfinished jobs", zap.Int("count", len(jobs)))
			}
		}
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
