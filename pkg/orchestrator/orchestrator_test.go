package orchestrator

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stablerelay/transfer-middleware/pkg/asset"
	"github.com/stablerelay/transfer-middleware/pkg/bridge"
	"github.com/stablerelay/transfer-middleware/pkg/jobstore"
	"github.com/stablerelay/transfer-middleware/pkg/watcher"
)

const (
	testSourceAddr = "0x1111111111111111111111111111111111111111"
	testDestAddr   = "0x2222222222222222222222222222222222222222"
)

func happyWatcher() *mockWatcher {
	return &mockWatcher{
		WaitForDepositFunc: func(_ context.Context, _ string, _ common.Address, _ *big.Int) (string, error) {
			return "0xdeposit", nil
		},
	}
}

func happyDriver() *mockDriver {
	return &mockDriver{
		RunFunc: func(_ context.Context, _, _ string, _ *big.Int) (*bridge.Outcome, error) {
			return &bridge.Outcome{
				ApproveTxHash: "0xapprove",
				BurnTxHash:    "0xburn",
				Attestation:   "0xattestation",
				MintTxHash:    "0xmint",
			}, nil
		},
	}
}

func happyPayout() *mockPayout {
	return &mockPayout{
		PayoutFunc: func(_ context.Context, _ string, _ string, _ *big.Int) (string, error) {
			return "0xpayout", nil
		},
	}
}

func newTestOrchestrator(t *testing.T, store jobstore.Store, w DepositWatcher, d BridgeDriver, p PayoutExecutor) *Orchestrator {
	t.Helper()
	o := New(store,
		map[string]DepositWatcher{"ethereum": w, "base": w},
		d, p, asset.New("USDC", 6), zap.NewNop())
	t.Cleanup(o.Stop)
	return o
}

func submitRequest() SubmitRequest {
	return SubmitRequest{
		UserSourceAddress: testSourceAddr,
		UserDestAddress:   testDestAddr,
		Amount:            "10.5",
		FromChain:         "ethereum",
		ToChain:           "base",
	}
}

func waitForTerminal(t *testing.T, store jobstore.Store, id string) *jobstore.Job {
	t.Helper()
	var job *jobstore.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = store.Get(context.Background(), id)
		require.NoError(t, err)
		return job.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestOrchestrator_HappyPath(t *testing.T) {
	store := newMemoryStore()
	o := newTestOrchestrator(t, store, happyWatcher(), happyDriver(), happyPayout())

	job, err := o.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusAwaitingDeposit, job.Status)
	assert.NotEmpty(t, job.ID)

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, jobstore.StatusCompleted, final.Status)
	require.NotNil(t, final.DepositTxHash)
	assert.Equal(t, "0xdeposit", *final.DepositTxHash)
	require.NotNil(t, final.ApproveTxHash)
	assert.Equal(t, "0xapprove", *final.ApproveTxHash)
	require.NotNil(t, final.BurnTxHash)
	assert.Equal(t, "0xburn", *final.BurnTxHash)
	require.NotNil(t, final.Attestation)
	assert.Equal(t, "0xattestation", *final.Attestation)
	require.NotNil(t, final.MintTxHash)
	assert.Equal(t, "0xmint", *final.MintTxHash)
	require.NotNil(t, final.PayoutTxHash)
	assert.Equal(t, "0xpayout", *final.PayoutTxHash)
	assert.Nil(t, final.ErrorMessage)
}

func TestOrchestrator_Submit_Validation(t *testing.T) {
	store := newMemoryStore()
	o := newTestOrchestrator(t, store, happyWatcher(), happyDriver(), happyPayout())

	cases := []struct {
		name    string
		mutate  func(*SubmitRequest)
		wantErr string
	}{
		{"unknown source chain", func(r *SubmitRequest) { r.FromChain = "solana" }, "unsupported source chain"},
		{"unknown dest chain", func(r *SubmitRequest) { r.ToChain = "solana" }, "unsupported destination chain"},
		{"same chain", func(r *SubmitRequest) { r.ToChain = "ethereum" }, "must differ"},
		{"bad source address", func(r *SubmitRequest) { r.UserSourceAddress = "nope" }, "userSourceAddress"},
		{"bad dest address", func(r *SubmitRequest) { r.UserDestAddress = "nope" }, "userDestAddress"},
		{"zero amount", func(r *SubmitRequest) { r.Amount = "0" }, "positive"},
		{"negative amount", func(r *SubmitRequest) { r.Amount = "-5" }, "positive"},
		{"malformed amount", func(r *SubmitRequest) { r.Amount = "ten" }, "parse amount"},
		{"too many decimals", func(r *SubmitRequest) { r.Amount = "1.0000001" }, "decimal places"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := submitRequest()
			tc.mutate(&req)
			_, err := o.Submit(context.Background(), req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	jobs, err := store.List(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, jobs, "rejected submissions must not create jobs")
}

func TestOrchestrator_DepositTimeout(t *testing.T) {
	store := newMemoryStore()
	w := &mockWatcher{
		WaitForDepositFunc: func(context.Context, string, common.Address, *big.Int) (string, error) {
			return "", watcher.ErrDepositTimeout
		},
	}
	o := newTestOrchestrator(t, store, w, happyDriver(), happyPayout())

	job, err := o.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, jobstore.StatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "deposit not received")
	assert.Nil(t, final.DepositTxHash)
}

func TestOrchestrator_BridgeFailurePersistsPartialHashes(t *testing.T) {
	store := newMemoryStore()
	d := &mockDriver{
		RunFunc: func(context.Context, string, string, *big.Int) (*bridge.Outcome, error) {
			return &bridge.Outcome{ApproveTxHash: "0xapprove"},
				assert.AnError
		},
	}
	o := newTestOrchestrator(t, store, happyWatcher(), d, happyPayout())

	job, err := o.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, jobstore.StatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	require.NotNil(t, final.ApproveTxHash)
	assert.Equal(t, "0xapprove", *final.ApproveTxHash)
	assert.Nil(t, final.BurnTxHash)
	assert.Nil(t, final.PayoutTxHash)
}

func TestOrchestrator_PayoutFailure(t *testing.T) {
	store := newMemoryStore()
	p := &mockPayout{
		PayoutFunc: func(context.Context, string, string, *big.Int) (string, error) {
			return "0xpayout", assert.AnError
		},
	}
	o := newTestOrchestrator(t, store, happyWatcher(), happyDriver(), p)

	job, err := o.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, jobstore.StatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "payout failed")
	require.NotNil(t, final.PayoutTxHash, "a submitted payout hash is recorded even on failure")
}

func TestOrchestrator_PanicBecomesFailedJob(t *testing.T) {
	store := newMemoryStore()
	d := &mockDriver{
		RunFunc: func(context.Context, string, string, *big.Int) (*bridge.Outcome, error) {
			panic("boom")
		},
	}
	o := newTestOrchestrator(t, store, happyWatcher(), d, happyPayout())

	job, err := o.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, jobstore.StatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "internal error")
	assert.Contains(t, *final.ErrorMessage, "boom")
}

func TestOrchestrator_Resume(t *testing.T) {
	store := newMemoryStore()

	awaiting := &jobstore.Job{
		ID:                uuid.NewString(),
		UserSourceAddress: testSourceAddr,
		UserDestAddress:   testDestAddr,
		Amount:            "10",
		FromChain:         "ethereum",
		ToChain:           "base",
		Status:            jobstore.StatusAwaitingDeposit,
	}
	require.NoError(t, store.Create(context.Background(), awaiting))

	depositHash := "0xexisting"
	processing := &jobstore.Job{
		ID:                uuid.NewString(),
		UserSourceAddress: testSourceAddr,
		UserDestAddress:   testDestAddr,
		Amount:            "20",
		FromChain:         "ethereum",
		ToChain:           "base",
		Status:            jobstore.StatusProcessing,
		DepositTxHash:     &depositHash,
	}
	require.NoError(t, store.Create(context.Background(), processing))

	var depositWaits int32
	w := &mockWatcher{
		WaitForDepositFunc: func(_ context.Context, jobID string, _ common.Address, _ *big.Int) (string, error) {
			atomic.AddInt32(&depositWaits, 1)
			assert.Equal(t, awaiting.ID, jobID, "only the awaiting job should wait for a deposit")
			return "0xdeposit", nil
		},
	}
	o := newTestOrchestrator(t, store, w, happyDriver(), happyPayout())

	require.NoError(t, o.Resume(context.Background()))

	finalAwaiting := waitForTerminal(t, store, awaiting.ID)
	finalProcessing := waitForTerminal(t, store, processing.ID)

	assert.Equal(t, jobstore.StatusCompleted, finalAwaiting.Status)
	assert.Equal(t, jobstore.StatusCompleted, finalProcessing.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&depositWaits))

	// The processing job keeps its original deposit hash.
	require.NotNil(t, finalProcessing.DepositTxHash)
	assert.Equal(t, depositHash, *finalProcessing.DepositTxHash)
}

// seedProcessingJob creates a processing job whose record already carries the
// given tx hashes, as left behind by a process that died mid-pipeline.
func seedProcessingJob(t *testing.T, store jobstore.Store, hashes jobstore.Update) *jobstore.Job {
	t.Helper()
	job := &jobstore.Job{
		ID:                uuid.NewString(),
		UserSourceAddress: testSourceAddr,
		UserDestAddress:   testDestAddr,
		Amount:            "20",
		FromChain:         "ethereum",
		ToChain:           "base",
		Status:            jobstore.StatusProcessing,
		DepositTxHash:     hashes.DepositTxHash,
		ApproveTxHash:     hashes.ApproveTxHash,
		BurnTxHash:        hashes.BurnTxHash,
		Attestation:       hashes.Attestation,
		MintTxHash:        hashes.MintTxHash,
		PayoutTxHash:      hashes.PayoutTxHash,
	}
	require.NoError(t, store.Create(context.Background(), job))
	return job
}

func strptr(s string) *string { return &s }

func TestOrchestrator_Resume_SkipsRecordedPayout(t *testing.T) {
	store := newMemoryStore()
	job := seedProcessingJob(t, store, jobstore.Update{
		DepositTxHash: strptr("0xexisting"),
		ApproveTxHash: strptr("0xapprove"),
		BurnTxHash:    strptr("0xburn"),
		Attestation:   strptr("0xattestation"),
		MintTxHash:    strptr("0xmint"),
		PayoutTxHash:  strptr("0xoldpayout"),
	})

	var bridgeRuns, payouts int32
	d := &mockDriver{
		RunFunc: func(context.Context, string, string, *big.Int) (*bridge.Outcome, error) {
			atomic.AddInt32(&bridgeRuns, 1)
			return &bridge.Outcome{}, nil
		},
	}
	p := &mockPayout{
		PayoutFunc: func(context.Context, string, string, *big.Int) (string, error) {
			atomic.AddInt32(&payouts, 1)
			return "0xnewpayout", nil
		},
	}
	o := newTestOrchestrator(t, store, happyWatcher(), d, p)

	require.NoError(t, o.Resume(context.Background()))

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, jobstore.StatusCompleted, final.Status)
	assert.Equal(t, int32(0), atomic.LoadInt32(&bridgeRuns), "a recorded mint must not be bridged again")
	assert.Equal(t, int32(0), atomic.LoadInt32(&payouts), "a recorded payout must not be paid again")
	require.NotNil(t, final.PayoutTxHash)
	assert.Equal(t, "0xoldpayout", *final.PayoutTxHash)
}

func TestOrchestrator_Resume_SkipsBridgeAfterMint(t *testing.T) {
	store := newMemoryStore()
	job := seedProcessingJob(t, store, jobstore.Update{
		DepositTxHash: strptr("0xexisting"),
		ApproveTxHash: strptr("0xapprove"),
		BurnTxHash:    strptr("0xburn"),
		Attestation:   strptr("0xattestation"),
		MintTxHash:    strptr("0xmint"),
	})

	var bridgeRuns, payouts int32
	d := &mockDriver{
		RunFunc: func(context.Context, string, string, *big.Int) (*bridge.Outcome, error) {
			atomic.AddInt32(&bridgeRuns, 1)
			return &bridge.Outcome{}, nil
		},
	}
	p := &mockPayout{
		PayoutFunc: func(context.Context, string, string, *big.Int) (string, error) {
			atomic.AddInt32(&payouts, 1)
			return "0xpayout", nil
		},
	}
	o := newTestOrchestrator(t, store, happyWatcher(), d, p)

	require.NoError(t, o.Resume(context.Background()))

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, jobstore.StatusCompleted, final.Status)
	assert.Equal(t, int32(0), atomic.LoadInt32(&bridgeRuns), "minted funds must not be burned again")
	assert.Equal(t, int32(1), atomic.LoadInt32(&payouts))
	require.NotNil(t, final.MintTxHash)
	assert.Equal(t, "0xmint", *final.MintTxHash)
	require.NotNil(t, final.PayoutTxHash)
	assert.Equal(t, "0xpayout", *final.PayoutTxHash)
}

func TestOrchestrator_Resume_BurnWithoutMintNeedsReconciliation(t *testing.T) {
	store := newMemoryStore()
	job := seedProcessingJob(t, store, jobstore.Update{
		DepositTxHash: strptr("0xexisting"),
		ApproveTxHash: strptr("0xapprove"),
		BurnTxHash:    strptr("0xburn"),
	})

	var bridgeRuns, payouts int32
	d := &mockDriver{
		RunFunc: func(context.Context, string, string, *big.Int) (*bridge.Outcome, error) {
			atomic.AddInt32(&bridgeRuns, 1)
			return &bridge.Outcome{}, nil
		},
	}
	p := &mockPayout{
		PayoutFunc: func(context.Context, string, string, *big.Int) (string, error) {
			atomic.AddInt32(&payouts, 1)
			return "0xpayout", nil
		},
	}
	o := newTestOrchestrator(t, store, happyWatcher(), d, p)

	require.NoError(t, o.Resume(context.Background()))

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, jobstore.StatusFailed, final.Status)
	assert.Equal(t, int32(0), atomic.LoadInt32(&bridgeRuns), "an unconfirmed burn must not be burned again")
	assert.Equal(t, int32(0), atomic.LoadInt32(&payouts), "unminted funds must not be paid out")
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "manual reconciliation")
}

func TestOrchestrator_ReleasesClaimWhenDepositPersistFails(t *testing.T) {
	store := newMemoryStore()
	store.updateErr = func(_ string, upd jobstore.Update) error {
		if upd.Status != nil && *upd.Status == jobstore.StatusProcessing {
			return assert.AnError
		}
		return nil
	}

	var releasedHash, releasedJob string
	w := &mockWatcher{
		WaitForDepositFunc: func(context.Context, string, common.Address, *big.Int) (string, error) {
			return "0xdeposit", nil
		},
		ReleaseDepositFunc: func(txHash, jobID string) {
			releasedHash = txHash
			releasedJob = jobID
		},
	}
	o := newTestOrchestrator(t, store, w, happyDriver(), happyPayout())

	job, err := o.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, jobstore.StatusFailed, final.Status)
	assert.Equal(t, "0xdeposit", releasedHash, "an unrecorded deposit claim must be given back")
	assert.Equal(t, job.ID, releasedJob)
}

func TestOrchestrator_StatusOnlyMovesForward(t *testing.T) {
	store := newMemoryStore()
	o := newTestOrchestrator(t, store, happyWatcher(), happyDriver(), happyPayout())

	job, err := o.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	seen := map[jobstore.Status]bool{}
	order := []jobstore.Status{
		jobstore.StatusPending,
		jobstore.StatusAwaitingDeposit,
		jobstore.StatusProcessing,
		jobstore.StatusCompleted,
	}
	rank := func(s jobstore.Status) int {
		for i, v := range order {
			if v == s {
				return i
			}
		}
		return -1
	}

	last := -1
	require.Eventually(t, func() bool {
		current, err := store.Get(context.Background(), job.ID)
		require.NoError(t, err)
		r := rank(current.Status)
		require.GreaterOrEqual(t, r, last, "status must never move backwards")
		last = r
		seen[current.Status] = true
		return current.Status.Terminal()
	}, 5*time.Second, time.Millisecond)

	assert.True(t, seen[jobstore.StatusCompleted])
}
