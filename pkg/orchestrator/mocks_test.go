package orchestrator

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stablerelay/transfer-middleware/pkg/bridge"
	"github.com/stablerelay/transfer-middleware/pkg/jobstore"
)

type mockWatcher struct {
	WaitForDepositFunc func(ctx context.Context, jobID string, fromAddress common.Address, requiredAmount *big.Int) (string, error)
	ReleaseDepositFunc func(txHash, jobID string)
}

func (m *mockWatcher) WaitForDeposit(ctx context.Context, jobID string, fromAddress common.Address, requiredAmount *big.Int) (string, error) {
	return m.WaitForDepositFunc(ctx, jobID, fromAddress, requiredAmount)
}

func (m *mockWatcher) ReleaseDeposit(txHash, jobID string) {
	if m.ReleaseDepositFunc != nil {
		m.ReleaseDepositFunc(txHash, jobID)
	}
}

type mockDriver struct {
	RunFunc func(ctx context.Context, sourceChain, destChain string, amount *big.Int) (*bridge.Outcome, error)
}

func (m *mockDriver) Run(ctx context.Context, sourceChain, destChain string, amount *big.Int) (*bridge.Outcome, error) {
	return m.RunFunc(ctx, sourceChain, destChain, amount)
}

type mockPayout struct {
	PayoutFunc func(ctx context.Context, chain string, to string, amount *big.Int) (string, error)
}

func (m *mockPayout) Payout(ctx context.Context, chain string, to string, amount *big.Int) (string, error) {
	return m.PayoutFunc(ctx, chain, to, amount)
}

// memoryStore mirrors the persistent store's merge semantics, including the
// fill-only behavior of tx-hash columns.
type memoryStore struct {
	mu   sync.Mutex
	jobs map[string]*jobstore.Job

	// updateErr, when set, makes Update fail for the given update.
	updateErr func(id string, upd jobstore.Update) error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{jobs: make(map[string]*jobstore.Job)}
}

func (s *memoryStore) Create(_ context.Context, job *jobstore.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*jobstore.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, jobstore.ErrJobNotFound
	}
	clone := *job
	return &clone, nil
}

func (s *memoryStore) Update(_ context.Context, id string, upd jobstore.Update) (*jobstore.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		if err := s.updateErr(id, upd); err != nil {
			return nil, err
		}
	}
	job, ok := s.jobs[id]
	if !ok {
		return nil, jobstore.ErrJobNotFound
	}
	if upd.Status != nil {
		job.Status = *upd.Status
	}
	fill := func(dst **string, src *string) {
		if src != nil && *dst == nil {
			v := *src
			*dst = &v
		}
	}
	fill(&job.DepositTxHash, upd.DepositTxHash)
	fill(&job.ApproveTxHash, upd.ApproveTxHash)
	fill(&job.BurnTxHash, upd.BurnTxHash)
	fill(&job.Attestation, upd.Attestation)
	fill(&job.MintTxHash, upd.MintTxHash)
	fill(&job.PayoutTxHash, upd.PayoutTxHash)
	if upd.ErrorMessage != nil {
		v := *upd.ErrorMessage
		job.ErrorMessage = &v
	}
	job.UpdatedAt = time.Now()
	clone := *job
	return &clone, nil
}

func (s *memoryStore) ListUnfinished(_ context.Context) ([]*jobstore.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*jobstore.Job
	for _, job := range s.jobs {
		if !job.Status.Terminal() {
			clone := *job
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) List(_ context.Context, limit int) ([]*jobstore.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*jobstore.Job
	for _, job := range s.jobs {
		clone := *job
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
