package ethereum

import (
	"context"
	"sync"
)

// NonceManager serializes nonce allocation for the relay identity on one
// chain. Multiple job pipelines submit transactions from the same address
// concurrently; without a single allocator they would collide on nonces.
type NonceManager struct {
	mu     sync.Mutex
	next   uint64
	seeded bool
}

// NewNonceManager returns an unseeded manager. The first Reserve call seeds
// it from the chain's pending nonce.
func NewNonceManager() *NonceManager {
	return &NonceManager{}
}

// Reserve allocates the next nonce, seeding from the chain on first use.
func (m *NonceManager) Reserve(ctx context.Context, seed func(context.Context) (uint64, error)) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.seeded {
		n, err := seed(ctx)
		if err != nil {
			return 0, err
		}
		m.next = n
		m.seeded = true
	}

	n := m.next
	m.next++
	return n, nil
}

// Reset drops the local sequence so the next Reserve re-seeds from the chain.
// Called after a failed submission, where the local count may have diverged.
func (m *NonceManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeded = false
}
