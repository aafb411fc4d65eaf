package watcher

import "sync"

// ClaimSet records which job consumed which deposit transaction. Two jobs
// awaiting a deposit from the same source address could otherwise match the
// same transfer. Seeded at boot from persisted deposit tx hashes.
type ClaimSet struct {
	mu     sync.Mutex
	byHash map[string]string // tx hash -> job id
}

// NewClaimSet returns an empty claim set
func NewClaimSet() *ClaimSet {
	return &ClaimSet{byHash: make(map[string]string)}
}

// Claim marks txHash as consumed by jobID. It returns false if a different
// job already claimed the hash; claiming one's own hash again is idempotent.
func (c *ClaimSet) Claim(txHash, jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if owner, ok := c.byHash[txHash]; ok {
		return owner == jobID
	}
	c.byHash[txHash] = jobID
	return true
}

// Release drops jobID's claim on txHash so another job can match the
// transaction. A claim held by a different job is left untouched.
func (c *ClaimSet) Release(txHash, jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if owner, ok := c.byHash[txHash]; ok && owner == jobID {
		delete(c.byHash, txHash)
	}
}

// ClaimedBy returns the job that claimed txHash, if any.
func (c *ClaimSet) ClaimedBy(txHash string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, ok := c.byHash[txHash]
	return owner, ok
}
