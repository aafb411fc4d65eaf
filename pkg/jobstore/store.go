package jobstore

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when a job id does not exist in the store.
var ErrJobNotFound = errors.New("job not found")

// Store provides durable storage for transfer jobs. Update is a merge: fields
// omitted from the partial update keep their persisted value. Concurrent
// updates for different job ids are safe; per-id writes are serialized by the
// orchestrator's single-writer-per-job guarantee.
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Update(ctx context.Context, id string, upd Update) (*Job, error)
	// ListUnfinished returns all jobs in a non-terminal state, oldest first.
	// Used for crash recovery on startup and by the janitor.
	ListUnfinished(ctx context.Context) ([]*Job, error)
	// List returns the most recent jobs.
	List(ctx context.Context, limit int) ([]*Job, error)
}
