package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the job store
func NewStore(db *bun.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) Create(ctx context.Context, job *Job) error {
	dao := toJobDao(job)

	_, err := s.db.NewInsert().
		Model(dao).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	// Timestamps are server-assigned.
	job.CreatedAt = dao.CreatedAt
	job.UpdatedAt = dao.UpdatedAt
	return nil
}

func (s *pgStore) Get(ctx context.Context, id string) (*Job, error) {
	dao := new(JobDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return toJob(dao), nil
}

// Update merges the partial update into the persisted row. Tx-hash and
// attestation columns are COALESCE-guarded so a value, once set, is never
// overwritten by a later write.
func (s *pgStore) Update(ctx context.Context, id string, upd Update) (*Job, error) {
	q := s.db.NewUpdate().
		Model((*JobDao)(nil)).
		Where("id = ?", id).
		Set("updated_at = now()")

	if upd.Status != nil {
		q = q.Set("status = ?", string(*upd.Status))
	}
	if upd.DepositTxHash != nil {
		q = q.Set("deposit_tx_hash = COALESCE(deposit_tx_hash, ?)", *upd.DepositTxHash)
	}
	if upd.ApproveTxHash != nil {
		q = q.Set("approve_tx_hash = COALESCE(approve_tx_hash, ?)", *upd.ApproveTxHash)
	}
	if upd.BurnTxHash != nil {
		q = q.Set("burn_tx_hash = COALESCE(burn_tx_hash, ?)", *upd.BurnTxHash)
	}
	if upd.Attestation != nil {
		q = q.Set("attestation = COALESCE(attestation, ?)", *upd.Attestation)
	}
	if upd.MintTxHash != nil {
		q = q.Set("mint_tx_hash = COALESCE(mint_tx_hash, ?)", *upd.MintTxHash)
	}
	if upd.PayoutTxHash != nil {
		q = q.Set("payout_tx_hash = COALESCE(payout_tx_hash, ?)", *upd.PayoutTxHash)
	}
	if upd.ErrorMessage != nil {
		q = q.Set("error_message = COALESCE(error_message, ?)", *upd.ErrorMessage)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return nil, ErrJobNotFound
	}

	return s.Get(ctx, id)
}

func (s *pgStore) ListUnfinished(ctx context.Context) ([]*Job, error) {
	var daos []JobDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("status NOT IN (?, ?)", string(StatusCompleted), string(StatusFailed)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unfinished jobs: %w", err)
	}
	jobs := make([]*Job, len(daos))
	for i := range daos {
		jobs[i] = toJob(&daos[i])
	}
	return jobs, nil
}

func (s *pgStore) List(ctx context.Context, limit int) ([]*Job, error) {
	var daos []JobDao
	err := s.db.NewSelect().
		Model(&daos).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	jobs := make([]*Job, len(daos))
	for i := range daos {
		jobs[i] = toJob(&daos[i])
	}
	return jobs, nil
}
