package jobstore

import (
	"time"

	"github.com/uptrace/bun"
)

// JobDao is a data access object that maps directly to the 'transfer_jobs'
// table in PostgreSQL.
type JobDao struct {
	bun.BaseModel     `bun:"table:transfer_jobs,alias:tj"`
	ID                string    `bun:"id,pk,type:varchar(36)"`
	UserSourceAddress string    `bun:"user_source_address,notnull,type:varchar(42)"`
	UserDestAddress   string    `bun:"user_dest_address,notnull,type:varchar(42)"`
	Amount            string    `bun:"amount,notnull,type:numeric(38,18)"`
	FromChain         string    `bun:"from_chain,notnull,type:varchar(32)"`
	ToChain           string    `bun:"to_chain,notnull,type:varchar(32)"`
	Status            string    `bun:"status,notnull,type:varchar(20)"`
	DepositTxHash     *string   `bun:"deposit_tx_hash,type:varchar(66)"`
	ApproveTxHash     *string   `bun:"approve_tx_hash,type:varchar(66)"`
	BurnTxHash        *string   `bun:"burn_tx_hash,type:varchar(66)"`
	Attestation       *string   `bun:"attestation,type:text"`
	MintTxHash        *string   `bun:"mint_tx_hash,type:varchar(66)"`
	PayoutTxHash      *string   `bun:"payout_tx_hash,type:varchar(66)"`
	ErrorMessage      *string   `bun:"error_message,type:text"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// toJobDao converts a Job to JobDao.
func toJobDao(job *Job) *JobDao {
	return &JobDao{
		ID:                job.ID,
		UserSourceAddress: job.UserSourceAddress,
		UserDestAddress:   job.UserDestAddress,
		Amount:            job.Amount,
		FromChain:         job.FromChain,
		ToChain:           job.ToChain,
		Status:            string(job.Status),
		DepositTxHash:     job.DepositTxHash,
		ApproveTxHash:     job.ApproveTxHash,
		BurnTxHash:        job.BurnTxHash,
		Attestation:       job.Attestation,
		MintTxHash:        job.MintTxHash,
		PayoutTxHash:      job.PayoutTxHash,
		ErrorMessage:      job.ErrorMessage,
		CreatedAt:         job.CreatedAt,
		UpdatedAt:         job.UpdatedAt,
	}
}

// toJob converts a JobDao to Job.
func toJob(dao *JobDao) *Job {
	return &Job{
		ID:                dao.ID,
		UserSourceAddress: dao.UserSourceAddress,
		UserDestAddress:   dao.UserDestAddress,
		Amount:            dao.Amount,
		FromChain:         dao.FromChain,
		ToChain:           dao.ToChain,
		Status:            Status(dao.Status),
		DepositTxHash:     dao.DepositTxHash,
		ApproveTxHash:     dao.ApproveTxHash,
		BurnTxHash:        dao.BurnTxHash,
		Attestation:       dao.Attestation,
		MintTxHash:        dao.MintTxHash,
		PayoutTxHash:      dao.PayoutTxHash,
		ErrorMessage:      dao.ErrorMessage,
		CreatedAt:         dao.CreatedAt,
		UpdatedAt:         dao.UpdatedAt,
	}
}
