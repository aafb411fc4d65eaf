package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts transfer jobs by terminal status
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_jobs_total",
			Help: "Total number of transfer jobs by status",
		},
		[]string{"status"},
	)

	// JobDuration tracks end-to-end job processing time
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transfer_job_duration_seconds",
			Help:    "Job processing duration in seconds from submission to terminal state",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"from_chain", "to_chain"},
	)

	// DepositsMatched counts deposits matched by the chain watcher
	DepositsMatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_deposits_matched_total",
			Help: "Total number of deposits matched to a job",
		},
		[]string{"chain"},
	)

	// BlocksScanned counts blocks scanned while waiting for deposits
	BlocksScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_blocks_scanned_total",
			Help: "Total number of blocks scanned for deposits",
		},
		[]string{"chain"},
	)

	// BridgeSteps counts bridge protocol steps by name and outcome
	BridgeSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_bridge_steps_total",
			Help: "Total number of bridge protocol steps executed",
		},
		[]string{"step", "status"},
	)

	// TransactionsSent counts transactions submitted to each chain
	TransactionsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_transactions_sent_total",
			Help: "Total number of transactions sent",
		},
		[]string{"chain", "operation"},
	)

	// UnfinishedJobs tracks jobs currently in a non-terminal state
	UnfinishedJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transfer_unfinished_jobs",
			Help: "Number of jobs in a non-terminal state",
		},
	)

	// ErrorsTotal counts errors by component and type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
