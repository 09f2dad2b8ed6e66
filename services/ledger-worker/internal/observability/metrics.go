package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FlushedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lw_flush",
			Name:      "records_total",
			Help:      "Transaction records bulk-inserted into the durable store",
		},
	)

	FlushFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lw_flush",
			Name:      "batch_failures_total",
			Help:      "Flush batches rejected by the durable store",
		},
	)

	DeadLettered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lw_flush",
			Name:      "dead_letter_total",
			Help:      "Queue entries pushed to the dead-letter list by reason",
		},
		[]string{"reason"},
	)

	DeadLetterDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lw_flush",
			Name:      "dead_letter_depth",
			Help:      "Current length of the dead-letter list",
		},
	)

	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lw_flush",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one flush tick",
			Buckets:   prometheus.DefBuckets,
		},
	)

	SyncedAccounts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lw_sync",
			Name:      "accounts_total",
			Help:      "Account rows advanced by the reconciliation scheduler",
		},
	)

	StaleSnapshots = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lw_sync",
			Name:      "stale_snapshots_total",
			Help:      "Balance-sync entries discarded by the lastOpId guard",
		},
	)

	MalformedSyncEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lw_sync",
			Name:      "malformed_entries_total",
			Help:      "Balance-sync payloads that failed decoding",
		},
	)

	TicksSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lw_scheduler",
			Name:      "ticks_skipped_total",
			Help:      "Ticks skipped because another runner held the lease",
		},
		[]string{"scheduler"},
	)
)
