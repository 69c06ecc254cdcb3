package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceFetchTotal tracks fetch outcomes per source so that "source
	// failed" stays distinguishable from "source returned zero records".
	SourceFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treasuryd_source_fetch_total",
			Help: "Total number of source fetch attempts",
		},
		[]string{"source", "status"},
	)

	// SourceRecords tracks the record count returned by the last fetch
	SourceRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "treasuryd_source_records",
			Help: "Records returned by the last successful fetch per source",
		},
		[]string{"source"},
	)

	// GenerationTotal tracks snapshot generation cycles per trigger
	GenerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treasuryd_generation_total",
			Help: "Total number of snapshot generation cycles",
		},
		[]string{"trigger", "status"},
	)

	// GenerationSkippedTotal tracks triggers dropped by the single-flight guard
	GenerationSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treasuryd_generation_skipped_total",
			Help: "Generation triggers skipped because a cycle was in flight",
		},
	)

	// GenerationDuration tracks how long a full fetch+merge+persist cycle takes
	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "treasuryd_generation_duration_seconds",
			Help:    "Snapshot generation cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CacheReadTotal tracks freshness policy outcomes on the read path
	CacheReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treasuryd_cache_read_total",
			Help: "Read path outcomes: fresh, generated, stale_fallback, unavailable",
		},
		[]string{"outcome"},
	)

	// SnapshotTotalUsd tracks the total USD value of the latest snapshot
	SnapshotTotalUsd = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treasuryd_snapshot_total_usd",
			Help: "Total USD value of the most recently generated snapshot",
		},
	)

	// SnapshotTokens tracks the token count of the latest snapshot
	SnapshotTokens = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treasuryd_snapshot_tokens",
			Help: "Token count of the most recently generated snapshot",
		},
	)

	// PersistFailuresTotal tracks snapshot persistence failures
	PersistFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treasuryd_persist_failures_total",
			Help: "Snapshot persistence failures (downgraded to warnings)",
		},
	)

	// NotifierClients tracks currently connected websocket listeners
	NotifierClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treasuryd_notifier_clients",
			Help: "Currently connected update-channel listeners",
		},
	)

	// NotifierEventsTotal tracks broadcast update events
	NotifierEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treasuryd_notifier_events_total",
			Help: "Total treasury update events broadcast",
		},
	)

	// DBConnectionPoolUsage tracks connection pool utilization percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treasuryd_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
