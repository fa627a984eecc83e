package maintenance

import "github.com/prometheus/client_golang/prometheus"

var (
	sweepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabletalk_janitor_sweeps_total",
			Help: "Total number of session sweep cycles.",
		},
	)
	sessionsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabletalk_janitor_sessions_evicted_total",
			Help: "Total number of expired sessions evicted by the janitor.",
		},
	)
	scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabletalk_janitor_scans_total",
			Help: "Total number of snapshot scan cycles by status.",
		},
		[]string{"status"},
	)
	orphansDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabletalk_janitor_orphan_snapshots_deleted_total",
			Help: "Total number of orphaned snapshot objects deleted.",
		},
	)
	missingSnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabletalk_janitor_missing_snapshots_total",
			Help: "Total number of live sessions found without their snapshot object.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		sweepsTotal,
		sessionsEvictedTotal,
		scansTotal,
		orphansDeletedTotal,
		missingSnapshotsTotal,
	)
}
