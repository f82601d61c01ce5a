package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RealtimeEventsPublished counts events handed to the fan-out path by type.
	RealtimeEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_realtime_events_published_total",
		Help: "Total number of realtime events published",
	}, []string{"event_type"})

	// RealtimeEventsDropped counts events discarded because the notifier queue was full.
	RealtimeEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_realtime_events_dropped_total",
		Help: "Total number of realtime events dropped before publication",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped for a slow websocket client.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_websocket_backpressure_drops_total",
		Help: "Total number of websocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// FollowerReconcileRuns counts reconciliation job runs by outcome.
	FollowerReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_follower_reconcile_runs_total",
		Help: "Total number of follower counter reconciliation runs",
	}, []string{"outcome"})

	// FollowerCountersRepaired counts user rows whose follower counter was corrected.
	FollowerCountersRepaired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "murmur_follower_counters_repaired_total",
		Help: "Total number of follower counters corrected by reconciliation",
	})
)
