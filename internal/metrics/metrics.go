// Package metrics объявляет счётчики Prometheus для платных действий
// и фоновых задач трекера. Отдаются через /metrics на роутере API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketplace_analytics"

var (
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Paid action attempts by action type and verdict",
		},
		[]string{"action", "verdict"},
	)

	PollCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Completed tracker poll cycles",
		},
	)

	SnapshotFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_fetches_total",
			Help:      "Snapshot fetch attempts by status",
		},
		[]string{"status"},
	)

	ChangeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_events_total",
			Help:      "Published change events by kind",
		},
		[]string{"kind"},
	)
)
