// Package metrics exposes Prometheus counters for the room engine and the
// connection hub. Served on /metrics by the HTTP router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JoinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omilia_joins_total",
			Help: "Total successful room joins",
		},
		[]string{"result"}, // "created" or "joined"
	)

	LeavesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "omilia_leaves_total",
			Help: "Total room departures",
		},
	)

	RoomsDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "omilia_rooms_deleted_total",
			Help: "Total rooms reclaimed after the last member left",
		},
	)

	MessagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "omilia_messages_sent_total",
			Help: "Total chat messages appended and fanned out",
		},
	)

	ComplaintsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "omilia_complaints_total",
			Help: "Total complaints submitted",
		},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "omilia_active_connections",
			Help: "Live WebSocket connections on this process",
		},
	)
)
