// Package observability exposes runtime counters for the messaging
// pipeline. Collection is passive; nothing here sits on the hot path
// beyond atomic increments.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	MessagesAccepted *prometheus.CounterVec
	MessagesDropped  prometheus.Counter
	DeliveryFailures prometheus.Counter
	PersistFailures  prometheus.Counter
	LiveConnections  prometheus.Gauge
	ConnectionsTotal prometheus.Counter
	HistoryReplays   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		MessagesAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sealmax_messages_accepted_total",
			Help: "Messages persisted and fanned out, by kind.",
		}, []string{"kind"}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sealmax_messages_dropped_total",
			Help: "Inbound messages dropped by validation (empty after trim).",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sealmax_delivery_failures_total",
			Help: "Per-connection delivery failures during fan-out.",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sealmax_persist_failures_total",
			Help: "Messages lost to storage failures.",
		}),
		LiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sealmax_connections_live",
			Help: "Currently registered live connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sealmax_connections_total",
			Help: "Authenticated connections accepted since start.",
		}),
		HistoryReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sealmax_history_replays_total",
			Help: "General-room history snapshots served on connect.",
		}),
	}

	reg.MustRegister(
		m.MessagesAccepted, m.MessagesDropped, m.DeliveryFailures,
		m.PersistFailures, m.LiveConnections, m.ConnectionsTotal,
		m.HistoryReplays,
	)
	return m
}
