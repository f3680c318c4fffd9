package eventsub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK       = "ok"
	resultPartial  = "partial"
	resultCanceled = "canceled"
)

var (
	framesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tb",
			Subsystem: "eventsub",
			Name:      "frames_total",
			Help:      "EventSub frames received by message type",
		},
		[]string{"message_type"},
	)

	disconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tb",
			Subsystem: "eventsub",
			Name:      "disconnects_total",
			Help:      "EventSub socket terminations by cause",
		},
		[]string{"cause"},
	)

	reconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tb",
			Subsystem: "eventsub",
			Name:      "reconciliations_total",
			Help:      "Subscription reconciliation passes by result",
		},
		[]string{"result"},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tb",
			Subsystem: "eventsub",
			Name:      "active_connections",
			Help:      "Entities currently supervised",
		},
	)
)
