package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tb_notifications_total",
		Help: "EventSub notifications routed, by subscription type.",
	}, []string{"type"})

	liveChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tb_live_channels",
		Help: "Tracked channels currently streaming.",
	})

	chatterPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tb_chatter_polls_total",
		Help: "Chatter polls per channel, by result.",
	}, []string{"result"})
)
