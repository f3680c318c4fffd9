package credentials

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultError    = "error"
)

var refreshesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tb",
		Name:      "credential_refreshes_total",
		Help:      "Credential refresh attempts by result",
	},
	[]string{"result"},
)
