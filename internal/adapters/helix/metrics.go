package helix

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tb",
		Name:      "helix_requests_total",
		Help:      "Helix API requests by endpoint and status code",
	},
	[]string{"endpoint", "status"},
)
