package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	reasonUnauthorized = "unauthorized"
	reasonTimeout      = "timeout"
)

var (
	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tb",
			Name:      "executor_retries_total",
			Help:      "Retried authenticated calls by reason",
		},
		[]string{"reason"},
	)

	pagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tb",
			Name:      "paginated_pages_total",
			Help:      "Pages fetched while collecting cursor-paginated results",
		},
	)
)
