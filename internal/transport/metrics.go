package transport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "herald_transport_send_duration_seconds",
			Help:    "Duration of transport send calls by transport and status.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"transport", "status"},
	)
	sendRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_transport_retries_total",
			Help: "Total transport retry attempts by transport.",
		},
		[]string{"transport"},
	)
)

func observe(transport string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	sendDuration.WithLabelValues(transport, status).Observe(time.Since(start).Seconds())
}
