package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/potooio/herald/internal/types"
)

var (
	eventsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_events_resolved_total",
			Help: "Total notification events resolved from entity updates by event type.",
		},
		[]string{"event_type"},
	)
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_deliveries_total",
			Help: "Total per-recipient delivery outcomes by channel and status.",
		},
		[]string{"channel", "status"},
	)
	digestDrainsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_digest_drains_total",
			Help: "Total digest drain attempts by status.",
		},
		[]string{"status"},
	)
	queueDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "herald_queue_dropped_total",
			Help: "Total background jobs dropped because the queue buffer was full.",
		},
	)
)

// resultStatus maps a delivery result to a metric status label.
func resultStatus(r types.DeliveryResult) string {
	switch {
	case r.Reason == types.ReasonQueued:
		return "queued"
	case r.Success:
		return "success"
	case r.Skipped:
		return "skipped"
	default:
		return "failed"
	}
}
