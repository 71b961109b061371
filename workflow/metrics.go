package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("indicator-monitor/workflow")

var (
	indicatorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indicator",
		Name:      "runs_total",
		Help:      "Pipeline runs by trigger and result.",
	}, []string{"trigger", "result"})

	materializations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indicator",
		Name:      "materializations_total",
		Help:      "Corrective-action materialization outcomes (created, existing, race).",
	}, []string{"outcome"})

	notificationDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indicator",
		Name:      "notification_deliveries_total",
		Help:      "Notification deliveries by channel and result.",
	}, []string{"channel", "result"})

	sweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indicator",
		Name:      "sweeps_total",
		Help:      "Sweep passes by result (completed, skipped).",
	}, []string{"result"})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "indicator",
		Name:      "sweep_duration_seconds",
		Help:      "Wall time of a full sweep pass.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)
