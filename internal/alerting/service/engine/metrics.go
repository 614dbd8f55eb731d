package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the engine's own operational counters.
type Metrics struct {
	Evaluations          *prometheus.CounterVec
	EvalDuration         *prometheus.HistogramVec
	ActiveInstances      *prometheus.GaugeVec
	SkippedTicks         *prometheus.CounterVec
	DroppedNotifications prometheus.Counter
}

// NewMetrics registers the engine metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "queuewatch",
			Name:      "rule_evaluations_total",
			Help:      "Rule evaluations by group, rule and result.",
		}, []string{"group", "rule", "result"}),
		EvalDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "queuewatch",
			Name:      "rule_evaluation_duration_seconds",
			Help:      "Wall time of individual rule evaluations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"group"}),
		ActiveInstances: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "queuewatch",
			Name:      "alert_instances",
			Help:      "Alert instances currently tracked, by state.",
		}, []string{"state"}),
		SkippedTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "queuewatch",
			Name:      "skipped_group_ticks_total",
			Help:      "Group ticks skipped because the previous tick was still running.",
		}, []string{"group"}),
		DroppedNotifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "queuewatch",
			Name:      "dropped_notifications_total",
			Help:      "Notifications dropped because the channel was full.",
		}),
	}
}
