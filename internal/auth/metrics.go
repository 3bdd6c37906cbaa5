package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sally802528/grade-query-education-system/internal/model"
)

var (
	guardDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classroom_guard_decisions_total",
			Help: "Access guard decisions by required role and outcome",
		},
		[]string{"role", "outcome"},
	)
	guardLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classroom_guard_latency_seconds",
			Help:    "Time spent validating bearer tokens",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
		},
		[]string{"role"},
	)
)

// Observe records a guard decision. An empty role means any authenticated role.
func Observe(role model.Role, decision Decision, elapsed time.Duration) {
	label := string(role)
	if label == "" {
		label = "any"
	}
	guardDecisions.WithLabelValues(label, decision.Reason).Inc()
	guardLatency.WithLabelValues(label).Observe(elapsed.Seconds())
}
