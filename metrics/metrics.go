package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ChecksRun = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gorisk_checks_total",
			Help: "Total number of risk checks run (by concern).",
		},
		[]string{"concern"},
	)

	ClosesSignaled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gorisk_closes_signaled_total",
			Help: "Close signals emitted by stop-loss/take-profit strategies.",
		},
		[]string{"concern", "strategy"},
	)

	AlertsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gorisk_alerts_fired_total",
			Help: "Alerts fired per evaluator type.",
		},
		[]string{"type"},
	)

	RecommendedSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gorisk_recommended_position_size",
			Help: "Most recent position size produced by the sizer.",
		},
	)
)

func init() {
	prometheus.MustRegister(ChecksRun, ClosesSignaled, AlertsFired, RecommendedSize)
}
