package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_ticks_total",
			Help: "Number of dispatch ticks executed.",
		},
	)

	ticksSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_ticks_skipped_total",
			Help: "Ticks skipped because the dispatch lock was held.",
		},
	)

	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_tick_duration_seconds",
			Help:    "Wall time of one dispatch tick.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
		},
	)

	postsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_posts_total",
			Help: "Dispatch attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	register(ticksTotal, ticksSkipped, tickDuration, postsTotal)
}

func IncTick()        { ticksTotal.Inc() }
func IncTickSkipped() { ticksSkipped.Inc() }

func ObserveTickDuration(d time.Duration) { tickDuration.Observe(d.Seconds()) }

func AddPosts(outcome string, n int) {
	if n > 0 {
		postsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}
