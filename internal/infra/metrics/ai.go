package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	generationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_latency_ms",
			Help:    "Content generation call latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"provider", "success"},
	)

	generationPromptTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_prompt_tokens",
			Help: "Best-effort prompt token counts per provider/model.",
		},
		[]string{"provider", "model"},
	)
)

func init() {
	register(generationLatency, generationPromptTokens)
}

func ObserveGeneration(provider string, success bool, elapsed time.Duration) {
	generationLatency.WithLabelValues(provider, strconv.FormatBool(success)).
		Observe(float64(elapsed.Milliseconds()))
}

func AddPromptTokens(provider, model string, n int) {
	if n > 0 {
		generationPromptTokens.WithLabelValues(provider, model).Add(float64(n))
	}
}
