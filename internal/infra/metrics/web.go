package metrics

import "github.com/prometheus/client_golang/prometheus"

var webhookUpdates = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_updates_total",
		Help: "Inbound Telegram webhook deliveries by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	register(webhookUpdates)
}

func IncWebhookUpdate(outcome string) { webhookUpdates.WithLabelValues(outcome).Inc() }
