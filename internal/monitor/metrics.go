package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telefeed_poll_cycles_total",
		Help: "Completed feed poll cycles.",
	})

	itemsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telefeed_items_delivered_total",
		Help: "Feed items forwarded to Telegram.",
	})

	deliveryErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telefeed_delivery_errors_total",
		Help: "Failed item deliveries.",
	})

	fetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telefeed_fetch_errors_total",
		Help: "Failed feed fetches.",
	})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "telefeed_fetch_duration_seconds",
		Help:    "Feed fetch and parse latency.",
		Buckets: prometheus.DefBuckets,
	})
)
