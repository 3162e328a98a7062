package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ChargesIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "charge_engine_charges_issued_total",
			Help: "Charges created, labeled by payment method.",
		},
		[]string{"method"},
	)

	OutboundDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "charge_engine_webhook_deliveries_total",
			Help: "Outbound webhook delivery attempts by outcome.",
		},
		[]string{"outcome"},
	)

	InboundEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "charge_engine_provider_events_total",
			Help: "Inbound provider events by processing result.",
		},
		[]string{"result"},
	)

	RetryExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "charge_engine_inbound_retry_exhausted_total",
			Help: "Inbound events that exhausted all retry attempts.",
		},
	)

	DeliveryLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "charge_engine_webhook_delivery_seconds",
			Help:    "Outbound webhook delivery latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		ChargesIssued,
		OutboundDeliveries,
		InboundEvents,
		RetryExhausted,
		DeliveryLatency,
	)
}
