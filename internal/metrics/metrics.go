package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	OrdersCreated       *prometheus.CounterVec
	WebhookEvents       *prometheus.CounterVec
	NowPaymentsRequests *prometheus.CounterVec
	NowPaymentsLatency  *prometheus.HistogramVec
	StateSaves          prometheus.Counter
	Errors              *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_created_total",
				Help:      "Total orders created by provider and resulting status.",
			}, []string{"provider", "status"}),
			WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_webhook_events_total",
				Help:      "Total NOWPayments webhook deliveries by outcome.",
			}, []string{"outcome"}),
			NowPaymentsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nowpayments_requests_total",
				Help:      "Total NOWPayments API requests by endpoint and status.",
			}, []string{"endpoint", "status"}),
			NowPaymentsLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "nowpayments_request_duration_seconds",
				Help:      "Latency distribution for NOWPayments API requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint", "status"}),
			StateSaves: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_saves_total",
				Help:      "Total whole-document state persists.",
			}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.OrdersCreated,
			metricsInstance.WebhookEvents,
			metricsInstance.NowPaymentsRequests,
			metricsInstance.NowPaymentsLatency,
			metricsInstance.StateSaves,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
