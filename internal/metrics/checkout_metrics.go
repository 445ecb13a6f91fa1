package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Исходы оформления заказа.
const (
	OutcomePlaced       = "placed"
	OutcomeHeaderFailed = "header_failed"
	OutcomeItemsFailed  = "items_failed"
	OutcomeRejected     = "rejected"
)

// CheckoutMetrics содержит метрики оформления заказов.
type CheckoutMetrics struct {
	attempts      *prometheus.CounterVec
	orderTotal    prometheus.Counter
	orphanHeaders prometheus.Counter
	compensations *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	outboxEvents  prometheus.Counter
}

// NewCheckoutMetrics регистрирует метрики в DefaultRegisterer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer регистрирует метрики в указанном реестре.
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		attempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_total",
			Help: "Checkout attempts by outcome",
		}, []string{"outcome"}),
		orderTotal: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_revenue_minor_total",
			Help: "Sum of placed order totals in minor units",
		}),
		orphanHeaders: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_orphan_headers_total",
			Help: "Order headers persisted without line items",
		}),
		compensations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_compensations_total",
			Help: "Compensating header deletes by result",
		}, []string{"result"}),
		phaseDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_phase_duration_seconds",
			Help:    "Duration of checkout phases in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"phase"}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_checkout_in_flight",
			Help: "Checkouts currently waiting on the order store",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_outbox_events_total",
			Help: "Order events written to the outbox",
		}),
	}
}

// RecordOutcome увеличивает счётчик попыток с указанным исходом.
func (m *CheckoutMetrics) RecordOutcome(outcome string) {
	m.attempts.WithLabelValues(outcome).Inc()
}

// RecordPlaced учитывает успешный заказ и его сумму.
func (m *CheckoutMetrics) RecordPlaced(totalMinor int64) {
	m.attempts.WithLabelValues(OutcomePlaced).Inc()
	m.orderTotal.Add(float64(totalMinor))
}

// RecordOrphanHeader учитывает шапку, оставшуюся без позиций.
func (m *CheckoutMetrics) RecordOrphanHeader() {
	m.orphanHeaders.Inc()
}

// RecordCompensation учитывает попытку удалить осиротевшую шапку.
func (m *CheckoutMetrics) RecordCompensation(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.compensations.WithLabelValues(result).Inc()
}

// RecordPhaseDuration записывает время выполнения фазы.
func (m *CheckoutMetrics) RecordPhaseDuration(phase string, duration time.Duration) {
	m.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordInFlightStarted увеличивает количество активных оформлений.
func (m *CheckoutMetrics) RecordInFlightStarted() {
	m.inFlight.Inc()
}

// RecordInFlightFinished уменьшает количество активных оформлений.
func (m *CheckoutMetrics) RecordInFlightFinished() {
	m.inFlight.Dec()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CheckoutMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
