package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records order placement and payment outcomes.
type CheckoutMetrics struct {
	ordersPlaced    *prometheus.CounterVec
	paymentFailures *prometheus.CounterVec
	refundsIssued   prometheus.Counter
	refundPaise     prometheus.Counter
	checkoutSeconds *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	ordersPlaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders created, by payment method.",
	}, []string{"payment_method"})
	paymentFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_failures_total",
		Help: "Payment attempts that failed, by payment method.",
	}, []string{"payment_method"})
	refundsIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refunds_issued_total",
		Help: "Wallet refunds credited.",
	})
	refundPaise := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refund_amount_paise_total",
		Help: "Total paise refunded to wallets.",
	})
	checkoutSeconds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"payment_method"})
	reg.MustRegister(ordersPlaced, paymentFailures, refundsIssued, refundPaise, checkoutSeconds)
	return &CheckoutMetrics{
		ordersPlaced:    ordersPlaced,
		paymentFailures: paymentFailures,
		refundsIssued:   refundsIssued,
		refundPaise:     refundPaise,
		checkoutSeconds: checkoutSeconds,
	}
}

// IncOrderPlaced increments the placed-orders counter for the method.
func (c *CheckoutMetrics) IncOrderPlaced(method string) {
	if c == nil || c.ordersPlaced == nil {
		return
	}
	c.ordersPlaced.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncPaymentFailure increments the failed-payments counter for the method.
func (c *CheckoutMetrics) IncPaymentFailure(method string) {
	if c == nil || c.paymentFailures == nil {
		return
	}
	c.paymentFailures.WithLabelValues(normalizeLabel(method)).Inc()
}

// ObserveRefund records one refund and its amount.
func (c *CheckoutMetrics) ObserveRefund(amountPaise int) {
	if c == nil || c.refundsIssued == nil {
		return
	}
	c.refundsIssued.Inc()
	if amountPaise > 0 {
		c.refundPaise.Add(float64(amountPaise))
	}
}

// ObserveCheckoutDuration records how long a checkout request took.
func (c *CheckoutMetrics) ObserveCheckoutDuration(method string, duration time.Duration) {
	if c == nil || c.checkoutSeconds == nil {
		return
	}
	c.checkoutSeconds.WithLabelValues(normalizeLabel(method)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
