// Package metrics provides Prometheus metrics collection for tutorbill.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ryoda0314/tutoring-app-sub000/domain/payment"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

const namespace = "tutorbill"

// Collector holds all Prometheus metrics for tutorbill.
// A nil *Collector is valid and records nothing.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Ledger metrics
	InvoicesComputed       *prometheus.CounterVec
	AdjustmentWarnings     *prometheus.CounterVec
	CreditsGrantedMinutes  prometheus.Counter
	CreditsConsumedMinutes prometheus.Counter
	CreditConsumeFailures  *prometheus.CounterVec
	PaymentTransitions     *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return build(promauto.With(prometheus.DefaultRegisterer))
}

// NewWithRegistry creates a collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	return build(promauto.With(reg))
}

func build(factory promauto.Factory) *Collector {
	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),

		InvoicesComputed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invoices_computed_total",
				Help:      "Invoices computed, by confirmation state",
			},
			[]string{"confirmed"},
		),
		AdjustmentWarnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "adjustment_warnings_total",
				Help:      "Lessons excluded from an invoice because their state was inconsistent",
			},
			[]string{"reason"},
		),
		CreditsGrantedMinutes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credits_granted_minutes_total",
				Help:      "Makeup credit minutes granted",
			},
		),
		CreditsConsumedMinutes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credits_consumed_minutes_total",
				Help:      "Makeup credit minutes consumed by bookings",
			},
		),
		CreditConsumeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credit_consume_failures_total",
				Help:      "Failed makeup credit consumptions",
			},
			[]string{"reason"},
		),
		PaymentTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_total",
				Help:      "Payment state transitions",
			},
			[]string{"transition"},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// InvoiceComputed implements ports.LedgerMetrics.
func (c *Collector) InvoiceComputed(confirmed bool) {
	if c == nil {
		return
	}
	c.InvoicesComputed.WithLabelValues(strconv.FormatBool(confirmed)).Inc()
}

// AdjustmentWarning implements ports.LedgerMetrics.
func (c *Collector) AdjustmentWarning(reason string) {
	if c == nil {
		return
	}
	c.AdjustmentWarnings.WithLabelValues(reason).Inc()
}

// CreditsGranted implements ports.LedgerMetrics.
func (c *Collector) CreditsGranted(minutes int) {
	if c == nil || minutes <= 0 {
		return
	}
	c.CreditsGrantedMinutes.Add(float64(minutes))
}

// CreditsConsumed implements ports.LedgerMetrics.
func (c *Collector) CreditsConsumed(minutes int) {
	if c == nil || minutes <= 0 {
		return
	}
	c.CreditsConsumedMinutes.Add(float64(minutes))
}

// ConsumeFailed implements ports.LedgerMetrics.
func (c *Collector) ConsumeFailed(reason string) {
	if c == nil {
		return
	}
	c.CreditConsumeFailures.WithLabelValues(reason).Inc()
}

// PaymentTransition implements ports.LedgerMetrics.
func (c *Collector) PaymentTransition(to payment.Status) {
	if c == nil {
		return
	}
	c.PaymentTransitions.WithLabelValues(string(to)).Inc()
}

// ObserveRequest records one finished HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(method, route, statusLabel(status)).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// ConfigReloaded records the outcome of a config reload.
func (c *Collector) ConfigReloaded(err error, at time.Time) {
	if c == nil {
		return
	}
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.Set(float64(at.Unix()))
}

// Ensure interface compliance.
var _ ports.LedgerMetrics = (*Collector)(nil)
