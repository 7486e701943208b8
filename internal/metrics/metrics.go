package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors exported on /metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	salesTotal        *prometheus.CounterVec
	salesAmountCents  *prometheus.CounterVec
	saleFailures      *prometheus.CounterVec
	ledgerOperations  *prometheus.CounterVec
	lowStockProducts  prometheus.Gauge
	outstandingCredit prometheus.Gauge
	refreshDuration   prometheus.Histogram
}

func New(prefix string) *Metrics {
	if prefix == "" {
		prefix = "fiado"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		salesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_sales_total",
				Help: "Number of registered sales by payment method",
			},
			[]string{"payment_method"},
		),
		salesAmountCents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_sales_amount_cents_total",
				Help: "Sum of sale totals in cents by payment method",
			},
			[]string{"payment_method"},
		),
		saleFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_sale_failures_total",
				Help: "Rejected sales by reason",
			},
			[]string{"reason"},
		),
		ledgerOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_ledger_operations_total",
				Help: "Credit ledger movements by type",
			},
			[]string{"type"},
		),
		lowStockProducts: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_low_stock_products",
			Help: "Products at or below their critical stock",
		}),
		outstandingCredit: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_outstanding_credit_cents",
			Help: "Sum of positive client balances in cents",
		}),
		refreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_report_refresh_duration_seconds",
			Help:    "Duration of the scheduled report refresh",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(method string, path string, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path, status).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordSale(paymentMethod string, totalCents int64) {
	if m == nil {
		return
	}
	m.salesTotal.WithLabelValues(paymentMethod).Inc()
	m.salesAmountCents.WithLabelValues(paymentMethod).Add(float64(totalCents))
}

func (m *Metrics) RecordSaleFailure(reason string) {
	if m == nil {
		return
	}
	m.saleFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordMovement(movementType string) {
	if m == nil {
		return
	}
	m.ledgerOperations.WithLabelValues(movementType).Inc()
}

func (m *Metrics) SetLowStock(count int) {
	if m == nil {
		return
	}
	m.lowStockProducts.Set(float64(count))
}

func (m *Metrics) SetOutstandingCredit(cents int64) {
	if m == nil {
		return
	}
	m.outstandingCredit.Set(float64(cents))
}

// TrackRefresh returns a function that records how long a refresh took.
func (m *Metrics) TrackRefresh() func() {
	start := time.Now()
	return func() {
		if m == nil {
			return
		}
		m.refreshDuration.Observe(time.Since(start).Seconds())
	}
}
