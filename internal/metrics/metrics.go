package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
)

type Metrics struct {
	registry  *prometheus.Registry
	namespace string

	CarrierCalls    *prometheus.CounterVec
	CarrierLatency  *prometheus.HistogramVec
	OrdersSubmitted *prometheus.CounterVec
	OrderValue      prometheus.Histogram
}

// New builds the checkout metrics on a dedicated registry that also carries
// the Go runtime and process collectors.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		namespace: namespace,
		CarrierCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shipping",
			Name:      "carrier_calls_total",
			Help:      "Carrier rate lookups by outcome.",
		}, []string{"carrier", "outcome"}),
		CarrierLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "shipping",
			Name:      "carrier_call_duration_seconds",
			Help:      "Carrier rate lookup latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		}, []string{"carrier"}),
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "orders_submitted_total",
			Help:      "Order submissions by result.",
		}, []string{"result"}),
		OrderValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "order_total_rupiah",
			Help:      "Totals of stored orders.",
			Buckets:   prometheus.ExponentialBuckets(25000, 2, 10),
		}),
	}

	m.registry.MustRegister(
		m.CarrierCalls,
		m.CarrierLatency,
		m.OrdersSubmitted,
		m.OrderValue,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCarrier satisfies shipping.Observer.
func (m *Metrics) ObserveCarrier(carrier, outcome string, seconds float64) {
	m.CarrierCalls.WithLabelValues(carrier, outcome).Inc()
	m.CarrierLatency.WithLabelValues(carrier).Observe(seconds)
}

// WatchSessions exports count as the number of checkout sessions held in
// memory. It is read on every scrape.
func (m *Metrics) WatchSessions(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "checkout",
		Name:      "open_sessions",
		Help:      "Checkout sessions currently held in memory.",
	}, func() float64 {
		return float64(count())
	}))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

type instrumentedSink struct {
	next    checkout.OrderSink
	metrics *Metrics
}

// InstrumentSink counts submissions passing through next.
func (m *Metrics) InstrumentSink(next checkout.OrderSink) checkout.OrderSink {
	return &instrumentedSink{next: next, metrics: m}
}

func (s *instrumentedSink) Submit(ctx context.Context, rec *checkout.OrderRecord) (string, error) {
	id, err := s.next.Submit(ctx, rec)
	if err != nil {
		s.metrics.OrdersSubmitted.WithLabelValues("error").Inc()
		return "", err
	}
	s.metrics.OrdersSubmitted.WithLabelValues("ok").Inc()
	s.metrics.OrderValue.Observe(float64(rec.Total))
	return id, nil
}
