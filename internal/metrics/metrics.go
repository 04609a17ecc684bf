// Package metrics exposes engine activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names.
const (
	MetricRunsTotal              = "ajo_runs_total"
	MetricChargesTotal           = "ajo_charges_total"
	MetricPayoutsTotal           = "ajo_payouts_total"
	MetricPlatformFeesTotal      = "ajo_platform_fees_minor_units_total"
	MetricWebhookEventsTotal     = "ajo_webhook_events_total"
	MetricGatewayDurationSeconds = "ajo_gateway_request_duration_seconds"
)

// Recorder owns a private registry so tests and multiple servers do not
// collide on the global one. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	chargesTotal    *prometheus.CounterVec
	payoutsTotal    *prometheus.CounterVec
	feesTotal       prometheus.Counter
	webhookTotal    *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
}

// New creates a Recorder with all engine metrics registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRunsTotal,
			Help: "Scheduler runs by kind and result.",
		}, []string{"kind", "result"}),
		chargesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricChargesTotal,
			Help: "Contribution charge attempts by outcome.",
		}, []string{"outcome"}),
		payoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPayoutsTotal,
			Help: "Payout attempts by outcome.",
		}, []string{"outcome"}),
		feesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPlatformFeesTotal,
			Help: "Platform fees recorded on accepted payouts, in minor units.",
		}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricWebhookEventsTotal,
			Help: "Gateway webhook events by event name and result.",
		}, []string{"event", "result"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricGatewayDurationSeconds,
			Help:    "Latency of payment gateway calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	r.registry.MustRegister(
		r.runsTotal,
		r.chargesTotal,
		r.payoutsTotal,
		r.feesTotal,
		r.webhookTotal,
		r.gatewayDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Run(kind string, fatal bool) {
	if r == nil {
		return
	}
	result := "ok"
	if fatal {
		result = "fatal"
	}
	r.runsTotal.WithLabelValues(kind, result).Inc()
}

func (r *Recorder) Charge(outcome string) {
	if r == nil {
		return
	}
	r.chargesTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Payout(outcome string) {
	if r == nil {
		return
	}
	r.payoutsTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) PlatformFee(amount int64) {
	if r == nil || amount <= 0 {
		return
	}
	r.feesTotal.Add(float64(amount))
}

func (r *Recorder) WebhookEvent(event, result string) {
	if r == nil {
		return
	}
	r.webhookTotal.WithLabelValues(event, result).Inc()
}

// ObserveGateway records how long a gateway call took.
func (r *Recorder) ObserveGateway(operation string, started time.Time) {
	if r == nil {
		return
	}
	r.gatewayDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
