// Package observability exposes Prometheus metrics for report generation.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "overlap"

// Metrics holds the generation and HTTP collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	GenerationCalls    *prometheus.CounterVec
	CallDuration       *prometheus.HistogramVec
	ValidationFailures *prometheus.CounterVec
	Reports            *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	CreditsRemaining   *prometheus.GaugeVec
}

// New registers the collectors with reg. Use prometheus.NewRegistry() in
// tests to keep registrations isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		GenerationCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "generation_calls_total",
				Help:      "Outbound generation calls by phase and outcome",
			},
			[]string{"phase", "outcome"},
		),
		CallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "generation_call_seconds",
				Help:      "Latency of outbound generation calls in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"phase"},
		),
		ValidationFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "validation_failures_total",
				Help:      "Model outputs rejected by the validator, by phase and failure kind",
			},
			[]string{"phase", "kind"},
		),
		Reports: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reports_total",
				Help:      "Report generation runs by outcome",
			},
			[]string{"outcome"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),
		CreditsRemaining: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "credits_remaining",
				Help:      "Remaining report credits per account",
			},
			[]string{"account"},
		),
	}
}

// RecordCall records one outbound generation call.
func (m *Metrics) RecordCall(phase int, d time.Duration, err error) {
	if m == nil {
		return
	}
	p := strconv.Itoa(phase)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.GenerationCalls.WithLabelValues(p, outcome).Inc()
	m.CallDuration.WithLabelValues(p).Observe(d.Seconds())
}

// RecordValidationFailure records a rejected model output.
func (m *Metrics) RecordValidationFailure(phase int, kind string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(strconv.Itoa(phase), kind).Inc()
}

// RecordReport records the outcome of a full generation run.
func (m *Metrics) RecordReport(success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.Reports.WithLabelValues(outcome).Inc()
}

// RecordHTTP records a served HTTP request.
func (m *Metrics) RecordHTTP(route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// SetCredits publishes an account's remaining credit balance.
func (m *Metrics) SetCredits(account string, remaining int) {
	if m == nil {
		return
	}
	m.CreditsRemaining.WithLabelValues(account).Set(float64(remaining))
}
