// Package metrics owns the service's Prometheus collectors. Collectors are
// registered on an injected registry rather than the process default.
package metrics

import (
	"bytes"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Metrics groups the collectors. All methods are safe on a nil receiver so
// components can run without metrics in tests and tools.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	meteredRequests  *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	ledgerResyncs    *prometheus.CounterVec
	ledgerWriteFails *prometheus.CounterVec
}

// New creates and registers every collector on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "advisorgate",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests served.",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "advisorgate",
				Name:      "http_request_duration_seconds",
				Help:      "Histogram of HTTP request durations in seconds.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"route", "method"},
		),
		meteredRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "advisorgate",
				Name:      "metered_requests_total",
				Help:      "Metered advisor requests by feature, tier and outcome.",
			},
			[]string{"feature", "tier", "outcome"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "advisorgate",
				Name:      "upstream_duration_seconds",
				Help:      "Histogram of upstream provider call durations in seconds.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"feature"},
		),
		ledgerResyncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "advisorgate",
				Name:      "ledger_resyncs_total",
				Help:      "Ledger resyncs from analysis history by result.",
			},
			[]string{"result"},
		),
		ledgerWriteFails: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "advisorgate",
				Name:      "ledger_write_failures_total",
				Help:      "Best-effort ledger writes that failed, by step.",
			},
			[]string{"step"},
		),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.meteredRequests, m.upstreamDuration, m.ledgerResyncs, m.ledgerWriteFails)
	return m
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// Metered counts one finished metered request.
func (m *Metrics) Metered(feature, tier, outcome string) {
	if m == nil {
		return
	}
	m.meteredRequests.WithLabelValues(feature, tier, outcome).Inc()
}

// Upstream records the duration of one provider call.
func (m *Metrics) Upstream(feature string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(feature).Observe(d.Seconds())
}

// Resync counts one ledger resync.
func (m *Metrics) Resync(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ledgerResyncs.WithLabelValues(result).Inc()
}

// LedgerWriteFailed counts a best-effort ledger write that did not land.
func (m *Metrics) LedgerWriteFailed(step string) {
	if m == nil {
		return
	}
	m.ledgerWriteFails.WithLabelValues(step).Inc()
}

// Expose renders the registry in the Prometheus text format.
func (m *Metrics) Expose() ([]byte, string, error) {
	return m.ExposeFiltered(nil)
}

// ExposeFiltered renders only the families keep accepts. A nil keep renders
// everything.
func (m *Metrics) ExposeFiltered(keep func(*dto.MetricFamily) bool) ([]byte, string, error) {
	if m == nil {
		return nil, "", nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range families {
		if keep != nil && !keep(mf) {
			continue
		}
		if err := encoder.Encode(mf); err != nil {
			return nil, "", err
		}
	}
	return buf.Bytes(), string(expfmt.FmtText), nil
}
