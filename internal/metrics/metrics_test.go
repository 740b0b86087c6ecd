package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Metered("stock_commentary", "tools", "ok")
	m.Metered("stock_commentary", "tools", "ok")
	m.Metered("stock_commentary", "tools", "denied")
	m.Resync(nil)
	m.Resync(errors.New("boom"))
	m.LedgerWriteFailed("settle")

	if got := testutil.ToFloat64(m.meteredRequests.WithLabelValues("stock_commentary", "tools", "ok")); got != 2 {
		t.Fatalf("ok requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ledgerResyncs.WithLabelValues("error")); got != 1 {
		t.Fatalf("resync errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ledgerWriteFails.WithLabelValues("settle")); got != 1 {
		t.Fatalf("settle failures = %v, want 1", got)
	}
}

func TestExpose(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Upstream("website_analysis", 1500*time.Millisecond)
	m.Metered("website_analysis", "deep", "ok")

	body, contentType, err := m.Expose()
	if err != nil {
		t.Fatalf("Expose: %v", err)
	}
	if !strings.HasPrefix(contentType, "text/plain") {
		t.Fatalf("content type = %q", contentType)
	}
	text := string(body)
	for _, want := range []string{
		`advisorgate_metered_requests_total{feature="website_analysis",outcome="ok",tier="deep"} 1`,
		`advisorgate_upstream_duration_seconds_count{feature="website_analysis"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("exposition missing %q:\n%s", want, text)
		}
	}
}

func TestExposeFiltered(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Metered("market_research", "standard", "ok")
	m.Resync(nil)

	body, _, err := m.ExposeFiltered(func(mf *dto.MetricFamily) bool {
		return strings.Contains(mf.GetName(), "resync")
	})
	if err != nil {
		t.Fatalf("ExposeFiltered: %v", err)
	}
	text := string(body)
	if strings.Contains(text, "metered_requests_total") {
		t.Fatalf("filtered exposition kept metered requests:\n%s", text)
	}
	if !strings.Contains(text, "advisorgate_ledger_resyncs_total") {
		t.Fatalf("filtered exposition dropped resyncs:\n%s", text)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Metered("f", "t", "ok")
	m.Upstream("f", time.Second)
	m.Resync(nil)
	m.LedgerWriteFailed("settle")
	m.HTTPRequest("GET", "/v1/usage", "200", time.Millisecond)
	if body, _, err := m.Expose(); body != nil || err != nil {
		t.Fatalf("nil Expose = (%v,%v)", body, err)
	}
}
