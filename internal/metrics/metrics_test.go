package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Transition("send")
	m.Transition("send")
	m.AuditWriteFailed()
	m.EmailDispatched("quote", true)
	m.EmailDispatched("quote", false)
	m.EmailDispatched("artwork", false)
	m.ObserveRequest(http.MethodGet, http.StatusOK, 20*time.Millisecond)

	if got := testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("send")); got != 2 {
		t.Errorf("transitions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.AuditWriteFailures); got != 1 {
		t.Errorf("audit failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EmailDispatchTotal.WithLabelValues("quote", "failure")); got != 1 {
		t.Errorf("quote failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "200")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Transition("create")
	m.AuditWriteFailed()
	m.EmailDispatched("quote", true)
	m.ObserveRequest(http.MethodPost, http.StatusCreated, time.Second)
}

func TestSeparateRegistries(t *testing.T) {
	// Registering twice on one registry panics; separate ones must not.
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
