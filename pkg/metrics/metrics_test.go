package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersOnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordHTTPRequest("/api/chat", "POST", "200", 120*time.Millisecond)
	m.RecordHTTPRequest("/api/chat", "POST", "200", 80*time.Millisecond)
	m.RecordDbOperation("insert", nil, time.Millisecond)
	m.RecordDbOperation("insert", errors.New("disk full"), time.Millisecond)

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/api/chat", "POST", "200")); got != 2 {
		t.Errorf("expected 2 chat requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.DbOperationsTotal.WithLabelValues("insert", "error")); got != 1 {
		t.Errorf("expected 1 failed insert, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"folio_http_requests_total", "folio_http_request_duration_seconds", "folio_db_operations_total"} {
		if !names[want] {
			t.Errorf("expected %s to be registered", want)
		}
	}
}

func TestNew_NilRegistererIsIsolated(t *testing.T) {
	a := New(nil)
	b := New(nil)

	a.ChatDeltasTotal.Inc()
	if got := testutil.ToFloat64(b.ChatDeltasTotal); got != 0 {
		t.Errorf("expected independent metrics, got %v", got)
	}
}
