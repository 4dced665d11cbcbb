package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m.HTTPRequestsTotal == nil || m.HTTPRequestDuration == nil || m.AuthAttemptsTotal == nil {
		t.Fatal("collectors not initialized")
	}
	if m.Registry() == nil {
		t.Fatal("registry is nil")
	}
}

func TestObserveRequest(t *testing.T) {
	m := NewMetrics()

	m.ObserveRequest(http.MethodGet, "/api/profile", http.StatusOK, 10*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/api/profile", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/api/profile", http.StatusUnauthorized, time.Millisecond)

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/profile", "200")); got != 2 {
		t.Errorf("200 count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/profile", "401")); got != 1 {
		t.Errorf("401 count = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.HTTPRequestDuration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestObserveAuth(t *testing.T) {
	m := NewMetrics()

	m.ObserveAuth("login", OutcomeFailure)
	m.ObserveAuth("login", OutcomeFailure)
	m.ObserveAuth("login", OutcomeSuccess)

	if got := testutil.ToFloat64(m.AuthAttemptsTotal.WithLabelValues("login", OutcomeFailure)); got != 2 {
		t.Errorf("failures = %v, want 2", got)
	}
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.ObserveAuth("register", OutcomeSuccess)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `linkkeeper_auth_attempts_total{operation="register",outcome="success"} 1`) {
		t.Fatalf("exposition missing auth counter:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatal("exposition missing runtime metrics")
	}
}
