package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/haven-id/haven-id/internal/observability"
	_ "github.com/haven-id/haven-id/testing"
)

func TestMetricsExposition(t *testing.T) {
	m := observability.NewMetrics()
	m.RecordRegistration()
	m.RecordLogin("password")
	m.RecordLogin("link")
	m.RecordLoginFailure()
	m.RecordClosure()

	wrapped := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/register", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("wrapped handler status = %d", rec.Code)
	}

	expo := httptest.NewRecorder()
	m.Handler().ServeHTTP(expo, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(expo.Result().Body)
	if err != nil {
		t.Fatalf("read exposition: %v", err)
	}
	out := string(body)

	for _, want := range []string{
		"haven_registrations_total 1",
		`haven_logins_total{method="password"} 1`,
		`haven_logins_total{method="link"} 1`,
		"haven_login_failures_total 1",
		"haven_account_closures_total 1",
		`haven_http_requests_total{code="201",route="/auth/register"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q:\n%s", want, out)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *observability.Metrics
	m.RecordRegistration()
	m.RecordLogin("password")
	m.RecordLoginFailure()
	m.RecordClosure()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	m.Middleware(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("nil middleware status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("nil handler status = %d", rec.Code)
	}
}
