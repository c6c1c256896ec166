package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.LoginAttempts.WithLabelValues("success").Inc()
	m.TenantsNearExpiry.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`gestao_suas_login_attempts_total{result="success"} 1`,
		"gestao_suas_tenants_near_expiry 3",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNewWithRegistry_Isolated(t *testing.T) {
	a := NewWithRegistry(prometheus.NewRegistry(), prometheus.NewRegistry())
	b := NewWithRegistry(prometheus.NewRegistry(), prometheus.NewRegistry())

	a.AuthFailures.WithLabelValues("token_invalid").Inc()

	if got := testutil.ToFloat64(a.AuthFailures.WithLabelValues("token_invalid")); got != 1 {
		t.Errorf("a = %v, want 1", got)
	}
	if got := testutil.ToFloat64(b.AuthFailures.WithLabelValues("token_invalid")); got != 0 {
		t.Errorf("b = %v, want 0", got)
	}
}
