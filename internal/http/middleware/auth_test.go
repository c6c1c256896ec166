package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cras-gestao/gestao-suas/internal/httputil"
	"github.com/cras-gestao/gestao-suas/internal/metrics"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var body httputil.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestAuth_TenantRoutes(t *testing.T) {
	gateway, tokens := newTestGateway(t)
	m := metrics.New()

	tests := []struct {
		name          string
		host          string
		authorization string
		wantStatus    int
		wantCode      string
		wantUser      int64
	}{
		{name: "own tenant", host: "recife.gestaosuas.com.br", authorization: bearer(t, tokens, maria), wantStatus: http.StatusOK, wantUser: 10},
		{name: "missing header", host: "recife.gestaosuas.com.br", wantStatus: http.StatusUnauthorized, wantCode: "unauthenticated"},
		{name: "garbage token", host: "recife.gestaosuas.com.br", authorization: "Bearer abc.def.ghi", wantStatus: http.StatusUnauthorized, wantCode: "token_invalid"},
		{name: "token of another tenant", host: "paulista.gestaosuas.com.br", authorization: bearer(t, tokens, maria), wantStatus: http.StatusForbidden, wantCode: "tenant_mismatch"},
		{name: "system token on a tenant host", host: "recife.gestaosuas.com.br", authorization: bearer(t, tokens, root), wantStatus: http.StatusForbidden, wantCode: "tenant_mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			handler := Tenant(newFakeResolver(), "", m, discardLogger())(
				Auth(gateway, m, discardLogger())(
					http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
						nextCalled = true
						p, ok := GetPrincipal(r.Context())
						if !ok || p.UserID != tt.wantUser {
							t.Errorf("principal = %+v, want user %d", p, tt.wantUser)
						}
						w.WriteHeader(http.StatusOK)
					})))

			req := httptest.NewRequest(http.MethodGet, "/v1/auth/verify", nil)
			req.Host = tt.host
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				if nextCalled {
					t.Error("next handler must not run when authentication fails")
				}
				if body := decodeError(t, w); body.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
				}
			}
		})
	}

	if got := testutil.ToFloat64(m.AuthFailures.WithLabelValues("tenant_mismatch")); got != 2 {
		t.Errorf("tenant_mismatch failures = %v, want 2", got)
	}
}

func TestAuth_SuspendedTenantNeverReachesGateway(t *testing.T) {
	gateway, tokens := newTestGateway(t)
	counting := &countingAuthenticator{next: gateway}

	suspendedUser := &domain.User{ID: 10, TenantID: 5, Role: domain.RoleTecnico, Active: true}
	handler := Tenant(newFakeResolver(), "", nil, discardLogger())(
		Auth(counting, nil, discardLogger())(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	req.Host = "suspenso.gestaosuas.com.br"
	req.Header.Set("Authorization", bearer(t, tokens, suspendedUser))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if body := decodeError(t, w); body.Code != "tenant_suspended" {
		t.Errorf("code = %q, want tenant_suspended", body.Code)
	}
	if counting.calls.Load() != 0 {
		t.Error("gateway must not be consulted for a suspended tenant")
	}
}

func TestAuth_SystemRoutes(t *testing.T) {
	gateway, tokens := newTestGateway(t)
	handler := Auth(gateway, nil, discardLogger())(okHandler())

	tests := []struct {
		name       string
		user       *domain.User
		wantStatus int
	}{
		{name: "super admin", user: root, wantStatus: http.StatusOK},
		{name: "tenant admin", user: joao, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/system/tenants", nil)
			req.Host = "admin.gestaosuas.com.br"
			req.Header.Set("Authorization", bearer(t, tokens, tt.user))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
