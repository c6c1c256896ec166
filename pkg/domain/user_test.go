package domain

import (
	"errors"
	"testing"
	"time"
)

func TestPrincipal_IsAdministrator(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		tenantID int64
		want     bool
	}{
		{name: "tenant admin", role: RoleAdmin, tenantID: 5, want: true},
		{name: "system admin role in system tenant", role: RoleAdmin, tenantID: SystemTenantID, want: true},
		{name: "super admin in system tenant", role: RoleSuperAdmin, tenantID: SystemTenantID, want: true},
		{name: "super admin leaked into tenant", role: RoleSuperAdmin, tenantID: 5, want: false},
		{name: "coordenador", role: RoleCoordenador, tenantID: 5, want: false},
		{name: "tecnico", role: RoleTecnico, tenantID: 5, want: false},
		{name: "unknown role", role: Role("gestor"), tenantID: 5, want: false},
		{name: "empty role", role: Role(""), tenantID: 5, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Principal{UserID: 1, TenantID: tt.tenantID, Role: tt.role}
			if got := p.IsAdministrator(); got != tt.want {
				t.Errorf("IsAdministrator() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUser_Principal(t *testing.T) {
	unit := int64(3)
	secret := "enc"
	user := &User{
		ID:         42,
		TenantID:   7,
		Username:   "tecnico1",
		Email:      "tecnico1@org.com",
		Name:       "Técnico Um",
		Role:       RoleTecnico,
		UnitID:     &unit,
		Active:     true,
		TOTPSecret: &secret,
	}

	p := user.Principal()
	if p.UserID != 42 || p.TenantID != 7 || p.Role != RoleTecnico {
		t.Errorf("Principal() = %+v", p)
	}
	if p.UnitID == nil || *p.UnitID != 3 {
		t.Errorf("UnitID: got %v, want 3", p.UnitID)
	}
	if !user.HasTOTP() {
		t.Error("HasTOTP() should be true")
	}
}

func TestRole_Hierarchy(t *testing.T) {
	if !RoleAdmin.Outranks(RoleTecnico) {
		t.Error("admin should outrank tecnico")
	}
	if RoleVisualizador.Outranks(RoleOperador) {
		t.Error("visualizador should not outrank operador")
	}
	if Role("unknown").Outranks(RoleVisualizador) {
		t.Error("unknown roles never outrank")
	}
	if Role("unknown").Rank() != -1 {
		t.Error("unknown role rank should be -1")
	}
	for _, level := range SeedAccessLevels() {
		if level.Code.Rank() != level.Rank {
			t.Errorf("seed %s rank %d does not match hierarchy %d", level.Code, level.Rank, level.Code.Rank())
		}
	}
}

func TestTenant_CheckLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-72 * time.Hour)
	soon := now.Add(3*24*time.Hour + time.Hour)
	far := now.Add(400 * 24 * time.Hour)

	tests := []struct {
		name        string
		tenant      Tenant
		wantErr     error
		wantDays    int
		wantOverdue int
	}{
		{name: "active far expiry", tenant: Tenant{ID: 1, Status: TenantStatusActive, ExpiresAt: &far}, wantDays: -1},
		{name: "active no expiry", tenant: Tenant{ID: 1, Status: TenantStatusActive}, wantDays: -1},
		{name: "trial near expiry", tenant: Tenant{ID: 1, Status: TenantStatusTrial, ExpiresAt: &soon}, wantDays: 3},
		{name: "expired", tenant: Tenant{ID: 1, Subdomain: "x", Status: TenantStatusActive, ExpiresAt: &past}, wantErr: ErrTenantExpired, wantOverdue: 3},
		{name: "suspended wins over expiry", tenant: Tenant{ID: 1, Status: TenantStatusSuspended, ExpiresAt: &past}, wantErr: ErrTenantSuspended},
		{name: "suspended far expiry", tenant: Tenant{ID: 1, Status: TenantStatusSuspended, ExpiresAt: &far}, wantErr: ErrTenantSuspended},
		{name: "cancelled", tenant: Tenant{ID: 1, Status: TenantStatusCancelled}, wantErr: ErrTenantCancelled},
		{name: "system tenant exempt from expiry", tenant: Tenant{ID: SystemTenantID, Status: TenantStatusActive, ExpiresAt: &past}, wantDays: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, err := tt.tenant.CheckLifecycle(now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CheckLifecycle() error = %v, want %v", err, tt.wantErr)
				}
				var expired *TenantExpiredError
				if errors.As(err, &expired) && expired.DaysOverdue != tt.wantOverdue {
					t.Errorf("DaysOverdue = %d, want %d", expired.DaysOverdue, tt.wantOverdue)
				}
				return
			}
			if err != nil {
				t.Fatalf("CheckLifecycle() unexpected error: %v", err)
			}
			if days != tt.wantDays {
				t.Errorf("daysRemaining = %d, want %d", days, tt.wantDays)
			}
		})
	}
}

func TestAccessLevel_ParsePayload(t *testing.T) {
	level := AccessLevel{
		Code:    RoleTecnico,
		Payload: []byte(`[{"modulo":"atendimentos","visualizar":true,"criar":true,"editar":false,"restrito_unidade":true}]`),
	}
	perms, err := level.ParsePayload()
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if len(perms) != 1 {
		t.Fatalf("got %d permissions, want 1", len(perms))
	}
	p := perms[0]
	if p.Module != "atendimentos" || !p.Capabilities.View || p.Capabilities.Edit || !p.UnitRestricted {
		t.Errorf("unexpected permission: %+v", p)
	}

	bad := AccessLevel{Code: RoleTecnico, Payload: []byte(`[{"modulo":"Not A Module"}]`)}
	if _, err := bad.ParsePayload(); err == nil {
		t.Error("expected validation error for malformed module code")
	}

	empty := AccessLevel{Code: RoleTecnico}
	if perms, err := empty.ParsePayload(); err != nil || perms != nil {
		t.Errorf("empty payload: got %v, %v", perms, err)
	}
}

func TestCapabilities_Allows(t *testing.T) {
	c := Capabilities{View: true, Export: true}
	if !c.Allows(ActionView) || !c.Allows(ActionExport) {
		t.Error("expected view and export")
	}
	if c.Allows(ActionEdit) || c.Allows(ActionDelete) || c.Allows(ActionCreate) {
		t.Error("unexpected write capability")
	}
	if c.Allows(Action("approve")) {
		t.Error("unknown actions must be denied")
	}
}
