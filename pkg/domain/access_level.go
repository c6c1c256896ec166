package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role is an access level code stored in usuarios.nivel_acesso.
type Role string

const (
	RoleSuperAdmin   Role = "super_admin"
	RoleAdmin        Role = "admin"
	RoleCoordenador  Role = "coordenador"
	RoleTecnico      Role = "tecnico"
	RoleOperador     Role = "operador"
	RoleVisualizador Role = "visualizador"
)

// roleRanks holds the seeded hierarchy. Lower rank means more privilege.
var roleRanks = map[Role]int{
	RoleSuperAdmin:   0,
	RoleAdmin:        1,
	RoleCoordenador:  2,
	RoleTecnico:      3,
	RoleOperador:     4,
	RoleVisualizador: 5,
}

// Known reports whether the role is part of the seeded hierarchy.
func (r Role) Known() bool {
	_, ok := roleRanks[r]
	return ok
}

// Rank returns the hierarchy rank, or -1 for unknown roles.
func (r Role) Rank() int {
	rank, ok := roleRanks[r]
	if !ok {
		return -1
	}
	return rank
}

// Outranks reports whether r carries strictly more privilege than other.
// Unknown roles never outrank anything.
func (r Role) Outranks(other Role) bool {
	if !r.Known() {
		return false
	}
	if !other.Known() {
		return true
	}
	return r.Rank() < other.Rank()
}

// AccessLevel is a row of niveis_acesso.
type AccessLevel struct {
	Code      Role
	Name      string
	Rank      int
	Payload   json.RawMessage
	CreatedAt time.Time
}

// SeedAccessLevels returns the fixed access level set every installation starts with.
func SeedAccessLevels() []AccessLevel {
	return []AccessLevel{
		{Code: RoleSuperAdmin, Name: "Super Administrador", Rank: 0},
		{Code: RoleAdmin, Name: "Administrador", Rank: 1},
		{Code: RoleCoordenador, Name: "Coordenador", Rank: 2},
		{Code: RoleTecnico, Name: "Técnico", Rank: 3},
		{Code: RoleOperador, Name: "Operador", Rank: 4},
		{Code: RoleVisualizador, Name: "Visualizador", Rank: 5},
	}
}

// legacyPayloadEntry mirrors the free-form JSON stored in niveis_acesso.permissoes.
type legacyPayloadEntry struct {
	Module         string `json:"modulo"`
	View           bool   `json:"visualizar"`
	Create         bool   `json:"criar"`
	Edit           bool   `json:"editar"`
	Delete         bool   `json:"excluir"`
	Export         bool   `json:"exportar"`
	UnitRestricted bool   `json:"restrito_unidade"`
}

// ParsePayload validates the free-form permission payload into tagged permissions.
// An empty payload yields no permissions.
func (a *AccessLevel) ParsePayload() ([]Permission, error) {
	if len(a.Payload) == 0 || string(a.Payload) == "null" {
		return nil, nil
	}

	var entries []legacyPayloadEntry
	if err := json.Unmarshal(a.Payload, &entries); err != nil {
		return nil, fmt.Errorf("access level %s: invalid permission payload: %w", a.Code, err)
	}

	perms := make([]Permission, 0, len(entries))
	for _, e := range entries {
		p := Permission{
			Role:   a.Code,
			Module: e.Module,
			Capabilities: Capabilities{
				View:   e.View,
				Create: e.Create,
				Edit:   e.Edit,
				Delete: e.Delete,
				Export: e.Export,
			},
			UnitRestricted: e.UnitRestricted,
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("access level %s: %w", a.Code, err)
		}
		perms = append(perms, p)
	}
	return perms, nil
}
