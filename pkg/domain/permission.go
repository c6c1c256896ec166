package domain

import (
	"fmt"
	"regexp"
)

// AllModules is the sentinel permission list returned for administrators.
const AllModules = "all"

// Action is a capability a permission row can grant.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
)

// ParseAction converts a string into an Action.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionView, ActionCreate, ActionEdit, ActionDelete, ActionExport:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Capabilities holds the per-action flags of a permission row.
type Capabilities struct {
	View   bool `json:"view" yaml:"view"`
	Create bool `json:"create" yaml:"create"`
	Edit   bool `json:"edit" yaml:"edit"`
	Delete bool `json:"delete" yaml:"delete"`
	Export bool `json:"export" yaml:"export"`
}

// Allows returns the flag for the action. Unknown actions are denied.
func (c Capabilities) Allows(action Action) bool {
	switch action {
	case ActionView:
		return c.View
	case ActionCreate:
		return c.Create
	case ActionEdit:
		return c.Edit
	case ActionDelete:
		return c.Delete
	case ActionExport:
		return c.Export
	}
	return false
}

// FullCapabilities grants every action.
func FullCapabilities() Capabilities {
	return Capabilities{View: true, Create: true, Edit: true, Delete: true, Export: true}
}

var moduleCodeRegex = regexp.MustCompile(`^[a-z][a-z0-9_]{1,39}$`)

// ValidModuleCode reports whether code is a well-formed module code.
func ValidModuleCode(code string) bool {
	return moduleCodeRegex.MatchString(code)
}

// Permission is a row of permissoes: what a role may do on a module.
// A nil TenantID marks a platform default row.
type Permission struct {
	ID             int64
	TenantID       *int64
	Role           Role
	Module         string
	Capabilities   Capabilities
	UnitRestricted bool
}

// Validate checks the permission at the system boundary.
func (p *Permission) Validate() error {
	if !p.Role.Known() {
		return fmt.Errorf("permission: unknown role %q", p.Role)
	}
	if !ValidModuleCode(p.Module) {
		return fmt.Errorf("permission: invalid module code %q", p.Module)
	}
	return nil
}

// Grant is the evaluated outcome for a principal on one module.
type Grant struct {
	Module         string       `json:"module"`
	Capabilities   Capabilities `json:"capabilities"`
	UnitRestricted bool         `json:"unitRestricted"`
	// Bypass is set when the grant comes from the administrator short-circuit.
	Bypass bool `json:"bypass"`
}
