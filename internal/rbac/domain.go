package rbac

import "strings"

// RightsEntry is one row of a user's per-module rights as the backend
// returns them.
type RightsEntry struct {
	ModuleKey string `json:"module_key" validate:"required"`
	CanView   bool   `json:"can_view"`
	CanCreate bool   `json:"can_create"`
	CanUpdate bool   `json:"can_update"`
	CanDelete bool   `json:"can_delete"`
}

// Permissions are the four capabilities a user holds on one module.
type Permissions struct {
	CanView   bool `json:"canView"`
	CanCreate bool `json:"canCreate"`
	CanUpdate bool `json:"canUpdate"`
	CanDelete bool `json:"canDelete"`
}

var (
	// NoAccess denies everything.
	NoAccess = Permissions{}
	// FullAccess grants everything.
	FullAccess = Permissions{CanView: true, CanCreate: true, CanUpdate: true, CanDelete: true}
)

// Action names one of the four capabilities.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ParseAction resolves an action name; ok is false for unknown names.
func ParseAction(name string) (Action, bool) {
	switch a := Action(strings.ToLower(strings.TrimSpace(name))); a {
	case ActionView, ActionCreate, ActionUpdate, ActionDelete:
		return a, true
	}
	return "", false
}

// Allows reports whether p grants a. Unknown actions are denied.
func (p Permissions) Allows(a Action) bool {
	switch a {
	case ActionView:
		return p.CanView
	case ActionCreate:
		return p.CanCreate
	case ActionUpdate:
		return p.CanUpdate
	case ActionDelete:
		return p.CanDelete
	}
	return false
}

// Map holds Permissions by module key.
type Map map[string]Permissions

// BuildMap turns the flat rights list into a Map in one pass. When a module
// key repeats, the later row wins.
func BuildMap(entries []RightsEntry) Map {
	m := make(Map, len(entries))
	for _, e := range entries {
		m[e.ModuleKey] = Permissions{
			CanView:   e.CanView,
			CanCreate: e.CanCreate,
			CanUpdate: e.CanUpdate,
			CanDelete: e.CanDelete,
		}
	}
	return m
}

// Lookup returns the permissions of key, or NoAccess for unknown keys.
func (m Map) Lookup(key string) Permissions {
	if p, ok := m[key]; ok {
		return p
	}
	return NoAccess
}
