package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrRoleMismatch is returned when a user record carries a role name and
	// a role id that do not describe the same role.
	ErrRoleMismatch = errors.New("session: role and role_id disagree")
	// ErrRoleMissing is returned when a user record carries no role at all.
	ErrRoleMissing = errors.New("session: user record has no role")
	// ErrUnknownRole is returned for role names or ids outside the mapping table.
	ErrUnknownRole = errors.New("session: unknown role")
)

// Role is the canonical role of an account.
type Role int

// Role values equal the backend role_id.
const (
	RoleAdmin    Role = 1
	RoleEmployee Role = 2
	RoleUser     Role = 3
)

// roleTable is the single mapping between role names and role ids.
//
//	ADMIN    <-> 1
//	EMPLOYEE <-> 2
//	USER     <-> 3
var roleTable = []struct {
	role Role
	name string
}{
	{RoleAdmin, "ADMIN"},
	{RoleEmployee, "EMPLOYEE"},
	{RoleUser, "USER"},
}

// RoleFromID resolves a backend role_id.
func RoleFromID(id int) (Role, error) {
	for _, entry := range roleTable {
		if int(entry.role) == id {
			return entry.role, nil
		}
	}
	return 0, fmt.Errorf("%w: role_id %d", ErrUnknownRole, id)
}

// ParseRole resolves a role name, ignoring case and surrounding space.
func ParseRole(name string) (Role, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	for _, entry := range roleTable {
		if entry.name == normalized {
			return entry.role, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

// ID returns the backend role_id.
func (r Role) ID() int { return int(r) }

// String returns the backend role name.
func (r Role) String() string {
	for _, entry := range roleTable {
		if entry.role == r {
			return entry.name
		}
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Valid reports whether r is part of the mapping table.
func (r Role) Valid() bool {
	_, err := RoleFromID(int(r))
	return err == nil
}

// IsStaff reports whether the role may enter the back-office routes.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// User is the account record returned by the backend.
type User struct {
	ID        int64  `validate:"required,gt=0"`
	Name      string `validate:"max=255"`
	Email     string `validate:"required,email"`
	Role      Role   `validate:"required"`
	Phone     string
	CreatedAt string
}

type userWire struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Role      *string `json:"role,omitempty"`
	RoleID    *int    `json:"role_id,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

var validate = validator.New()

// Validate checks the record for the fields every consumer relies on.
func (u User) Validate() error {
	if err := validate.Struct(u); err != nil {
		return fmt.Errorf("session: invalid user record: %w", err)
	}
	if !u.Role.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownRole, int(u.Role))
	}
	return nil
}

// MarshalJSON writes both role encodings so the backend contract is kept.
func (u User) MarshalJSON() ([]byte, error) {
	name := u.Role.String()
	id := u.Role.ID()
	return json.Marshal(userWire{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      &name,
		RoleID:    &id,
		Phone:     u.Phone,
		CreatedAt: u.CreatedAt,
	})
}

// UnmarshalJSON accepts role, role_id or both. Records where the two
// disagree are rejected.
func (u *User) UnmarshalJSON(data []byte) error {
	var wire userWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	role, err := resolveRole(wire.Role, wire.RoleID)
	if err != nil {
		return err
	}
	*u = User{
		ID:        wire.ID,
		Name:      wire.Name,
		Email:     wire.Email,
		Role:      role,
		Phone:     wire.Phone,
		CreatedAt: wire.CreatedAt,
	}
	return nil
}

func resolveRole(name *string, id *int) (Role, error) {
	switch {
	case name == nil && id == nil:
		return 0, ErrRoleMissing
	case name == nil:
		return RoleFromID(*id)
	case id == nil:
		return ParseRole(*name)
	}
	byName, err := ParseRole(*name)
	if err != nil {
		return 0, err
	}
	byID, err := RoleFromID(*id)
	if err != nil {
		return 0, err
	}
	if byName != byID {
		return 0, fmt.Errorf("%w: role=%s role_id=%d", ErrRoleMismatch, *name, *id)
	}
	return byName, nil
}
