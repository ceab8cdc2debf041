package api

import (
	"context"
	"net/http"

	"github.com/odyssey-erp/odyssey-console/internal/querycache"
	"github.com/odyssey-erp/odyssey-console/internal/rbac"
	"github.com/odyssey-erp/odyssey-console/internal/session"
)

type rightsEnvelope struct {
	Rights []rbac.RightsEntry `json:"rights"`
}

func rightsTags(userID int64) func(rightsEnvelope) []querycache.Tag {
	return func(rightsEnvelope) []querycache.Tag {
		return []querycache.Tag{querycache.IDTag(KindRights, userID)}
	}
}

// UserRights returns the per-module rights rows of a user.
func (c *Client) UserRights(ctx context.Context, userID int64) ([]rbac.RightsEntry, error) {
	out, err := query(ctx, c, "userRights", idPath("/admin/rights/user", userID), userID, nil, rightsTags(userID))
	return out.Rights, err
}

// SubscribeUserRights keeps the cached rights of userID from being pruned
// until release is called.
func (c *Client) SubscribeUserRights(userID int64) (release func()) {
	return c.cache.Subscribe(querycache.Key("userRights", userID))
}

// RefreshUserRights is UserRights bypassing the cache.
func (c *Client) RefreshUserRights(ctx context.Context, userID int64) ([]rbac.RightsEntry, error) {
	out, err := refetch(ctx, c, "userRights", idPath("/admin/rights/user", userID), userID, nil, rightsTags(userID))
	return out.Rights, err
}

// UpdateUserRights replaces a user's rights rows.
func (c *Client) UpdateUserRights(ctx context.Context, userID int64, rights []rbac.RightsEntry) error {
	for _, r := range rights {
		if err := validateInput(r); err != nil {
			return err
		}
	}
	return mutate(ctx, c, "updateUserRights", http.MethodPut, idPath("/admin/rights/user", userID), userID, rightsEnvelope{Rights: rights}, nil)
}

// ListUsers pages through accounts.
func (c *Client) ListUsers(ctx context.Context, params ListParams) (Page[session.User], error) {
	params = params.Normalize()
	return query(ctx, c, "listUsers", "/admin/users", params, params.Values(), func(p Page[session.User]) []querycache.Tag {
		return listTags(KindUser, p, func(u session.User) int64 { return u.ID })
	})
}

type roleUpdate struct {
	Role   string `json:"role"`
	RoleID int    `json:"role_id"`
}

// UpdateUserRole changes an account's role. Rights are derived from roles,
// so every cached rights result is dropped too.
func (c *Client) UpdateUserRole(ctx context.Context, userID int64, role session.Role) error {
	if !role.Valid() {
		return FieldErrors{"Role": "is invalid"}
	}
	body := roleUpdate{Role: role.String(), RoleID: role.ID()}
	return mutate(ctx, c, "updateUserRole", http.MethodPut, idPath("/admin/users", userID, "role"), userID, body, nil)
}

// Employee is a staff member record.
type Employee struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Position   string `json:"position,omitempty"`
	Department string `json:"department,omitempty"`
	HiredAt    string `json:"hired_at,omitempty"`
}

// EmployeeInput creates an employee together with its login.
type EmployeeInput struct {
	Name       string `json:"name" validate:"required,max=255"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	Position   string `json:"position,omitempty" validate:"max=120"`
	Department string `json:"department,omitempty" validate:"max=120"`
}

// ListEmployees pages through employees.
func (c *Client) ListEmployees(ctx context.Context, params ListParams) (Page[Employee], error) {
	params = params.Normalize()
	return query(ctx, c, "listEmployees", "/admin/employees", params, params.Values(), func(p Page[Employee]) []querycache.Tag {
		return listTags(KindEmployee, p, func(e Employee) int64 { return e.ID })
	})
}

// CreateEmployee adds an employee.
func (c *Client) CreateEmployee(ctx context.Context, in EmployeeInput) (Employee, error) {
	if err := validateInput(in); err != nil {
		return Employee{}, err
	}
	var out Employee
	err := mutate(ctx, c, "createEmployee", http.MethodPost, "/admin/employees", 0, in, &out)
	return out, err
}

// DeleteEmployee removes an employee.
func (c *Client) DeleteEmployee(ctx context.Context, id int64) error {
	return mutate(ctx, c, "deleteEmployee", http.MethodDelete, idPath("/admin/employees", id), id, nil, nil)
}
