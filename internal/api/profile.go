package api

import (
	"context"
	"net/http"

	"github.com/odyssey-erp/odyssey-console/internal/querycache"
	"github.com/odyssey-erp/odyssey-console/internal/session"
)

// ProfileInput updates the session user's own record.
type ProfileInput struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone,omitempty" validate:"max=40"`
}

// Profile fetches the session user's record.
func (c *Client) Profile(ctx context.Context) (session.User, error) {
	return query(ctx, c, "profile", "/profile", nil, nil, func(session.User) []querycache.Tag {
		return []querycache.Tag{querycache.TypeTag(KindProfile)}
	})
}

// UpdateProfile saves the session user's record and refreshes the session
// copy of it.
func (c *Client) UpdateProfile(ctx context.Context, in ProfileInput) (session.User, error) {
	if err := validateInput(in); err != nil {
		return session.User{}, err
	}
	var out session.User
	if err := mutate(ctx, c, "updateProfile", http.MethodPut, "/profile", 0, in, &out); err != nil {
		return session.User{}, err
	}
	if err := out.Validate(); err == nil {
		c.session.SetUser(out)
	}
	return out, nil
}
