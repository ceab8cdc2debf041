package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-console/internal/session"
)

// Credentials is the login form.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is the backend's answer to a successful login.
type LoginResult struct {
	User        session.User `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type,omitempty"`
}

// Login exchanges credentials for a token. It does not touch the session;
// see SignIn.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	if err := validateInput(creds); err != nil {
		return LoginResult{}, err
	}
	var out LoginResult
	err := c.do(ctx, call{endpoint: "login", method: http.MethodPost, path: "/auth/login", body: creds}, &out)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return LoginResult{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.UserMessage())
		}
		return LoginResult{}, err
	}
	if out.AccessToken == "" {
		return LoginResult{}, fmt.Errorf("%w: login response carries no access token", ErrServer)
	}
	if err := out.User.Validate(); err != nil {
		return LoginResult{}, fmt.Errorf("%w: %v", ErrServer, err)
	}
	return out, nil
}

// SignIn logs in and stores the credentials in the session. Cached data of
// any previous session is dropped first.
func (c *Client) SignIn(ctx context.Context, creds Credentials) (session.User, error) {
	res, err := c.Login(ctx, creds)
	if err != nil {
		return session.User{}, err
	}
	c.cache.Reset()
	if err := c.session.SetCredentials(ctx, res.User, res.AccessToken); err != nil {
		// The session is live in memory; only persistence failed.
		c.logger.Warn("sign in persisted partially", slog.Any("error", err))
	}
	return res.User, nil
}

// SignOut clears the session and every cached result.
func (c *Client) SignOut(ctx context.Context) error {
	c.cache.Reset()
	return c.session.Logout(ctx)
}

// Me validates the current token and returns its user. It is never cached:
// every call reaches the backend.
func (c *Client) Me(ctx context.Context) (session.User, error) {
	var out session.User
	if err := c.do(ctx, call{endpoint: "me", method: http.MethodGet, path: "/auth/me", authenticated: true}, &out); err != nil {
		return session.User{}, err
	}
	if err := out.Validate(); err != nil {
		return session.User{}, fmt.Errorf("%w: %v", ErrServer, err)
	}
	return out, nil
}
