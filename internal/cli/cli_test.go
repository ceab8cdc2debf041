package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-console/internal/app"
)

var fixedNow = time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)

type fakeBackend struct {
	token   string
	meCalls int
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := map[string]any{"id": 2, "name": "Eve", "email": "emp@example.com", "role": "EMPLOYEE", "role_id": 2}
	writeJSON := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	if r.URL.Path == "/auth/login" {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "secret" {
			writeJSON(http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
			return
		}
		writeJSON(http.StatusOK, map[string]any{"access_token": b.token, "user": user})
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+b.token {
		writeJSON(http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
		return
	}
	switch r.URL.Path {
	case "/auth/me":
		b.meCalls++
		writeJSON(http.StatusOK, user)
	case "/admin/rights/user/2":
		writeJSON(http.StatusOK, map[string]any{"rights": []map[string]any{
			{"module_key": "clients", "can_view": true, "can_update": true},
			{"module_key": "products", "can_view": true},
		}})
	default:
		http.NotFound(w, r)
	}
}

type harness struct {
	backend *fakeBackend
	opts    Options
}

func newHarness(t *testing.T, policy string) *harness {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "2",
		ExpiresAt: jwt.NewNumericDate(fixedNow.Add(2 * time.Hour)),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	be := &fakeBackend{token: token}
	srv := httptest.NewServer(be)
	t.Cleanup(srv.Close)

	tokenFile := filepath.Join(t.TempDir(), "token")
	factory := func(ctx context.Context, _ GlobalOptions) (*app.Services, error) {
		return app.Wire(ctx, &app.Config{
			APIBaseURL:         srv.URL,
			TokenStore:         app.TokenStoreFile,
			TokenFile:          tokenFile,
			Language:           "en-US",
			PermissionsUnwired: policy,
		}, nil, nil)
	}
	return &harness{backend: be, opts: Options{Services: factory, Now: func() time.Time { return fixedNow }}}
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(h.opts)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSubcommandsRegistered(t *testing.T) {
	root := NewRootCommand(Options{})
	want := map[string]bool{"login": false, "logout": false, "whoami": false, "rights": false, "can": false, "quote": false, "cache": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		assert.True(t, found, "subcommand %s", name)
	}
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t, "open")

	out, err := h.run(t, "", "login", "--email", "emp@example.com", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Eve (EMPLOYEE)")

	out, err = h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "emp@example.com")
	assert.Contains(t, out, "expires 2026-01-31T11:00:00Z (in 2h0m0s)")
	assert.Equal(t, 1, h.backend.meCalls)

	out, err = h.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out.")

	_, err = h.run(t, "", "whoami")
	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.Equal(t, 1, h.backend.meCalls)
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	h := newHarness(t, "open")
	out, err := h.run(t, "secret\n", "login", "--email", "emp@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Eve")
}

func TestLoginRejected(t *testing.T) {
	h := newHarness(t, "open")
	_, err := h.run(t, "", "login", "--email", "emp@example.com", "--password", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login failed")

	_, err = h.run(t, "", "login", "--email", "not-an-email", "--password", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
}

func TestRightsTable(t *testing.T) {
	h := newHarness(t, "open")
	_, err := h.run(t, "", "login", "--email", "emp@example.com", "--password", "secret")
	require.NoError(t, err)

	out, err := h.run(t, "", "rights")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "clients"))
	assert.True(t, strings.HasPrefix(lines[2], "products"))
	assert.Equal(t, []string{"clients", "yes", "-", "yes", "-"}, strings.Fields(lines[1]))
}

func TestCanUsesResolvedRights(t *testing.T) {
	h := newHarness(t, "open")
	_, err := h.run(t, "", "login", "--email", "emp@example.com", "--password", "secret")
	require.NoError(t, err)

	out, err := h.run(t, "", "can", "clients", "update")
	require.NoError(t, err)
	assert.Contains(t, out, "clients update: allowed (resolved rights)")

	out, err = h.run(t, "", "can", "products", "delete")
	assert.ErrorIs(t, err, ErrDenied)
	assert.Contains(t, out, "denied")

	_, err = h.run(t, "", "can", "products", "approve")
	assert.Error(t, err)
}

func TestCanWithoutSessionFollowsPolicy(t *testing.T) {
	out, err := newHarness(t, "open").run(t, "", "can", "clients", "delete")
	require.NoError(t, err)
	assert.Contains(t, out, "allowed (unwired policy open)")

	out, err = newHarness(t, "closed").run(t, "", "can", "clients")
	assert.ErrorIs(t, err, ErrDenied)
	assert.Contains(t, out, "denied (unwired policy closed)")
}

func TestQuote(t *testing.T) {
	h := newHarness(t, "open")
	out, err := h.run(t, "", "quote", "--price", "100", "--interval", "quarterly", "--cycles", "4", "--discount", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "90.00")
	assert.Contains(t, out, "30.00")
	assert.Contains(t, out, "360.00")
	assert.Contains(t, out, "2026-01-31")
	assert.Contains(t, out, "2026-04-30")

	out, err = h.run(t, "", "quote", "--price", "10", "--cycles", "0", "--dates", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "open-ended")

	_, err = h.run(t, "", "quote", "--price", "10", "--interval", "weekly")
	assert.Error(t, err)
}

func TestCacheTable(t *testing.T) {
	h := newHarness(t, "open")
	out, err := h.run(t, "", "cache", "checkout")
	require.NoError(t, err)
	assert.Contains(t, out, "Order:LIST, Cart, Order:<id>")

	out, err = h.run(t, "", "cache")
	require.NoError(t, err)
	assert.Contains(t, out, "updateUserRole")

	_, err = h.run(t, "", "cache", "nope")
	assert.Error(t, err)
}
