package console

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-console/internal/api"
	"github.com/odyssey-erp/odyssey-console/internal/bootstrap"
	"github.com/odyssey-erp/odyssey-console/internal/pricing"
	"github.com/odyssey-erp/odyssey-console/internal/rbac"
	"github.com/odyssey-erp/odyssey-console/internal/session"
	"github.com/odyssey-erp/odyssey-console/internal/view"
)

var users = map[string]map[string]any{
	"tok-1": {"id": 1, "name": "Ada", "email": "admin@example.com", "role": "ADMIN", "role_id": 1},
	"tok-2": {"id": 2, "name": "Eve", "email": "emp@example.com", "role": "EMPLOYEE", "role_id": 2},
	"tok-3": {"id": 3, "name": "Cy", "email": "cust@example.com", "role": "USER", "role_id": 3},
}

var rights = map[string][]map[string]any{
	"1": {
		{"module_key": "clients", "can_view": true, "can_create": true, "can_update": true, "can_delete": true},
		{"module_key": "products", "can_view": true, "can_create": true, "can_update": true, "can_delete": true},
	},
	"2": {{"module_key": "clients", "can_view": true}},
}

type backend struct {
	expired    atomic.Bool
	rightsDown atomic.Bool
	deletes atomic.Int32
}

func (b *backend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	authed := func(fn func(w http.ResponseWriter, r *http.Request, user map[string]any)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user, ok := users[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
			if !ok || b.expired.Load() {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
				return
			}
			fn(w, r, user)
		}
	}
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds api.Credentials
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		for token, u := range users {
			if u["email"] == creds.Email && creds.Password == "secret" {
				writeJSON(w, http.StatusOK, map[string]any{"access_token": token, "user": u})
				return
			}
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
	})
	mux.HandleFunc("GET /auth/me", authed(func(w http.ResponseWriter, r *http.Request, u map[string]any) {
		writeJSON(w, http.StatusOK, u)
	}))
	mux.HandleFunc("GET /profile", authed(func(w http.ResponseWriter, r *http.Request, u map[string]any) {
		writeJSON(w, http.StatusOK, u)
	}))
	mux.HandleFunc("GET /admin/rights/user/{id}", authed(func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		if b.rightsDown.Load() {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "rights service unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rights": rights[r.PathValue("id")]})
	}))
	mux.HandleFunc("GET /clients", authed(func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{{"id": 3, "name": "Acme", "company": "Acme Ltd"}}, "total": 1})
	}))
	mux.HandleFunc("DELETE /clients/{id}", authed(func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		b.deletes.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET /cart", authed(func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "currency": "USD", "items": []map[string]any{
			{"id": 7, "product_id": 2, "product_name": "Widget", "quantity": 2, "unit_price": 10, "tax_percent": 10},
		}})
	}))
	mux.HandleFunc("GET /subscriptions", authed(func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
	}))
	mux.HandleFunc("GET /orders", authed(func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{{"id": 11, "status": "paid", "total": 22}}})
	}))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type fixedStatus bootstrap.Status

func (s fixedStatus) Status() bootstrap.Status { return bootstrap.Status(s) }

type harness struct {
	router  http.Handler
	store   *session.Store
	client  *api.Client
	backend *backend
}

func newHarness(t *testing.T, status bootstrap.Status) *harness {
	t.Helper()
	be := &backend{}
	srv := httptest.NewServer(be.handler(t))
	t.Cleanup(srv.Close)

	store := session.NewStore(session.NewMemoryStorage(), nil)
	client, err := api.New(api.Options{BaseURL: srv.URL, Session: store})
	require.NoError(t, err)
	money := pricing.NewFormatter("en-US")
	engine, err := view.NewEngine(money)
	require.NoError(t, err)

	h := NewHandler(Params{
		Client:    client,
		Store:     store,
		Resolver:  rbac.NewResolver(client, store, nil),
		Gate:      rbac.Gate{Unwired: rbac.FailOpen},
		Bootstrap: fixedStatus(status),
		Templates: engine,
		Money:     money,
	})
	r := chi.NewRouter()
	h.MountRoutes(r)
	return &harness{router: r, store: store, client: client, backend: be}
}

func (hs *harness) signIn(t *testing.T, token string) {
	t.Helper()
	raw, err := json.Marshal(users[token])
	require.NoError(t, err)
	var u session.User
	require.NoError(t, json.Unmarshal(raw, &u))
	require.NoError(t, hs.store.SetCredentials(context.Background(), u, token))
}

func (hs *harness) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	hs.router.ServeHTTP(rr, req)
	return rr
}

func TestAnonymousIsSentToLoginWithDeepLink(t *testing.T) {
	hs := newHarness(t, bootstrap.Absent)
	rr := hs.do(http.MethodGet, "/admin/clients?page=2", nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login?return_to=%2Fadmin%2Fclients%3Fpage%3D2", rr.Header().Get("Location"))

	rr = hs.do(http.MethodGet, "/login?return_to=%2Fadmin%2Fclients", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `value="/admin/clients"`)
}

func TestPendingBootstrapRendersLoading(t *testing.T) {
	hs := newHarness(t, bootstrap.Pending)
	rr := hs.do(http.MethodGet, "/admin", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Location"))
	assert.Contains(t, rr.Body.String(), "Restoring your session")
}

func TestLoginReturnsToDeepLink(t *testing.T) {
	hs := newHarness(t, bootstrap.Absent)
	rr := hs.do(http.MethodPost, "/login", url.Values{
		"email": {"emp@example.com"}, "password": {"secret"}, "return_to": {"/admin/clients"},
	})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/admin/clients", rr.Header().Get("Location"))
	assert.True(t, hs.store.IsAuthenticated())
}

func TestLoginIgnoresForeignReturnTarget(t *testing.T) {
	hs := newHarness(t, bootstrap.Absent)
	rr := hs.do(http.MethodPost, "/login", url.Values{
		"email": {"cust@example.com"}, "password": {"secret"}, "return_to": {"https://evil.example/"},
	})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/account", rr.Header().Get("Location"))
}

func TestLoginRejectsBadPassword(t *testing.T) {
	hs := newHarness(t, bootstrap.Absent)
	rr := hs.do(http.MethodPost, "/login", url.Values{"email": {"emp@example.com"}, "password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "Incorrect email or password")
	assert.False(t, hs.store.IsAuthenticated())

	rr = hs.do(http.MethodPost, "/login", url.Values{"email": {"not-an-email"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestCustomerIsKeptOutOfAdmin(t *testing.T) {
	hs := newHarness(t, bootstrap.Present)
	hs.signIn(t, "tok-3")
	rr := hs.do(http.MethodGet, "/admin", nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/account", rr.Header().Get("Location"))

	rr = hs.do(http.MethodGet, "/account", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "cust@example.com")
}

func TestEmployeeSeesOnlyPermittedActions(t *testing.T) {
	hs := newHarness(t, bootstrap.Present)
	hs.signIn(t, "tok-2")

	rr := hs.do(http.MethodGet, "/admin/clients", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Acme")
	assert.NotContains(t, rr.Body.String(), "/admin/clients/3/delete")

	rr = hs.do(http.MethodGet, "/admin/products", nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/admin", rr.Header().Get("Location"))

	rr = hs.do(http.MethodPost, "/admin/clients/3/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/admin", rr.Header().Get("Location"))
	assert.Zero(t, hs.backend.deletes.Load())
}

func TestAdminDeletesClient(t *testing.T) {
	hs := newHarness(t, bootstrap.Present)
	hs.signIn(t, "tok-1")

	rr := hs.do(http.MethodGet, "/admin/clients", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/admin/clients/3/delete")

	rr = hs.do(http.MethodPost, "/admin/clients/3/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/admin/clients", rr.Header().Get("Location"))
	assert.Equal(t, int32(1), hs.backend.deletes.Load())
}

func TestUnknownResourceIsNotFound(t *testing.T) {
	hs := newHarness(t, bootstrap.Present)
	hs.signIn(t, "tok-1")
	rr := hs.do(http.MethodGet, "/admin/widgets", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestExpiredSessionRedirectsToLogin(t *testing.T) {
	hs := newHarness(t, bootstrap.Present)
	hs.signIn(t, "tok-1")
	hs.backend.expired.Store(true)

	rr := hs.do(http.MethodGet, "/admin/clients", nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Location"), "/login"))
	assert.False(t, hs.store.IsAuthenticated())
	assert.Empty(t, hs.store.AuthToken())

	rr = hs.do(http.MethodGet, "/login", nil)
	assert.Contains(t, rr.Body.String(), "Your session has expired")
}

func TestRejectedStoredTokenHasNoExpiryNotice(t *testing.T) {
	hs := newHarness(t, bootstrap.Pending)
	ctx := context.Background()
	require.NoError(t, hs.store.SetCredentials(ctx, session.User{ID: 1, Email: "admin@example.com", Role: session.RoleAdmin}, "tok-1"))
	_, err := hs.store.Hydrate(ctx)
	require.NoError(t, err)
	hs.backend.expired.Store(true)

	_, err = hs.client.Me(ctx)
	require.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Empty(t, hs.store.AuthToken())

	rr := hs.do(http.MethodGet, "/login", nil)
	assert.NotContains(t, rr.Body.String(), "Your session has expired")
}

func TestModulePermissionsEndpoint(t *testing.T) {
	hs := newHarness(t, bootstrap.Present)
	hs.signIn(t, "tok-2")

	rr := hs.do(http.MethodGet, "/api/permissions/clients", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var body permissionsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.State)
	assert.Equal(t, rbac.Permissions{CanView: true}, body.Permissions)

	rr = hs.do(http.MethodGet, "/api/permissions/unknown_module", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, rbac.NoAccess, body.Permissions)
}

func TestModulePermissionsReportsResolveFailure(t *testing.T) {
	hs := newHarness(t, bootstrap.Present)
	hs.signIn(t, "tok-2")
	hs.backend.rightsDown.Store(true)

	rr := hs.do(http.MethodGet, "/api/permissions/clients", nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	assert.True(t, hs.store.IsAuthenticated())
}

func TestDashboardListsRights(t *testing.T) {
	hs := newHarness(t, bootstrap.Present)
	hs.signIn(t, "tok-1")
	rr := hs.do(http.MethodGet, "/admin", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "admin@example.com")
	assert.Contains(t, body, "products")
	assert.Contains(t, body, `href="/admin/clients"`)
}

func TestCartShowsDerivedTotals(t *testing.T) {
	hs := newHarness(t, bootstrap.Present)
	hs.signIn(t, "tok-3")
	rr := hs.do(http.MethodGet, "/account/cart", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Widget")
	assert.Contains(t, body, "22.00")
}

func TestLogoutClearsSession(t *testing.T) {
	hs := newHarness(t, bootstrap.Present)
	hs.signIn(t, "tok-1")
	rr := hs.do(http.MethodPost, "/logout", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	assert.False(t, hs.store.IsAuthenticated())
}
