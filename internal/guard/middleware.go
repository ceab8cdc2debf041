package guard

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-console/internal/bootstrap"
	"github.com/odyssey-erp/odyssey-console/internal/session"
)

// StatusSource reports bootstrap progress.
type StatusSource interface {
	Status() bootstrap.Status
}

// Observer counts guard verdicts.
type Observer interface {
	ObserveGuard(guard string, outcome Outcome)
}

// Middleware applies the guards to chi routes.
type Middleware struct {
	Store     *session.Store
	Bootstrap StatusSource
	Routes    Routes
	// Loading renders the placeholder page. Nil writes a minimal one.
	Loading  http.Handler
	Observer Observer
	Logger   *slog.Logger
}

// RequireAuth lets confirmed sessions through.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return m.guard("auth", false, next)
}

// RequireStaff lets confirmed staff sessions through.
func (m Middleware) RequireStaff(next http.Handler) http.Handler {
	return m.guard("staff", true, next)
}

func (m Middleware) guard(name string, requireStaff bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := bootstrap.Absent
		if m.Bootstrap != nil {
			status = m.Bootstrap.Status()
		}
		out := Evaluate(m.Store.Snapshot(), status, requireStaff)
		if m.Observer != nil {
			m.Observer.ObserveGuard(name, out)
		}
		switch out {
		case Allow:
			next.ServeHTTP(w, r)
		case Loading:
			m.renderLoading(w, r)
		case RedirectLogin:
			target := r.URL.RequestURI()
			if r.Method != http.MethodGet {
				target = ""
			}
			http.Redirect(w, r, m.routes().LoginURL(target), http.StatusSeeOther)
		case RedirectUserHome:
			if m.Logger != nil {
				m.Logger.Info("guard redirected under-privileged user", slog.String("path", r.URL.Path))
			}
			http.Redirect(w, r, m.routes().UserHome, http.StatusSeeOther)
		}
	})
}

func (m Middleware) routes() Routes {
	if m.Routes == (Routes{}) {
		return DefaultRoutes
	}
	return m.Routes
}

func (m Middleware) renderLoading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Refresh", "1")
	if m.Loading != nil {
		m.Loading.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!doctype html><title>Loading</title><p>Loading…</p>`))
}
