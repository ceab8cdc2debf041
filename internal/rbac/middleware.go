package rbac

import (
	"log/slog"
	"net/http"
)

// DenyFunc answers a request the gate refused.
type DenyFunc func(w http.ResponseWriter, r *http.Request, moduleKey string)

// Middleware gates console routes by module permissions.
type Middleware struct {
	Gate   Gate
	Logger *slog.Logger
	// Deny handles refusals. Nil answers 403.
	Deny DenyFunc
}

// RequireAny lets the request through when the user holds at least one of
// actions on moduleKey.
func (m Middleware) RequireAny(moduleKey string, actions ...Action) func(http.Handler) http.Handler {
	return m.require(moduleKey, actions, func(p Permissions) bool {
		if len(actions) == 0 {
			return true
		}
		for _, a := range actions {
			if p.Allows(a) {
				return true
			}
		}
		return false
	})
}

// RequireAll lets the request through only when the user holds every one of
// actions on moduleKey.
func (m Middleware) RequireAll(moduleKey string, actions ...Action) func(http.Handler) http.Handler {
	return m.require(moduleKey, actions, func(p Permissions) bool {
		for _, a := range actions {
			if !p.Allows(a) {
				return false
			}
		}
		return true
	})
}

func (m Middleware) require(moduleKey string, actions []Action, allowed func(Permissions) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowed(m.Gate.ModulePermissions(r.Context(), moduleKey)) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Info("rbac denied", slog.String("module", moduleKey), slog.Any("actions", actions), slog.String("path", r.URL.Path))
			}
			if m.Deny != nil {
				m.Deny(w, r, moduleKey)
				return
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}
