package console

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-console/internal/api"
	"github.com/odyssey-erp/odyssey-console/internal/guard"
	"github.com/odyssey-erp/odyssey-console/internal/shared"
)

type loginPage struct {
	Email       string
	ReturnTo    string
	FieldErrors api.FieldErrors
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	switch guard.Authentication(h.store.Snapshot(), h.boot.Status()) {
	case guard.Allow:
		user, _ := h.store.CurrentUser()
		http.Redirect(w, r, h.routes.Landing(&user), http.StatusSeeOther)
	case guard.Loading:
		h.guards.RequireAuth(http.NotFoundHandler()).ServeHTTP(w, r)
	default:
		http.Redirect(w, r, h.routes.Login, http.StatusSeeOther)
	}
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	returnTo := r.URL.Query().Get(guard.ReturnParam)
	if h.store.IsAuthenticated() {
		user, _ := h.store.CurrentUser()
		http.Redirect(w, r, h.destination(returnTo, h.routes.Landing(&user)), http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, "", returnTo, nil)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, email, returnTo string, fields api.FieldErrors) {
	if _, ok := guard.SafeReturnPath(returnTo); !ok {
		returnTo = ""
	}
	h.render(w, r, status, "pages/login.html", "Sign in", loginPage{Email: email, ReturnTo: returnTo, FieldErrors: fields})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	returnTo := r.PostFormValue(guard.ReturnParam)

	user, err := h.client.SignIn(r.Context(), api.Credentials{Email: email, Password: r.PostFormValue("password")})
	if err != nil {
		var fields api.FieldErrors
		switch {
		case errors.As(err, &fields):
			h.renderLogin(w, r, http.StatusUnprocessableEntity, email, returnTo, fields)
		case errors.Is(err, api.ErrInvalidCredentials):
			h.flashes.Add(shared.FlashError, "Incorrect email or password.")
			h.renderLogin(w, r, http.StatusUnauthorized, email, returnTo, nil)
		default:
			h.logger.Warn("sign in failed", slog.Any("error", err))
			h.flashes.Add(shared.FlashError, userMessage(err))
			h.renderLogin(w, r, http.StatusBadGateway, email, returnTo, nil)
		}
		return
	}

	h.csrf.Rotate()
	if h.resolver != nil && user.Role.IsStaff() {
		if err := h.resolver.Mount(r.Context()); err != nil {
			h.logger.Warn("resolve rights after sign in", slog.Any("error", err))
		}
	}
	h.logger.Info("signed in", slog.Int64("user_id", user.ID), slog.String("role", user.Role.String()))
	h.flashes.Add(shared.FlashSuccess, "Welcome back, "+displayName(user.Name, user.Email)+".")
	http.Redirect(w, r, h.destination(returnTo, h.routes.Landing(&user)), http.StatusSeeOther)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.client.SignOut(r.Context()); err != nil {
		h.logger.Warn("sign out", slog.Any("error", err))
	}
	if h.resolver != nil {
		_ = h.resolver.Mount(r.Context())
	}
	h.csrf.Rotate()
	h.flashes.Add(shared.FlashInfo, "You have been signed out.")
	http.Redirect(w, r, h.routes.Login, http.StatusSeeOther)
}

// destination is returnTo when it is a safe local path, fallback otherwise.
func (h *Handler) destination(returnTo, fallback string) string {
	if path, ok := guard.SafeReturnPath(returnTo); ok && path != h.routes.Login {
		return path
	}
	return fallback
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
