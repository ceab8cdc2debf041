// Package console serves the local operator console: login, the staff
// dashboard, resource lists and the customer account pages.
package console

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-console/internal/api"
	"github.com/odyssey-erp/odyssey-console/internal/bootstrap"
	"github.com/odyssey-erp/odyssey-console/internal/guard"
	"github.com/odyssey-erp/odyssey-console/internal/pricing"
	"github.com/odyssey-erp/odyssey-console/internal/rbac"
	"github.com/odyssey-erp/odyssey-console/internal/session"
	"github.com/odyssey-erp/odyssey-console/internal/shared"
	"github.com/odyssey-erp/odyssey-console/internal/view"
)

// Params groups the console's dependencies.
type Params struct {
	Client         *api.Client
	Store          *session.Store
	Resolver       *rbac.Resolver
	Gate           rbac.Gate
	Bootstrap      guard.StatusSource
	Templates      *view.Engine
	CSRF           *shared.CSRFManager
	Flashes        *shared.Flashes
	Routes         guard.Routes
	GuardObserver  guard.Observer
	Money          pricing.Formatter
	LoginRateLimit int
	Logger         *slog.Logger
}

// Handler serves the console pages.
type Handler struct {
	client    *api.Client
	store     *session.Store
	resolver  *rbac.Resolver
	gate      rbac.Gate
	boot      guard.StatusSource
	templates *view.Engine
	csrf      *shared.CSRFManager
	flashes   *shared.Flashes
	routes    guard.Routes
	guards    guard.Middleware
	perms     rbac.Middleware
	money     pricing.Formatter
	loginRate int
	logger    *slog.Logger
}

// NewHandler builds the console and registers its reaction to a rejected
// session on the API client.
func NewHandler(p Params) *Handler {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	routes := p.Routes
	if routes == (guard.Routes{}) {
		routes = guard.DefaultRoutes
	}
	flashes := p.Flashes
	if flashes == nil {
		flashes = &shared.Flashes{}
	}
	csrf := p.CSRF
	if csrf == nil {
		csrf = shared.NewCSRFManager("")
	}
	boot := p.Bootstrap
	if boot == nil {
		boot = resolvedBootstrap{}
	}
	h := &Handler{
		client:    p.Client,
		store:     p.Store,
		resolver:  p.Resolver,
		gate:      p.Gate,
		boot:      boot,
		templates: p.Templates,
		csrf:      csrf,
		flashes:   flashes,
		routes:    routes,
		money:     p.Money,
		loginRate: p.LoginRateLimit,
		logger:    logger,
	}
	h.guards = guard.Middleware{
		Store:     p.Store,
		Bootstrap: boot,
		Routes:    routes,
		Loading:   http.HandlerFunc(h.loading),
		Observer:  p.GuardObserver,
		Logger:    logger,
	}
	h.perms = rbac.Middleware{Gate: p.Gate, Logger: logger, Deny: h.denied}
	p.Client.OnUnauthorized(h.sessionExpired)
	return h
}

type resolvedBootstrap struct{}

func (resolvedBootstrap) Status() bootstrap.Status { return bootstrap.Absent }

// MountRoutes registers every console route on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Get("/login", h.showLogin)
	r.With(h.loginLimiter()).Post("/login", h.login)
	r.Post("/logout", h.logout)

	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequireStaff, h.withPermissions)
		r.Get("/admin", h.dashboard)
		r.Route("/admin/{resource}", func(r chi.Router) {
			r.Use(h.knownResource)
			r.With(h.requireResource(rbac.ActionView)).Get("/", h.listResource)
			r.With(h.requireResource(rbac.ActionDelete)).Post("/{id}/delete", h.deleteResource)
		})
		r.Get("/api/permissions/{module}", h.modulePermissions)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequireAuth)
		r.Get("/account", h.account)
		r.Get("/account/cart", h.cart)
		r.Post("/account/cart/items/{id}/delete", h.removeCartItem)
		r.Post("/account/cart/checkout", h.checkout)
	})
}

func (h *Handler) loginLimiter() func(http.Handler) http.Handler {
	limit := h.loginRate
	if limit <= 0 {
		limit = 10
	}
	return httprate.Limit(limit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			h.flashes.Add(shared.FlashError, "Too many sign in attempts. Wait a minute and try again.")
			h.renderLogin(w, r, http.StatusTooManyRequests, r.PostFormValue("email"), r.PostFormValue(guard.ReturnParam), nil)
		}),
	)
}

// withPermissions mounts the rights resolver for the staff subtree. Every
// mount re-resolves; the query cache answers repeated mounts.
func (h *Handler) withPermissions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.resolver == nil {
			next.ServeHTTP(w, r)
			return
		}
		if err := h.resolver.Mount(r.Context()); err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				h.toLogin(w, r)
				return
			}
			h.logger.Warn("mount permissions", slog.Any("error", err))
		}
		if !h.store.IsAuthenticated() {
			h.toLogin(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(rbac.WithResolver(r.Context(), h.resolver)))
	})
}

// sessionExpired runs after the API client has already cleared the session.
func (h *Handler) sessionExpired(ctx context.Context, err *api.Error) {
	h.csrf.Rotate()
	if h.resolver != nil {
		_ = h.resolver.Mount(ctx)
	}
	// A stored token rejected at startup was never a live session here.
	if !h.boot.Status().Resolved() {
		return
	}
	h.flashes.Add(shared.FlashError, "Your session has expired. Sign in again.")
}

func (h *Handler) denied(w http.ResponseWriter, r *http.Request, moduleKey string) {
	h.flashes.Add(shared.FlashInfo, "You do not have access to "+moduleKey+".")
	http.Redirect(w, r, h.routes.AdminHome, http.StatusSeeOther)
}

func (h *Handler) toLogin(w http.ResponseWriter, r *http.Request) {
	target := ""
	if r.Method == http.MethodGet {
		target = r.URL.RequestURI()
	}
	http.Redirect(w, r, h.routes.LoginURL(target), http.StatusSeeOther)
}

func (h *Handler) data(r *http.Request, title string, data any) view.TemplateData {
	td := view.TemplateData{
		Title:       title,
		CSRFToken:   h.csrf.Token(),
		Flashes:     h.flashes.Drain(),
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if user, ok := h.store.CurrentUser(); ok {
		td.User = &user
	}
	return td
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	if err := h.templates.Render(w, status, name, h.data(r, title, data)); err != nil {
		h.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) loading(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/loading.html", "Loading", nil)
}

// fail reports a failed backend call. A rejected session goes to login; any
// other failure becomes a notification on the fallback page.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if errors.Is(err, api.ErrUnauthorized) {
		h.toLogin(w, r)
		return
	}
	h.logger.Warn("console request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	h.flashes.Add(shared.FlashError, userMessage(err))
	http.Redirect(w, r, fallback, http.StatusSeeOther)
}

func userMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	var fields api.FieldErrors
	if errors.As(err, &fields) {
		return fields.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The request timed out. Try again."
	}
	return "Something went wrong. Try again."
}
