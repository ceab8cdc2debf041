package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-console/internal/api"
	"github.com/odyssey-erp/odyssey-console/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-console/internal/rbac"
	"github.com/odyssey-erp/odyssey-console/internal/session"
	"github.com/odyssey-erp/odyssey-console/internal/shared"
)

type rightRow struct {
	Module      string
	Permissions rbac.Permissions
}

type resourceLink struct {
	Key     string
	Title   string
	CanView bool
}

type dashboardPage struct {
	Profile      session.User
	ProfileError string
	State        string
	RightsError  string
	Rights       []rightRow
	Resources    []resourceLink
}

type listPage struct {
	Key        string
	Title      string
	Columns    []string
	Rows       []row
	Perms      rbac.Permissions
	Search     string
	Pagination shared.Pagination
}

type resourceContextKey struct{}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	var (
		page    dashboardPage
		profile session.User
	)
	// Profile and rights are independent; either may finish first.
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		profile, err = h.client.Profile(ctx)
		return err
	})
	g.Go(func() error {
		if h.resolver == nil {
			return nil
		}
		err := h.resolver.Refetch(ctx)
		if err != nil && !isUnauthorized(err) {
			page.RightsError = userMessage(err)
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		if isUnauthorized(err) {
			h.toLogin(w, r)
			return
		}
		page.ProfileError = userMessage(err)
	}
	if !h.store.IsAuthenticated() {
		h.toLogin(w, r)
		return
	}
	page.Profile = profile

	perms := rbac.Map{}
	if h.resolver != nil {
		perms = h.resolver.Permissions()
		page.State = h.resolver.State().String()
	}
	for module, p := range perms {
		page.Rights = append(page.Rights, rightRow{Module: module, Permissions: p})
	}
	sort.Slice(page.Rights, func(i, j int) bool { return page.Rights[i].Module < page.Rights[j].Module })
	for _, res := range resources {
		page.Resources = append(page.Resources, resourceLink{
			Key:     res.Key,
			Title:   res.Title,
			CanView: h.gate.Can(r.Context(), res.Key, rbac.ActionView),
		})
	}
	h.render(w, r, http.StatusOK, "pages/admin_dashboard.html", "Dashboard", page)
}

// knownResource answers 404 for resources the console has no page for.
func (h *Handler) knownResource(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := lookupResource(chi.URLParam(r, "resource"))
		if !ok {
			h.render(w, r, http.StatusNotFound, "pages/error.html", "Not found", map[string]string{"Message": "There is no such page."})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), resourceContextKey{}, res)))
	})
}

func resourceFrom(ctx context.Context) resource {
	res, _ := ctx.Value(resourceContextKey{}).(resource)
	return res
}

func (h *Handler) requireResource(action rbac.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.perms.RequireAny(resourceFrom(r.Context()).Key, action)(next).ServeHTTP(w, r)
		})
	}
}

func (h *Handler) listResource(w http.ResponseWriter, r *http.Request) {
	res := resourceFrom(r.Context())
	q := r.URL.Query()
	pageNum, _ := strconv.Atoi(q.Get("page"))
	params := api.ListParams{Page: pageNum, Search: q.Get("search")}.Normalize()

	rows, total, err := res.list(r.Context(), h.client, params, h.money.MustMoney)
	if err != nil {
		h.fail(w, r, err, h.routes.AdminHome)
		return
	}
	perms := h.gate.ModulePermissions(r.Context(), res.Key)
	if res.remove == nil {
		perms.CanDelete = false
	}
	h.render(w, r, http.StatusOK, "pages/resource_list.html", res.Title, listPage{
		Key:        res.Key,
		Title:      res.Title,
		Columns:    res.Columns,
		Rows:       rows,
		Perms:      perms,
		Search:     params.Search,
		Pagination: shared.NewPagination(params.Page, params.Limit, total),
	})
}

func (h *Handler) deleteResource(w http.ResponseWriter, r *http.Request) {
	res := resourceFrom(r.Context())
	back := h.routes.AdminHome + "/" + res.Key
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if res.remove == nil {
		h.flashes.Add(shared.FlashInfo, res.Title+" cannot be deleted from the console.")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if err := res.remove(r.Context(), h.client, id); err != nil {
		h.fail(w, r, err, back)
		return
	}
	h.logger.Info("resource deleted", slog.String("resource", res.Key), slog.Int64("id", id))
	h.flashes.Add(shared.FlashSuccess, fmt.Sprintf("%s #%d deleted.", res.Title, id))
	http.Redirect(w, r, back, http.StatusSeeOther)
}

type permissionsResponse struct {
	Module      string           `json:"module"`
	State       string           `json:"state"`
	Permissions rbac.Permissions `json:"permissions"`
}

func (h *Handler) modulePermissions(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	state := "unwired"
	if res := rbac.FromContext(r.Context()); res != nil {
		if err := res.Err(); err != nil && res.State() == rbac.StateUnloaded {
			httpx.RespondError(w, err)
			return
		}
		state = res.State().String()
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{
		Module:      module,
		State:       state,
		Permissions: h.gate.ModulePermissions(r.Context(), module),
	})
}

func isUnauthorized(err error) bool {
	return errors.Is(err, api.ErrUnauthorized)
}
