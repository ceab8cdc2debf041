package console

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-console/internal/api"
	"github.com/odyssey-erp/odyssey-console/internal/pricing"
	"github.com/odyssey-erp/odyssey-console/internal/session"
	"github.com/odyssey-erp/odyssey-console/internal/shared"
)

type accountPage struct {
	Profile       session.User
	Subscriptions []api.Subscription
	Orders        []api.Order
	Errors        []string
}

type cartLine struct {
	Item      api.CartItem
	LineTotal float64
}

type cartPage struct {
	Lines    []cartLine
	Totals   pricing.Totals
	Currency string
}

type paymentPage struct {
	Order  api.Order
	Intent api.PaymentIntent
}

func (h *Handler) account(w http.ResponseWriter, r *http.Request) {
	var (
		page    accountPage
		profErr error
		subErr  error
		ordErr  error
	)
	var g errgroup.Group
	g.Go(func() error {
		page.Profile, profErr = h.client.Profile(r.Context())
		return nil
	})
	g.Go(func() error {
		subs, err := h.client.ListSubscriptions(r.Context(), api.ListParams{})
		page.Subscriptions, subErr = subs.Items, err
		return nil
	})
	g.Go(func() error {
		orders, err := h.client.ListOrders(r.Context(), api.ListParams{})
		page.Orders, ordErr = orders.Items, err
		return nil
	})
	_ = g.Wait()

	for _, err := range []error{profErr, subErr, ordErr} {
		if err == nil {
			continue
		}
		if isUnauthorized(err) {
			h.toLogin(w, r)
			return
		}
		page.Errors = append(page.Errors, userMessage(err))
	}
	if profErr != nil {
		if user, ok := h.store.CurrentUser(); ok {
			page.Profile = user
		}
	}
	h.render(w, r, http.StatusOK, "pages/account.html", "My account", page)
}

func (h *Handler) cart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.client.GetCart(r.Context())
	if err != nil {
		h.fail(w, r, err, h.routes.UserHome)
		return
	}
	page := cartPage{Currency: cart.Currency}
	if page.Currency == "" {
		page.Currency = pricing.DefaultCurrency
	}
	lines := make([]pricing.Line, 0, len(cart.Items))
	for _, item := range cart.Items {
		line := pricing.Line{
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
			TaxPercent:      item.TaxPercent,
		}
		lines = append(lines, line)
		page.Lines = append(page.Lines, cartLine{Item: item, LineTotal: pricing.CartTotals([]pricing.Line{line}).Total})
	}
	page.Totals = pricing.CartTotals(lines)
	h.render(w, r, http.StatusOK, "pages/cart.html", "Cart", page)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	back := h.routes.UserHome + "/cart"
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := h.client.RemoveCartItem(r.Context(), id); err != nil {
		h.fail(w, r, err, back)
		return
	}
	h.flashes.Add(shared.FlashSuccess, "Item removed.")
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	back := h.routes.UserHome + "/cart"
	order, err := h.client.Checkout(r.Context())
	if err != nil {
		h.fail(w, r, err, back)
		return
	}
	h.logger.Info("order placed", slog.Int64("order_id", order.ID))
	intent, err := h.client.CreatePaymentIntent(r.Context(), order.ID)
	if err != nil {
		h.flashes.Add(shared.FlashInfo, fmt.Sprintf("Order #%d placed. Payment could not be started.", order.ID))
		h.fail(w, r, err, h.routes.UserHome)
		return
	}
	h.flashes.Add(shared.FlashSuccess, fmt.Sprintf("Order #%d placed.", order.ID))
	h.render(w, r, http.StatusOK, "pages/payment.html", "Payment", paymentPage{Order: order, Intent: intent})
}
