package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-console/internal/session"
)

func TestProductInputRequiresIntervalWhenRecurring(t *testing.T) {
	client, store := newTestClient(t, http.NotFoundHandler())
	signedIn(t, store)
	_, err := client.CreateProduct(context.Background(), ProductInput{Name: "Plan", Price: 10, Currency: "USD", IsRecurring: true})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCheckoutInvalidatesCartAndOrders(t *testing.T) {
	var cartHits, orderHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /cart", func(w http.ResponseWriter, r *http.Request) {
		cartHits.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "items": []map[string]any{{"id": 5, "product_id": 2, "quantity": 1, "unit_price": 9.5}}})
	})
	mux.HandleFunc("GET /orders", func(w http.ResponseWriter, r *http.Request) {
		orderHits.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
	})
	mux.HandleFunc("POST /orders/checkout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"id": 11, "status": "pending", "total": 9.5})
	})
	client, store := newTestClient(t, mux)
	signedIn(t, store)
	ctx := context.Background()

	cart, err := client.GetCart(ctx)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	_, err = client.ListOrders(ctx, ListParams{})
	require.NoError(t, err)

	order, err := client.Checkout(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(11), order.ID)

	_, err = client.GetCart(ctx)
	require.NoError(t, err)
	_, err = client.ListOrders(ctx, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), cartHits.Load())
	assert.Equal(t, int32(2), orderHits.Load())
}

func TestCreatePaymentIntentCarriesPublishableKey(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]int64
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(11), body["order_id"])
		writeJSON(w, http.StatusOK, map[string]any{"payment_id": 2, "client_secret": "cs_1", "amount": 9.5})
	}))
	signedIn(t, store)
	intent, err := client.CreatePaymentIntent(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", intent.ClientSecret)
	assert.Equal(t, "pk_test", intent.PublishableKey)
}

func TestCancelSubscriptionPath(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/subscriptions/4/cancel", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"id": 4, "status": "cancelled"})
	}))
	signedIn(t, store)
	sub, err := client.CancelSubscription(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", sub.Status)
}

func TestSubscriptionInputValidation(t *testing.T) {
	client, store := newTestClient(t, http.NotFoundHandler())
	signedIn(t, store)
	_, err := client.CreateSubscription(context.Background(), SubscriptionInput{ProductID: 1, Interval: "weekly"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateProfileRefreshesSessionUser(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "name": "Ada L.", "email": "ada@example.com", "role": "ADMIN", "role_id": 1})
	}))
	signedIn(t, store)
	_, err := client.UpdateProfile(context.Background(), ProfileInput{Name: "Ada L.", Email: "ada@example.com"})
	require.NoError(t, err)
	u, ok := store.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "Ada L.", u.Name)
	assert.Equal(t, session.RoleAdmin, u.Role)
}

func TestUpdateUserRoleSendsBothEncodings(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/users/8/role", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "EMPLOYEE", body["role"])
		assert.EqualValues(t, 2, body["role_id"])
		w.WriteHeader(http.StatusNoContent)
	}))
	signedIn(t, store)
	require.NoError(t, client.UpdateUserRole(context.Background(), 8, session.RoleEmployee))
	require.ErrorIs(t, client.UpdateUserRole(context.Background(), 8, session.Role(9)), ErrValidation)
}
