package api

import (
	"context"
	"net/http"

	"github.com/odyssey-erp/odyssey-console/internal/querycache"
)

// Subscription is a recurring purchase of a product.
type Subscription struct {
	ID              int64   `json:"id"`
	UserID          int64   `json:"user_id"`
	ProductID       int64   `json:"product_id"`
	ProductName     string  `json:"product_name,omitempty"`
	Interval        string  `json:"interval"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency,omitempty"`
	Cycles          int     `json:"cycles,omitempty"`
	Status          string  `json:"status"`
	StartDate       string  `json:"start_date,omitempty"`
	NextBillingDate string  `json:"next_billing_date,omitempty"`
}

// SubscriptionInput starts a subscription. Zero Cycles means open-ended.
type SubscriptionInput struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Interval  string `json:"interval" validate:"required,oneof=monthly quarterly yearly"`
	Cycles    int    `json:"cycles,omitempty" validate:"gte=0,lte=120"`
}

// ListSubscriptions pages through subscriptions visible to the session.
func (c *Client) ListSubscriptions(ctx context.Context, params ListParams) (Page[Subscription], error) {
	params = params.Normalize()
	return query(ctx, c, "listSubscriptions", "/subscriptions", params, params.Values(), func(p Page[Subscription]) []querycache.Tag {
		return listTags(KindSubscription, p, func(s Subscription) int64 { return s.ID })
	})
}

// GetSubscription fetches one subscription.
func (c *Client) GetSubscription(ctx context.Context, id int64) (Subscription, error) {
	return query(ctx, c, "getSubscription", idPath("/subscriptions", id), id, nil, func(s Subscription) []querycache.Tag {
		return []querycache.Tag{querycache.IDTag(KindSubscription, s.ID)}
	})
}

// CreateSubscription subscribes the session user to a product.
func (c *Client) CreateSubscription(ctx context.Context, in SubscriptionInput) (Subscription, error) {
	if err := validateInput(in); err != nil {
		return Subscription{}, err
	}
	var out Subscription
	err := mutate(ctx, c, "createSubscription", http.MethodPost, "/subscriptions", 0, in, &out)
	return out, err
}

// CancelSubscription stops future billing of a subscription.
func (c *Client) CancelSubscription(ctx context.Context, id int64) (Subscription, error) {
	var out Subscription
	err := mutate(ctx, c, "cancelSubscription", http.MethodPost, idPath("/subscriptions", id, "cancel"), id, nil, &out)
	return out, err
}
