package api

import (
	"context"
	"net/http"

	"github.com/odyssey-erp/odyssey-console/internal/querycache"
)

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// Order is a checked-out cart.
type Order struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"user_id"`
	Status    string      `json:"status"`
	Total     float64     `json:"total"`
	Currency  string      `json:"currency,omitempty"`
	Items     []OrderItem `json:"items,omitempty"`
	CreatedAt string      `json:"created_at,omitempty"`
}

// ListOrders pages through orders visible to the session.
func (c *Client) ListOrders(ctx context.Context, params ListParams) (Page[Order], error) {
	params = params.Normalize()
	return query(ctx, c, "listOrders", "/orders", params, params.Values(), func(p Page[Order]) []querycache.Tag {
		return listTags(KindOrder, p, func(o Order) int64 { return o.ID })
	})
}

// GetOrder fetches one order.
func (c *Client) GetOrder(ctx context.Context, id int64) (Order, error) {
	return query(ctx, c, "getOrder", idPath("/orders", id), id, nil, func(o Order) []querycache.Tag {
		return []querycache.Tag{querycache.IDTag(KindOrder, o.ID)}
	})
}

// Checkout turns the cart into an order.
func (c *Client) Checkout(ctx context.Context) (Order, error) {
	var out Order
	err := mutate(ctx, c, "checkout", http.MethodPost, "/orders/checkout", 0, nil, &out)
	return out, err
}
