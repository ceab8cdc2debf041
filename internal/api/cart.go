package api

import (
	"context"
	"net/http"

	"github.com/odyssey-erp/odyssey-console/internal/querycache"
)

// CartItem is one line of the cart.
type CartItem struct {
	ID              int64   `json:"id"`
	ProductID       int64   `json:"product_id"`
	ProductName     string  `json:"product_name"`
	Quantity        int     `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountPercent float64 `json:"discount_percent,omitempty"`
	TaxPercent      float64 `json:"tax_percent,omitempty"`
}

// Cart is the session user's cart.
type Cart struct {
	ID       int64      `json:"id"`
	Currency string     `json:"currency,omitempty"`
	Items    []CartItem `json:"items"`
}

// CartItemInput adds a product to the cart.
type CartItemInput struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0,lte=1000"`
}

// GetCart fetches the cart.
func (c *Client) GetCart(ctx context.Context) (Cart, error) {
	return query(ctx, c, "getCart", "/cart", nil, nil, func(Cart) []querycache.Tag {
		return []querycache.Tag{querycache.TypeTag(KindCart)}
	})
}

// AddCartItem adds quantity of a product to the cart.
func (c *Client) AddCartItem(ctx context.Context, in CartItemInput) (Cart, error) {
	if err := validateInput(in); err != nil {
		return Cart{}, err
	}
	var out Cart
	err := mutate(ctx, c, "addCartItem", http.MethodPost, "/cart/items", 0, in, &out)
	return out, err
}

// RemoveCartItem drops one line from the cart.
func (c *Client) RemoveCartItem(ctx context.Context, itemID int64) error {
	return mutate(ctx, c, "removeCartItem", http.MethodDelete, idPath("/cart/items", itemID), 0, nil, nil)
}

// ClearCart empties the cart.
func (c *Client) ClearCart(ctx context.Context) error {
	return mutate(ctx, c, "clearCart", http.MethodDelete, "/cart", 0, nil, nil)
}
