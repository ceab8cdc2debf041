package api

import (
	"context"
	"net/http"

	"github.com/odyssey-erp/odyssey-console/internal/querycache"
)

// Product is a sellable item. Recurring products carry a billing interval.
type Product struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency,omitempty"`
	TaxPercent      float64 `json:"tax_percent,omitempty"`
	Stock           int     `json:"stock"`
	IsRecurring     bool    `json:"is_recurring"`
	BillingInterval string  `json:"billing_interval,omitempty"`
}

// ProductInput creates or updates a product.
type ProductInput struct {
	Name            string  `json:"name" validate:"required,max=255"`
	Description     string  `json:"description,omitempty" validate:"max=2000"`
	Price           float64 `json:"price" validate:"gte=0"`
	Currency        string  `json:"currency,omitempty" validate:"omitempty,len=3"`
	TaxPercent      float64 `json:"tax_percent,omitempty" validate:"gte=0,lte=100"`
	Stock           int     `json:"stock" validate:"gte=0"`
	IsRecurring     bool    `json:"is_recurring"`
	BillingInterval string  `json:"billing_interval,omitempty" validate:"omitempty,oneof=monthly quarterly yearly"`
}

func (in ProductInput) validate() error {
	if err := validateInput(in); err != nil {
		return err
	}
	if in.IsRecurring && in.BillingInterval == "" {
		return FieldErrors{"BillingInterval": "is required for recurring products"}
	}
	return nil
}

func productTag(p Product) []querycache.Tag {
	return []querycache.Tag{querycache.IDTag(KindProduct, p.ID)}
}

// ListProducts pages through products.
func (c *Client) ListProducts(ctx context.Context, params ListParams) (Page[Product], error) {
	params = params.Normalize()
	return query(ctx, c, "listProducts", "/products", params, params.Values(), func(p Page[Product]) []querycache.Tag {
		return listTags(KindProduct, p, func(pr Product) int64 { return pr.ID })
	})
}

// GetProduct fetches one product.
func (c *Client) GetProduct(ctx context.Context, id int64) (Product, error) {
	return query(ctx, c, "getProduct", idPath("/products", id), id, nil, productTag)
}

// CreateProduct adds a product.
func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := in.validate(); err != nil {
		return Product{}, err
	}
	var out Product
	err := mutate(ctx, c, "createProduct", http.MethodPost, "/products", 0, in, &out)
	return out, err
}

// UpdateProduct replaces a product's fields.
func (c *Client) UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error) {
	if err := in.validate(); err != nil {
		return Product{}, err
	}
	var out Product
	err := mutate(ctx, c, "updateProduct", http.MethodPut, idPath("/products", id), id, in, &out)
	return out, err
}

// DeleteProduct removes a product.
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return mutate(ctx, c, "deleteProduct", http.MethodDelete, idPath("/products", id), id, nil, nil)
}
