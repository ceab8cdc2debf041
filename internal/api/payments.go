package api

import (
	"context"
	"net/http"

	"github.com/odyssey-erp/odyssey-console/internal/querycache"
)

// Payment is a recorded payment attempt.
type Payment struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency,omitempty"`
	Status    string  `json:"status"`
	Provider  string  `json:"provider,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

// PaymentIntent is what the payment provider's client SDK needs to confirm a
// payment. PublishableKey comes from configuration, not from the backend.
type PaymentIntent struct {
	PaymentID      int64   `json:"payment_id"`
	ClientSecret   string  `json:"client_secret"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency,omitempty"`
	PublishableKey string  `json:"-"`
}

type paymentIntentInput struct {
	OrderID int64 `json:"order_id" validate:"required,gt=0"`
}

// ListPayments pages through payments visible to the session.
func (c *Client) ListPayments(ctx context.Context, params ListParams) (Page[Payment], error) {
	params = params.Normalize()
	return query(ctx, c, "listPayments", "/payments", params, params.Values(), func(p Page[Payment]) []querycache.Tag {
		return listTags(KindPayment, p, func(pm Payment) int64 { return pm.ID })
	})
}

// CreatePaymentIntent starts paying an order.
func (c *Client) CreatePaymentIntent(ctx context.Context, orderID int64) (PaymentIntent, error) {
	in := paymentIntentInput{OrderID: orderID}
	if err := validateInput(in); err != nil {
		return PaymentIntent{}, err
	}
	var out PaymentIntent
	if err := mutate(ctx, c, "createPaymentIntent", http.MethodPost, "/payments/intent", 0, in, &out); err != nil {
		return PaymentIntent{}, err
	}
	out.PublishableKey = c.publishableKey
	return out, nil
}
