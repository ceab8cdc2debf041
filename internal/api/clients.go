package api

import (
	"context"
	"net/http"

	"github.com/odyssey-erp/odyssey-console/internal/querycache"
)

// BusinessClient is a customer record of the business.
type BusinessClient struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Company   string `json:"company,omitempty"`
	Address   string `json:"address,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ClientInput creates or updates a client.
type ClientInput struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty" validate:"max=40"`
	Company string `json:"company,omitempty" validate:"max=255"`
	Address string `json:"address,omitempty" validate:"max=500"`
}

func clientTag(c BusinessClient) []querycache.Tag {
	return []querycache.Tag{querycache.IDTag(KindClient, c.ID)}
}

// ListClients pages through clients.
func (c *Client) ListClients(ctx context.Context, params ListParams) (Page[BusinessClient], error) {
	params = params.Normalize()
	return query(ctx, c, "listClients", "/clients", params, params.Values(), func(p Page[BusinessClient]) []querycache.Tag {
		return listTags(KindClient, p, func(b BusinessClient) int64 { return b.ID })
	})
}

// GetClient fetches one client.
func (c *Client) GetClient(ctx context.Context, id int64) (BusinessClient, error) {
	return query(ctx, c, "getClient", idPath("/clients", id), id, nil, clientTag)
}

// CreateClient adds a client.
func (c *Client) CreateClient(ctx context.Context, in ClientInput) (BusinessClient, error) {
	if err := validateInput(in); err != nil {
		return BusinessClient{}, err
	}
	var out BusinessClient
	err := mutate(ctx, c, "createClient", http.MethodPost, "/clients", 0, in, &out)
	return out, err
}

// UpdateClient replaces a client's fields.
func (c *Client) UpdateClient(ctx context.Context, id int64, in ClientInput) (BusinessClient, error) {
	if err := validateInput(in); err != nil {
		return BusinessClient{}, err
	}
	var out BusinessClient
	err := mutate(ctx, c, "updateClient", http.MethodPut, idPath("/clients", id), id, in, &out)
	return out, err
}

// DeleteClient removes a client.
func (c *Client) DeleteClient(ctx context.Context, id int64) error {
	return mutate(ctx, c, "deleteClient", http.MethodDelete, idPath("/clients", id), id, nil, nil)
}
