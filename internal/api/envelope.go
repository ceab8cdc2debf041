package api

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// Page is the paginated list envelope {items, total?}. When the backend
// leaves total out it equals len(Items).
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func (p *Page[T]) UnmarshalJSON(data []byte) error {
	var wire struct {
		Items []T  `json:"items"`
		Total *int `json:"total"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	p.Items = wire.Items
	if p.Items == nil {
		p.Items = []T{}
	}
	p.Total = len(p.Items)
	if wire.Total != nil {
		p.Total = *wire.Total
	}
	return nil
}

// ListParams narrows a list query.
type ListParams struct {
	Page   int    `json:"page,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Search string `json:"search,omitempty"`
}

// DefaultLimit is used when ListParams.Limit is zero.
const DefaultLimit = 20

// Normalize fills defaults: page 1, DefaultLimit, trimmed search.
func (p ListParams) Normalize() ListParams {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	p.Search = strings.TrimSpace(p.Search)
	return p
}

// Values encodes the params as a query string.
func (p ListParams) Values() url.Values {
	p = p.Normalize()
	v := url.Values{}
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("limit", strconv.Itoa(p.Limit))
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	return v
}
