package console

import (
	"context"
	"fmt"
	"strconv"

	"github.com/odyssey-erp/odyssey-console/internal/api"
	"github.com/odyssey-erp/odyssey-console/internal/session"
)

// resource is one list page of the staff console. Key doubles as the rights
// module key and the URL segment.
type resource struct {
	Key     string
	Title   string
	Columns []string
	list    func(ctx context.Context, c *api.Client, p api.ListParams, money moneyFunc) ([]row, int, error)
	remove  func(ctx context.Context, c *api.Client, id int64) error
}

type row struct {
	ID    int64
	Cells []string
}

func pageRows[T any](page api.Page[T], err error, id func(T) int64, cells func(T) []string) ([]row, int, error) {
	if err != nil {
		return nil, 0, err
	}
	rows := make([]row, 0, len(page.Items))
	for _, item := range page.Items {
		rows = append(rows, row{ID: id(item), Cells: cells(item)})
	}
	return rows, page.Total, nil
}

// moneyFunc renders an amount in a currency.
type moneyFunc func(amount float64, currency string) string

var resources = []resource{
	{
		Key: "clients", Title: "Clients",
		Columns: []string{"#", "Name", "Company", "Email", "Phone"},
		list: func(ctx context.Context, c *api.Client, p api.ListParams, money moneyFunc) ([]row, int, error) {
			page, err := c.ListClients(ctx, p)
			return pageRows(page, err, func(b api.BusinessClient) int64 { return b.ID }, func(b api.BusinessClient) []string {
				return []string{strconv.FormatInt(b.ID, 10), b.Name, b.Company, b.Email, b.Phone}
			})
		},
		remove: func(ctx context.Context, c *api.Client, id int64) error { return c.DeleteClient(ctx, id) },
	},
	{
		Key: "employees", Title: "Employees",
		Columns: []string{"#", "Name", "Email", "Position", "Department"},
		list: func(ctx context.Context, c *api.Client, p api.ListParams, money moneyFunc) ([]row, int, error) {
			page, err := c.ListEmployees(ctx, p)
			return pageRows(page, err, func(e api.Employee) int64 { return e.ID }, func(e api.Employee) []string {
				return []string{strconv.FormatInt(e.ID, 10), e.Name, e.Email, e.Position, e.Department}
			})
		},
		remove: func(ctx context.Context, c *api.Client, id int64) error { return c.DeleteEmployee(ctx, id) },
	},
	{
		Key: "users", Title: "Users",
		Columns: []string{"#", "Name", "Email", "Role"},
		list: func(ctx context.Context, c *api.Client, p api.ListParams, money moneyFunc) ([]row, int, error) {
			page, err := c.ListUsers(ctx, p)
			return pageRows(page, err, func(u session.User) int64 { return u.ID }, func(u session.User) []string {
				return []string{strconv.FormatInt(u.ID, 10), u.Name, u.Email, u.Role.String()}
			})
		},
	},
	{
		Key: "products", Title: "Products",
		Columns: []string{"#", "Name", "Price", "Stock", "Billing"},
		list: func(ctx context.Context, c *api.Client, p api.ListParams, money moneyFunc) ([]row, int, error) {
			page, err := c.ListProducts(ctx, p)
			return pageRows(page, err, func(pr api.Product) int64 { return pr.ID }, func(pr api.Product) []string {
				billing := "one-off"
				if pr.IsRecurring {
					billing = pr.BillingInterval
				}
				return []string{strconv.FormatInt(pr.ID, 10), pr.Name, money(pr.Price, pr.Currency), strconv.Itoa(pr.Stock), billing}
			})
		},
		remove: func(ctx context.Context, c *api.Client, id int64) error { return c.DeleteProduct(ctx, id) },
	},
	{
		Key: "subscriptions", Title: "Subscriptions",
		Columns: []string{"#", "User", "Product", "Interval", "Price", "Status", "Next billing"},
		list: func(ctx context.Context, c *api.Client, p api.ListParams, money moneyFunc) ([]row, int, error) {
			page, err := c.ListSubscriptions(ctx, p)
			return pageRows(page, err, func(s api.Subscription) int64 { return s.ID }, func(s api.Subscription) []string {
				return []string{strconv.FormatInt(s.ID, 10), strconv.FormatInt(s.UserID, 10), productLabel(s.ProductName, s.ProductID), s.Interval, money(s.Price, s.Currency), s.Status, s.NextBillingDate}
			})
		},
		remove: func(ctx context.Context, c *api.Client, id int64) error {
			_, err := c.CancelSubscription(ctx, id)
			return err
		},
	},
	{
		Key: "orders", Title: "Orders",
		Columns: []string{"#", "User", "Status", "Total", "Placed"},
		list: func(ctx context.Context, c *api.Client, p api.ListParams, money moneyFunc) ([]row, int, error) {
			page, err := c.ListOrders(ctx, p)
			return pageRows(page, err, func(o api.Order) int64 { return o.ID }, func(o api.Order) []string {
				return []string{strconv.FormatInt(o.ID, 10), strconv.FormatInt(o.UserID, 10), o.Status, money(o.Total, o.Currency), o.CreatedAt}
			})
		},
	},
	{
		Key: "payments", Title: "Payments",
		Columns: []string{"#", "Order", "Amount", "Status", "Provider", "Created"},
		list: func(ctx context.Context, c *api.Client, p api.ListParams, money moneyFunc) ([]row, int, error) {
			page, err := c.ListPayments(ctx, p)
			return pageRows(page, err, func(pm api.Payment) int64 { return pm.ID }, func(pm api.Payment) []string {
				return []string{strconv.FormatInt(pm.ID, 10), strconv.FormatInt(pm.OrderID, 10), money(pm.Amount, pm.Currency), pm.Status, pm.Provider, pm.CreatedAt}
			})
		},
	},
}

func lookupResource(key string) (resource, bool) {
	for _, res := range resources {
		if res.Key == key {
			return res, true
		}
	}
	return resource{}, false
}

func productLabel(name string, id int64) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("product #%d", id)
}
