package rbac

import (
	"context"
	"fmt"
	"strings"
)

type resolverContextKey struct{}

// WithResolver mounts r as the permission provider for ctx.
func WithResolver(ctx context.Context, r *Resolver) context.Context {
	return context.WithValue(ctx, resolverContextKey{}, r)
}

// FromContext returns the mounted resolver, if any.
func FromContext(ctx context.Context) *Resolver {
	r, _ := ctx.Value(resolverContextKey{}).(*Resolver)
	return r
}

// Policy decides what a permission query answers when no resolver is
// mounted.
type Policy int

const (
	// FailOpen grants FullAccess without a provider. This is the historical
	// behaviour and the default.
	FailOpen Policy = iota
	// FailClosed answers NoAccess without a provider.
	FailClosed
)

// ParsePolicy accepts "open" or "closed".
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "open":
		return FailOpen, nil
	case "closed":
		return FailClosed, nil
	}
	return FailOpen, fmt.Errorf("rbac: unknown unwired policy %q", name)
}

func (p Policy) String() string {
	if p == FailClosed {
		return "closed"
	}
	return "open"
}

// Gate answers permission queries for whatever resolver ctx carries.
type Gate struct {
	Unwired Policy
}

// ModulePermissions asks the mounted resolver about moduleKey. Without one
// the answer depends on g.Unwired.
func (g Gate) ModulePermissions(ctx context.Context, moduleKey string) Permissions {
	if r := FromContext(ctx); r != nil {
		return r.ModulePermissions(moduleKey)
	}
	if g.Unwired == FailClosed {
		return NoAccess
	}
	return FullAccess
}

// Can is shorthand for ModulePermissions(ctx, moduleKey).Allows(a).
func (g Gate) Can(ctx context.Context, moduleKey string, a Action) bool {
	return g.ModulePermissions(ctx, moduleKey).Allows(a)
}
