// Package api is the typed client of the backend REST endpoints. Reads go
// through the query cache; writes invalidate it by tag.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-console/internal/querycache"
	"github.com/odyssey-erp/odyssey-console/internal/session"
)

const maxResponseBytes = 4 << 20

// RequestObserver receives one call per finished request. Status is zero
// when no response arrived.
type RequestObserver interface {
	ObserveRequest(endpoint string, status int, elapsed time.Duration)
}

// UnauthorizedHook runs after a 401 has cleared the session.
type UnauthorizedHook func(ctx context.Context, err *Error)

// Options configures a Client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Timeout        time.Duration
	Session        *session.Store
	Cache          *querycache.Cache
	Logger         *slog.Logger
	Observer       RequestObserver
	PublishableKey string
}

// Client talks to the backend on behalf of the current session.
type Client struct {
	baseURL        *url.URL
	http           *http.Client
	session        *session.Store
	cache          *querycache.Cache
	logger         *slog.Logger
	observer       RequestObserver
	publishableKey string

	hooksMu sync.RWMutex
	hooks   []UnauthorizedHook
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	if opts.Session == nil {
		return nil, errors.New("api: session store required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: base url %q must be http or https", opts.BaseURL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	cache := opts.Cache
	if cache == nil {
		cache = querycache.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:        base,
		http:           httpClient,
		session:        opts.Session,
		cache:          cache,
		logger:         logger,
		observer:       opts.Observer,
		publishableKey: opts.PublishableKey,
	}, nil
}

// Cache exposes the query cache for inspection.
func (c *Client) Cache() *querycache.Cache { return c.cache }

// OnUnauthorized registers a hook run after any authenticated call is
// answered with 401. Hooks run in registration order, after the session has
// been cleared and before the failing call returns.
func (c *Client) OnUnauthorized(hook UnauthorizedHook) {
	c.hooksMu.Lock()
	c.hooks = append(c.hooks, hook)
	c.hooksMu.Unlock()
}

type call struct {
	endpoint      string
	method        string
	path          string
	query         url.Values
	body          any
	authenticated bool
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	target := c.baseURL.JoinPath(cl.path)
	if len(cl.query) > 0 {
		target.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		raw, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("api: encode %s: %w", cl.endpoint, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, target.String(), body)
	if err != nil {
		return fmt.Errorf("api: build %s: %w", cl.endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	if cl.authenticated {
		if token := c.session.AuthToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(cl.endpoint, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &Error{Endpoint: cl.endpoint, Message: err.Error(), kind: ErrNetwork}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.observe(cl.endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return &Error{Endpoint: cl.endpoint, Status: resp.StatusCode, Message: err.Error(), kind: ErrNetwork}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := newError(cl.endpoint, resp.StatusCode, raw)
		if resp.StatusCode == http.StatusUnauthorized && cl.authenticated {
			c.handleUnauthorized(ctx, apiErr)
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("api: decode %s: %w", cl.endpoint, err)
	}
	return nil
}

// handleUnauthorized is the single place a response forces a logout. The
// logout and cache reset complete before any hook or caller sees the error.
func (c *Client) handleUnauthorized(ctx context.Context, apiErr *Error) {
	c.logger.Warn("session rejected by backend", slog.String("endpoint", apiErr.Endpoint))
	if err := c.session.Logout(context.WithoutCancel(ctx)); err != nil {
		c.logger.Warn("forced logout", slog.Any("error", err))
	}
	c.cache.Reset()

	c.hooksMu.RLock()
	hooks := append([]UnauthorizedHook(nil), c.hooks...)
	c.hooksMu.RUnlock()
	for _, hook := range hooks {
		hook(ctx, apiErr)
	}
}

func (c *Client) observe(endpoint string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(endpoint, status, elapsed)
	}
}

// query runs a cached GET. provides reports the tags of the decoded result.
func query[T any](ctx context.Context, c *Client, endpoint, path string, args any, params url.Values, provides func(T) []querycache.Tag) (T, error) {
	return cachedGet(ctx, c, false, endpoint, path, args, params, provides)
}

// refetch is query that ignores any cached value.
func refetch[T any](ctx context.Context, c *Client, endpoint, path string, args any, params url.Values, provides func(T) []querycache.Tag) (T, error) {
	return cachedGet(ctx, c, true, endpoint, path, args, params, provides)
}

func cachedGet[T any](ctx context.Context, c *Client, fresh bool, endpoint, path string, args any, params url.Values, provides func(T) []querycache.Tag) (T, error) {
	var zero T
	key := querycache.Key(endpoint, args)
	load := func(ctx context.Context) (any, []querycache.Tag, error) {
		var out T
		err := c.do(ctx, call{endpoint: endpoint, method: http.MethodGet, path: path, query: params, authenticated: true}, &out)
		if err != nil {
			return nil, nil, err
		}
		return out, provides(out), nil
	}
	var (
		v   any
		err error
	)
	if fresh {
		v, err = c.cache.Refresh(ctx, key, load)
	} else {
		v, err = c.cache.Fetch(ctx, key, load)
	}
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("api: cached %s has type %T", endpoint, v)
	}
	return out, nil
}

// mutate runs an authenticated write and, on success, invalidates the tags
// Mutations lists for endpoint.
func mutate(ctx context.Context, c *Client, endpoint, method, path string, id int64, body, out any) error {
	err := c.do(ctx, call{endpoint: endpoint, method: method, path: path, body: body, authenticated: true}, out)
	if err != nil {
		return err
	}
	m, ok := Mutations[endpoint]
	if !ok {
		c.logger.Warn("mutation without invalidation entry", slog.String("endpoint", endpoint))
		return nil
	}
	if evicted := c.cache.Invalidate(m.Tags(id)...); len(evicted) > 0 {
		c.logger.Debug("cache invalidated", slog.String("endpoint", endpoint), slog.Any("keys", evicted))
	}
	return nil
}

func idPath(prefix string, id int64, suffix ...string) string {
	p := fmt.Sprintf("%s/%d", prefix, id)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}
