package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/odyssey-erp/odyssey-console/internal/session"
)

// ErrNoSession is returned by Refetch when nobody is logged in.
var ErrNoSession = errors.New("rbac: no session")

// State is the resolver's loading state.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	}
	return "unloaded"
}

// RightsSource fetches the rights rows of a user. RefreshUserRights must
// bypass any cache.
type RightsSource interface {
	UserRights(ctx context.Context, userID int64) ([]RightsEntry, error)
	RefreshUserRights(ctx context.Context, userID int64) ([]RightsEntry, error)
}

// RightsSubscriber is implemented by sources that cache rights. The resolver
// holds a subscription on the rights backing its map.
type RightsSubscriber interface {
	SubscribeUserRights(userID int64) (release func())
}

// Resolver resolves the current user's rights into a Map and answers
// per-module permission queries.
type Resolver struct {
	source  RightsSource
	session *session.Store
	logger  *slog.Logger

	mu    sync.RWMutex
	state State
	perms Map
	err   error
	// seq identifies the latest load; older loads finishing late are ignored.
	seq uint64

	heldUser int64
	release  func()
}

// NewResolver builds an unloaded Resolver.
func NewResolver(source RightsSource, store *session.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{source: source, session: store, logger: logger}
}

// Mount resolves rights for the current session user. Without a session user
// it resets to Unloaded and makes no request.
func (r *Resolver) Mount(ctx context.Context) error {
	user, ok := r.session.CurrentUser()
	if !ok {
		r.reset()
		return nil
	}
	return r.load(ctx, user.ID, r.source.UserRights)
}

// Refetch forces a fresh read, for example after a role change.
func (r *Resolver) Refetch(ctx context.Context) error {
	user, ok := r.session.CurrentUser()
	if !ok {
		r.reset()
		return ErrNoSession
	}
	return r.load(ctx, user.ID, r.source.RefreshUserRights)
}

func (r *Resolver) load(ctx context.Context, userID int64, fetch func(context.Context, int64) ([]RightsEntry, error)) error {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.state = StateLoading
	r.err = nil
	r.mu.Unlock()

	entries, err := fetch(ctx, userID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seq != seq {
		return nil
	}
	if err != nil {
		r.state = StateUnloaded
		r.perms = nil
		r.err = err
		r.releaseLocked()
		r.logger.Warn("resolve rights", slog.Int64("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("rbac: resolve rights: %w", err)
	}
	r.perms = BuildMap(entries)
	r.state = StateReady
	r.holdLocked(userID)
	return nil
}

func (r *Resolver) reset() {
	r.mu.Lock()
	r.seq++
	r.state = StateUnloaded
	r.perms = nil
	r.err = nil
	r.releaseLocked()
	r.mu.Unlock()
}

func (r *Resolver) holdLocked(userID int64) {
	if r.release != nil && r.heldUser == userID {
		return
	}
	r.releaseLocked()
	if sub, ok := r.source.(RightsSubscriber); ok {
		r.release = sub.SubscribeUserRights(userID)
		r.heldUser = userID
	}
}

func (r *Resolver) releaseLocked() {
	if r.release != nil {
		r.release()
		r.release = nil
	}
}

// ModulePermissions returns the stored permissions of moduleKey, or NoAccess
// when the key is unknown or nothing has been resolved. During a refetch the
// previous map keeps answering. It never fails.
func (r *Resolver) ModulePermissions(moduleKey string) Permissions {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.perms.Lookup(moduleKey)
}

// Permissions returns a copy of the resolved map.
func (r *Resolver) Permissions() Map {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(Map, len(r.perms))
	for k, v := range r.perms {
		out[k] = v
	}
	return out
}

// State reports the loading state.
func (r *Resolver) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Err returns the error of the last failed load.
func (r *Resolver) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}
