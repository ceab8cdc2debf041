package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	User            *User
	Token           string
	IsAuthenticated bool
}

// HasCandidateToken reports a token that has not been confirmed by the
// backend yet, typically one hydrated from storage after a restart.
func (s Snapshot) HasCandidateToken() bool {
	return s.Token != "" && s.User == nil
}

// Store is the single source of truth for who is logged in. Only the
// Store's own methods mutate it; readers go through the selectors.
type Store struct {
	mu            sync.RWMutex
	user          *User
	token         string
	authenticated bool

	storage TokenStorage
	logger  *slog.Logger
}

// NewStore constructs an empty Store persisting its token to storage.
func NewStore(storage TokenStorage, logger *slog.Logger) *Store {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{storage: storage, logger: logger}
}

// Hydrate loads the persisted token as a candidate session. The user stays
// unknown and the session unauthenticated until the token is validated.
func (s *Store) Hydrate(ctx context.Context) (string, error) {
	token, err := s.storage.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("session: hydrate: %w", err)
	}
	s.mu.Lock()
	s.user = nil
	s.token = token
	s.authenticated = false
	s.mu.Unlock()
	return token, nil
}

// SetCredentials overwrites the session with a fresh login result and
// persists the token. The in-memory state is updated even when persisting
// fails; the persistence error is returned to the caller.
func (s *Store) SetCredentials(ctx context.Context, user User, token string) error {
	u := user
	s.mu.Lock()
	s.user = &u
	s.token = token
	s.authenticated = true
	s.mu.Unlock()

	if err := s.storage.Save(ctx, token); err != nil {
		s.logger.Warn("persist session token", slog.Any("error", err))
		return fmt.Errorf("session: persist token: %w", err)
	}
	return nil
}

// SetUser replaces the user of the current session. It does nothing when no
// token is held.
func (s *Store) SetUser(user User) {
	u := user
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return
	}
	s.user = &u
	s.authenticated = true
}

// ConfirmUser attaches user to the session only while token is still the
// current token. It reports whether the session was updated.
func (s *Store) ConfirmUser(token string, user User) bool {
	u := user
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" || s.token != token {
		return false
	}
	s.user = &u
	s.authenticated = true
	return true
}

// Revoke logs out only while token is still the current token. It reports
// whether the session was cleared.
func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	if token == "" || s.token != token {
		s.mu.Unlock()
		return false, nil
	}
	s.user = nil
	s.token = ""
	s.authenticated = false
	s.mu.Unlock()

	if err := s.storage.Clear(ctx); err != nil {
		s.logger.Warn("clear session token", slog.Any("error", err))
		return true, fmt.Errorf("session: clear token: %w", err)
	}
	return true, nil
}

// Logout clears the session and the persisted token. Calling it again is
// harmless.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.authenticated = false
	s.mu.Unlock()

	if err := s.storage.Clear(ctx); err != nil {
		s.logger.Warn("clear session token", slog.Any("error", err))
		return fmt.Errorf("session: clear token: %w", err)
	}
	return nil
}

// CurrentUser returns the logged in user, if any.
func (s *Store) CurrentUser() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// AuthToken returns the current token or an empty string.
func (s *Store) AuthToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated reports whether a confirmed session exists.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Snapshot returns a copy of the whole state under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Token: s.token, IsAuthenticated: s.authenticated}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}
