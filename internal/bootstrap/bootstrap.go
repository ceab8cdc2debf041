// Package bootstrap validates a persisted token once at startup before any
// guarded route trusts it.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/odyssey-erp/odyssey-console/internal/api"
	"github.com/odyssey-erp/odyssey-console/internal/session"
)

// Status is the progress of the startup validation.
type Status int32

const (
	// Unresolved means Run has not started.
	Unresolved Status = iota
	// Pending means a stored token is being validated.
	Pending
	// Present means the stored token was accepted.
	Present
	// Absent means there is no usable stored session.
	Absent
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Present:
		return "present"
	case Absent:
		return "absent"
	}
	return "unresolved"
}

// Resolved reports whether the sequence has finished.
func (s Status) Resolved() bool { return s == Present || s == Absent }

// Validator asks the backend who the token belongs to.
type Validator interface {
	Me(ctx context.Context) (session.User, error)
}

// Sequencer runs the startup validation once.
type Sequencer struct {
	store     *session.Store
	validator Validator
	logger    *slog.Logger

	once sync.Once
	done chan struct{}

	mu     sync.RWMutex
	status Status
	err    error
}

// New builds a Sequencer for store.
func New(store *session.Store, validator Validator, logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequencer{store: store, validator: validator, logger: logger, done: make(chan struct{})}
}

// Run hydrates the store and validates any stored token with a single Me
// call. Later calls return the first result without doing any work.
func (s *Sequencer) Run(ctx context.Context) Status {
	s.once.Do(func() {
		defer close(s.done)
		s.setStatus(s.run(ctx))
	})
	return s.Status()
}

// Start runs Run in the background.
func (s *Sequencer) Start(ctx context.Context) {
	go s.Run(ctx)
}

func (s *Sequencer) run(ctx context.Context) Status {
	token, err := s.store.Hydrate(ctx)
	if err != nil {
		s.logger.Warn("bootstrap hydrate", slog.Any("error", err))
		s.recordErr(err)
		return Absent
	}
	if token == "" {
		return Absent
	}
	s.setStatus(Pending)

	user, err := s.validator.Me(ctx)
	if err != nil {
		if !errors.Is(err, api.ErrUnauthorized) {
			// The backend could not be asked. The stored token stays for the
			// next attempt but is not trusted meanwhile.
			s.logger.Warn("stored session not validated", slog.Any("error", err))
			return s.absentWith(err)
		}
		revoked, logoutErr := s.store.Revoke(context.WithoutCancel(ctx), token)
		if logoutErr != nil {
			s.logger.Warn("bootstrap logout", slog.Any("error", logoutErr))
		}
		if !revoked {
			return s.absentWith(err)
		}
		s.logger.Info("stored session rejected")
		s.recordErr(err)
		return Absent
	}
	if !s.store.ConfirmUser(token, user) {
		// A login or logout happened meanwhile and owns the session now.
		return s.current()
	}
	s.logger.Info("stored session restored", slog.Int64("user_id", user.ID), slog.String("role", user.Role.String()))
	return Present
}

func (s *Sequencer) current() Status {
	if s.store.IsAuthenticated() {
		return Present
	}
	return Absent
}

// absentWith records err unless a login meanwhile made the session present.
func (s *Sequencer) absentWith(err error) Status {
	status := s.current()
	if status == Absent {
		s.recordErr(err)
	}
	return status
}

// Status returns the current status.
func (s *Sequencer) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Err returns the error that made the sequence resolve Absent, if any.
func (s *Sequencer) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Wait blocks until the sequence resolves or ctx ends.
func (s *Sequencer) Wait(ctx context.Context) (Status, error) {
	select {
	case <-s.done:
		return s.Status(), nil
	case <-ctx.Done():
		return s.Status(), ctx.Err()
	}
}

func (s *Sequencer) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *Sequencer) recordErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
