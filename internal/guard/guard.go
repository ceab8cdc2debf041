// Package guard decides whether a console route may render for the current
// session.
package guard

import (
	"github.com/odyssey-erp/odyssey-console/internal/bootstrap"
	"github.com/odyssey-erp/odyssey-console/internal/session"
)

// Outcome is the verdict of a guard.
type Outcome int

const (
	// Allow renders the route.
	Allow Outcome = iota
	// Loading renders a neutral placeholder until bootstrap resolves.
	Loading
	// RedirectLogin sends the visitor to the login page.
	RedirectLogin
	// RedirectUserHome sends an authenticated but under-privileged user to
	// their own landing page.
	RedirectUserHome
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUserHome:
		return "redirect_user_home"
	}
	return "unknown"
}

// Authentication allows a confirmed session. A token that has not been
// validated yet holds the route in Loading while bootstrap is unresolved and
// never counts as authenticated.
func Authentication(snap session.Snapshot, status bootstrap.Status) Outcome {
	if snap.Token != "" && snap.IsAuthenticated {
		return Allow
	}
	if !status.Resolved() {
		return Loading
	}
	return RedirectLogin
}

// Role allows staff users. Anyone else holding a session goes to the user
// landing page.
func Role(snap session.Snapshot) Outcome {
	if !snap.IsAuthenticated || snap.User == nil {
		return RedirectUserHome
	}
	if snap.User.Role.IsStaff() {
		return Allow
	}
	return RedirectUserHome
}

// Evaluate checks authentication first and the role only when requireStaff
// is set and authentication allowed the route.
func Evaluate(snap session.Snapshot, status bootstrap.Status, requireStaff bool) Outcome {
	if out := Authentication(snap, status); out != Allow {
		return out
	}
	if requireStaff {
		return Role(snap)
	}
	return Allow
}
