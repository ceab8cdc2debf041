package guard

import (
	"net/url"
	"strings"

	"github.com/odyssey-erp/odyssey-console/internal/session"
)

// ReturnParam carries the attempted destination through the login page.
const ReturnParam = "return_to"

// Routes names the console entry points guards redirect to.
type Routes struct {
	Login     string
	UserHome  string
	AdminHome string
}

// DefaultRoutes are the console's own paths.
var DefaultRoutes = Routes{
	Login:     "/login",
	UserHome:  "/account",
	AdminHome: "/admin",
}

// Landing is where user lands after login when no destination was asked for.
func (r Routes) Landing(user *session.User) string {
	switch {
	case user == nil:
		return r.Login
	case user.Role.IsStaff():
		return r.AdminHome
	}
	return r.UserHome
}

// LoginURL is the login page remembering returnTo when it is a safe local
// path.
func (r Routes) LoginURL(returnTo string) string {
	path, ok := SafeReturnPath(returnTo)
	if !ok || path == r.Login {
		return r.Login
	}
	return r.Login + "?" + url.Values{ReturnParam: {path}}.Encode()
}

// SafeReturnPath accepts only absolute paths on this host. Anything that
// could leave the console, such as "//evil" or "https://evil", is refused.
func SafeReturnPath(raw string) (string, bool) {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.ContainsAny(raw, "\\\r\n") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "", false
	}
	return u.RequestURI(), true
}
