package guard

import (
	"net/url"
	"strings"
)

const (
	LoginPath = "/login"
	AdminPath = "/admin"
)

// SessionState is the slice of the session a guard decision depends on
type SessionState struct {
	Authenticated bool
	Admin         bool
	Loading       bool
}

// Route is a protected location
type Route struct {
	Location     string
	RequireAdmin bool
}

type Action int

const (
	Allow Action = iota
	Wait
	Redirect
)

func (a Action) String() string {
	switch a {
	case Allow:
		return "allow"
	case Wait:
		return "wait"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// Decision is what the surface should do with a navigation.
// From is set only when the user should come back after signing in.
type Decision struct {
	Action Action
	To     string
	From   string
}

// Decide is pure: the same state and route always give the same decision
func Decide(s SessionState, r Route) Decision {
	if s.Loading {
		return Decision{Action: Wait}
	}
	if !s.Authenticated {
		return Decision{Action: Redirect, To: LoginPath, From: r.Location}
	}
	if r.RequireAdmin && !s.Admin {
		return Decision{Action: Redirect, To: LoginPath}
	}
	return Decision{Action: Allow}
}

// Destination is where a successful sign-in lands: from when it is a local admin path, else /admin
func Destination(from string) string {
	if from == "" || !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") {
		return AdminPath
	}
	u, err := url.Parse(from)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return AdminPath
	}
	if u.Path != AdminPath && !strings.HasPrefix(u.Path, AdminPath+"/") {
		return AdminPath
	}
	return from
}

// LoginURL renders the redirect target carrying from as a query parameter
func (d Decision) LoginURL() string {
	if d.From == "" {
		return d.To
	}
	return d.To + "?" + url.Values{"from": {d.From}}.Encode()
}
