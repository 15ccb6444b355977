package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	admin := Route{Location: "/admin/products?page=2", RequireAdmin: true}
	open := Route{Location: "/admin"}

	tests := []struct {
		name  string
		state SessionState
		route Route
		want  Decision
	}{
		{"loading waits", SessionState{Loading: true}, admin, Decision{Action: Wait}},
		{"loading wins over authenticated", SessionState{Loading: true, Authenticated: true, Admin: true}, admin, Decision{Action: Wait}},
		{"anonymous redirected with from", SessionState{}, admin, Decision{Action: Redirect, To: "/login", From: "/admin/products?page=2"}},
		{"non admin redirected without from", SessionState{Authenticated: true}, admin, Decision{Action: Redirect, To: "/login"}},
		{"non admin allowed on open route", SessionState{Authenticated: true}, open, Decision{Action: Allow}},
		{"admin allowed", SessionState{Authenticated: true, Admin: true}, admin, Decision{Action: Allow}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.state, tt.route))
			// no hidden state
			assert.Equal(t, tt.want, Decide(tt.state, tt.route))
		})
	}
}

func TestDestination(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{"", "/admin"},
		{"/admin/orders", "/admin/orders"},
		{"/admin/products?page=3", "/admin/products?page=3"},
		{"/admin", "/admin"},
		{"/administrator", "/admin"},
		{"/login", "/admin"},
		{"//evil.example.com/admin", "/admin"},
		{"https://evil.example.com/admin", "/admin"},
	}

	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			assert.Equal(t, tt.want, Destination(tt.from))
		})
	}
}

func TestDecision_LoginURL(t *testing.T) {
	d := Decide(SessionState{}, Route{Location: "/admin/orders"})
	assert.Equal(t, "/login?from=%2Fadmin%2Forders", d.LoginURL())
	assert.Equal(t, "/login", Decision{Action: Redirect, To: "/login"}.LoginURL())
	assert.Equal(t, "redirect", d.Action.String())
}
