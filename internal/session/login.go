package session

import (
	"errors"
	"strings"

	"github.com/example/ec-admin-console/internal/forms"
)

// LoginForm is what the sign-in surfaces collect
type LoginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

const (
	msgInvalidCredentials = "Invalid credentials"
	msgAccountNotFound    = "Account not found. Please register first."
)

var loginMessages = forms.Messages{
	"email":    "Enter a valid email",
	"password": "Password must be at least 6 characters",
}

// Validate trims the email and checks both fields before any request is made
func (f *LoginForm) Validate() error {
	f.Email = strings.TrimSpace(f.Email)
	return forms.Check(f, loginMessages)
}

// LoginMessage is the line shown under the sign-in form, or "" on success
func LoginMessage(res SignInResult, err error) string {
	if err != nil {
		if fe, ok := forms.Field(err); ok {
			return fe.Message
		}
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			return msgInvalidCredentials
		case errors.Is(err, ErrAccountNotFound):
			return msgAccountNotFound
		}
		return err.Error()
	}
	if !res.UserRegistered {
		return msgAccountNotFound
	}
	return ""
}
