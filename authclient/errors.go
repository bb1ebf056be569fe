package authclient

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRefreshRejected    = errors.New("refresh token rejected")
	ErrNetwork            = errors.New("network error")
	ErrInvalidResponse    = errors.New("invalid response from auth server")
)

// UnexpectedResponseMessage is shown when the server accepted a request but its reply was unusable.
const UnexpectedResponseMessage = "Unexpected response from server"

const (
	invalidCredentialsMessage = "Invalid credentials"
	networkMessage            = "Unable to reach the server. Please try again."
)

// AuthError carries a message suitable for direct display next to a login form.
type AuthError struct {
	Err     error
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (status %d)", e.Err, e.Status)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// UserMessage returns the message of an *AuthError in err's chain, or a generic one.
func UserMessage(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	return networkMessage
}
