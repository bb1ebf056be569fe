package session

import "errors"

var (
	ErrNoSession         = errors.New("no session")
	ErrIncompleteSession = errors.New("incomplete session")
	ErrNoRefreshToken    = errors.New("no refresh token stored")
	ErrRefreshFailed     = errors.New("refresh failed")
	ErrSessionChanged    = errors.New("session changed while refreshing")
	ErrUntrustedToken    = errors.New("access token failed verification")
)
