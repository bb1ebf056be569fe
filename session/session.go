// Package session owns the client's authenticated session: login, expiry checks, silent
// refresh and coordinated logout against the remote auth endpoints.
package session

import (
	"fmt"
	"slices"

	"github.com/jrsteele09/go-auth-session/token"
)

// Known role names. The server may issue others; they are kept as-is.
const (
	RoleAdmin         = "ADMIN"
	RoleManager       = "MANAGER"
	RoleShopAssistant = "SHOP_ASSISTANT"
	RoleDeliveryGuy   = "DELIVERY_GUY"
)

// Session is the authenticated identity held by the client.
type Session struct {
	// ID tags one login. Refreshes started under a different ID are discarded.
	ID string

	AccessToken  string
	RefreshToken string
	UserID       string
	Email        string
	Roles        []string
	CompanyID    string
	ShopID       string

	RememberMe bool
}

// Validate checks that every required field is present and the access token decodes.
func (s *Session) Validate() error {
	switch {
	case s == nil:
		return ErrNoSession
	case s.AccessToken == "":
		return fmt.Errorf("%w: missing access token", ErrIncompleteSession)
	case s.RefreshToken == "":
		return fmt.Errorf("%w: missing refresh token", ErrIncompleteSession)
	case s.UserID == "":
		return fmt.Errorf("%w: missing user id", ErrIncompleteSession)
	case s.Email == "":
		return fmt.Errorf("%w: missing email", ErrIncompleteSession)
	}
	if _, err := token.Decode(s.AccessToken); err != nil {
		return fmt.Errorf("%w: %v", ErrIncompleteSession, err)
	}
	return nil
}

func (s *Session) HasRole(role string) bool {
	if s == nil {
		return false
	}
	return slices.Contains(s.Roles, role)
}
