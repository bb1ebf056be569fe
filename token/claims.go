package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-session/internal/utils"
)

var (
	ErrEmptyToken     = errors.New("empty token")
	ErrMalformedToken = errors.New("malformed token")
)

// Claims are the identity attributes carried by an access token. They are decoded without
// verification and are display hints only; the API server remains the authority.
type Claims struct {
	Subject   string
	Email     string
	Roles     []string
	CompanyID string
	ShopID    string
	Issuer    string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// HasExpiry reports whether the token carried an exp claim.
func (c *Claims) HasExpiry() bool {
	return !c.ExpiresAt.IsZero()
}

// Decode reads the claims of a JWT without checking its signature.
func Decode(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrEmptyToken
	}

	unverifiedToken, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	mapClaims, ok := unverifiedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: error extracting claims", ErrMalformedToken)
	}
	return claimsFromMap(mapClaims), nil
}

func claimsFromMap(m jwtlib.MapClaims) *Claims {
	c := &Claims{}
	c.Subject = stringClaim(m, "sub", "userId")
	c.Email = stringClaim(m, "email")
	c.CompanyID = stringClaim(m, "companyId", "company_id")
	c.ShopID = stringClaim(m, "shopId", "shop_id")
	c.Issuer = stringClaim(m, "iss")
	c.ID = stringClaim(m, "jti")
	if roles, ok := m["roles"]; ok {
		c.Roles = utils.ToStringSlice(roles)
	}
	if exp, ok := numericClaim(m, "exp"); ok {
		c.ExpiresAt = exp
	}
	if iat, ok := numericClaim(m, "iat"); ok {
		c.IssuedAt = iat
	}
	return c
}

// stringClaim returns the first non-empty string value among names. Numeric ids are formatted
// without a fractional part so {"sub": 42} reads as "42".
func stringClaim(m jwtlib.MapClaims, names ...string) string {
	for _, name := range names {
		switch v := m[name].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func numericClaim(m jwtlib.MapClaims, name string) (time.Time, bool) {
	switch v := m[name].(type) {
	case float64:
		return time.UnixMilli(int64(v * 1000)), true
	case int64:
		return time.Unix(v, 0), true
	}
	return time.Time{}, false
}

// IsExpired reports whether now >= exp - skew. Tokens that cannot be decoded, or that carry
// no exp claim, are treated as expired.
func IsExpired(rawToken string, skew time.Duration, now time.Time) bool {
	claims, err := Decode(rawToken)
	if err != nil {
		return true
	}
	return claims.IsExpired(skew, now)
}

func (c *Claims) IsExpired(skew time.Duration, now time.Time) bool {
	if !c.HasExpiry() {
		return true
	}
	return !now.Before(c.ExpiresAt.Add(-skew))
}
