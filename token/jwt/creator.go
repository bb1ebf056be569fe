package jwt

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// IssuedToken is a signed access token with the claims the server needs to remember.
type IssuedToken struct {
	Raw       string
	ID        string
	ExpiresAt time.Time
}

// ClaimsSigner turns a claim set into a signed token.
type ClaimsSigner interface {
	Sign(claims jwtlib.MapClaims) (string, error)
}

// Creator handles access token creation
type Creator struct {
	config config.DevAuthConfig
	signer ClaimsSigner
}

// NewCreator creates a new JWT creator
func NewCreator(cfg config.DevAuthConfig, signer ClaimsSigner) *Creator {
	return &Creator{
		config: cfg,
		signer: signer,
	}
}

// CreateAccessToken creates an access token carrying the user's identity, roles and tenant scope
func (c *Creator) CreateAccessToken(user *users.User) (*IssuedToken, error) {
	now := NowTimeFunc()
	exp := now.Add(c.config.GetAccessTokenExpiry())
	jti := uuid.New().String()

	claims := jwtlib.MapClaims{
		"iss":   c.config.GetDevIssuer(), // The issuer of the token
		"sub":   user.ID,                 // The user the token was issued to
		"email": user.Email,
		"roles": user.RoleNames(),
		"iat":   now.Unix(), // Issued At: the time at which the token was issued
		"exp":   exp.Unix(), // Expiry: when the token will expire
		"jti":   jti,        // Unique token ID for revocation
	}
	if user.CompanyID != "" {
		claims["companyId"] = user.CompanyID
	}
	if user.ShopID != "" {
		claims["shopId"] = user.ShopID
	}

	signedToken, err := c.signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return &IssuedToken{Raw: signedToken, ID: jti, ExpiresAt: time.Unix(exp.Unix(), 0)}, nil
}
