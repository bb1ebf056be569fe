package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-session/internal/utils"
)

var ErrTokenRevoked = errors.New("token revoked")

// TokenIntrospection is what the server learns from a bearer token it issued.
// The 'active' field indicates the state of the token - if it's false, other fields may not be populated.
type TokenIntrospection struct {
	Active    bool      `json:"active"`              // True or false - Is the token valid
	ID        string    `json:"jti,omitempty"`       // Token id, used for revocation
	Sub       string    `json:"sub,omitempty"`       // Users unique ID
	Email     string    `json:"email,omitempty"`     //
	Roles     []string  `json:"roles,omitempty"`     // Roles assigned to the User
	CompanyID string    `json:"companyId,omitempty"` // Tenant scope
	Iss       string    `json:"iss,omitempty"`       // Issuer of the token
	ExpiresAt time.Time `json:"-"`
}

// RevokedChecker is an interface for checking if a token has been revoked
type RevokedChecker interface {
	IsRevoked(jti string) bool
}

// KeySource supplies the signing method and key used to check a token.
type KeySource interface {
	Method() jwtlib.SigningMethod
	Keyfunc(token *jwtlib.Token) (any, error)
}

// Inspector validates bearer tokens signed by this server
type Inspector struct {
	signer         KeySource
	issuer         string
	revokedChecker RevokedChecker
}

// NewInspector creates a new JWT inspector
func NewInspector(signer KeySource, issuer string, revokedChecker RevokedChecker) *Inspector {
	return &Inspector{
		signer:         signer,
		issuer:         issuer,
		revokedChecker: revokedChecker,
	}
}

// Introspect verifies rawToken and extracts its claims. Expired, revoked or foreign tokens come
// back inactive together with the reason.
func (i *Inspector) Introspect(rawToken string) (*TokenIntrospection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &TokenIntrospection{Active: false}, errors.New("empty token")
	}

	options := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{i.signer.Method().Alg()}),
		jwtlib.WithTimeFunc(NowTimeFunc),
		jwtlib.WithExpirationRequired(),
	}
	if i.issuer != "" {
		options = append(options, jwtlib.WithIssuer(i.issuer))
	}

	token, err := jwtlib.ParseWithClaims(rawToken, jwtlib.MapClaims{}, i.signer.Keyfunc, options...)
	if err != nil || !token.Valid {
		return &TokenIntrospection{Active: false}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return &TokenIntrospection{Active: false}, errors.New("error extracting claims from token")
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	iss, _ := claims["iss"].(string)
	jti, _ := claims["jti"].(string)
	companyID, _ := claims["companyId"].(string)
	exp, _ := claims["exp"].(float64)

	introspection := &TokenIntrospection{
		Active:    true,
		ID:        jti,
		Sub:       sub,
		Email:     email,
		Roles:     utils.ToStringSlice(claims["roles"]),
		CompanyID: companyID,
		Iss:       iss,
		ExpiresAt: time.Unix(int64(exp), 0),
	}

	// Check if token has been revoked
	if jti != "" && i.revokedChecker != nil && i.revokedChecker.IsRevoked(jti) {
		introspection.Active = false
		return introspection, ErrTokenRevoked
	}
	return introspection, nil
}
