package keys

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer issues RS256 tokens under one key pair and checks tokens against it.
type Signer struct {
	keyPair *KeyPair
	jwks    JWKS
}

// NewSigner prepares keyPair for signing. The public half is converted once for the JWKS endpoint.
func NewSigner(keyPair *KeyPair) (*Signer, error) {
	jwk, err := keyPair.ToJWK()
	if err != nil {
		return nil, fmt.Errorf("publish key %q: %w", keyPair.KeyID, err)
	}
	return &Signer{keyPair: keyPair, jwks: JWKS{Keys: []JWK{*jwk}}}, nil
}

// Sign signs claims and stamps the key id into the header.
func (s *Signer) Sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(s.Method(), claims)
	token.Header["kid"] = s.keyPair.KeyID
	raw, err := token.SignedString(s.keyPair.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return raw, nil
}

func (s *Signer) Method() jwt.SigningMethod {
	return s.keyPair.GetSigningMethod()
}

// Keyfunc hands jwt.Parse the public key. Tokens naming another kid are refused.
func (s *Signer) Keyfunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	if kid, ok := token.Header["kid"].(string); ok && kid != s.keyPair.KeyID {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return s.keyPair.PublicKey, nil
}

// JWKS is the key set served at /.well-known/jwks.json.
func (s *Signer) JWKS() JWKS {
	return s.jwks
}
