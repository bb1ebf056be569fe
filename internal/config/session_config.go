package config

import "time"

type SessionConfig interface {
	GetRefreshInterval() time.Duration
	GetExpirySkew() time.Duration
	GetRememberMeTTL() time.Duration
	GetSessionTTL() time.Duration
	GetLoginPath() string
	GetPublicPaths() []string
	GetJWKSURL() string
	GetIssuer() string
}

type Session struct{}

var _ SessionConfig = Session{}

// GetRefreshInterval is how often a mounted protected view renews the access token.
func (Session) GetRefreshInterval() time.Duration {
	return GetDurationEnv("SESSION_REFRESH_INTERVAL", 10*time.Minute)
}

// GetExpirySkew treats an access token as expired this long before its exp claim.
func (Session) GetExpirySkew() time.Duration {
	return GetDurationEnv("SESSION_EXPIRY_SKEW", 30*time.Second)
}

func (Session) GetRememberMeTTL() time.Duration {
	return GetDurationEnv("SESSION_REMEMBER_ME_TTL", 30*24*time.Hour)
}

// GetSessionTTL bounds how long credentials persist when "remember me" was not ticked.
func (Session) GetSessionTTL() time.Duration {
	return GetDurationEnv("SESSION_TTL", 12*time.Hour)
}

func (Session) GetLoginPath() string {
	return GetEnv("SESSION_LOGIN_PATH", "/")
}

func (Session) GetPublicPaths() []string {
	return GetListEnv("SESSION_PUBLIC_PATHS", []string{"/", "/login"})
}

// GetJWKSURL enables access token signature verification at login when set.
func (Session) GetJWKSURL() string {
	return GetEnv("SESSION_JWKS_URL", "")
}

func (Session) GetIssuer() string {
	return GetEnv("SESSION_ISSUER", "")
}
