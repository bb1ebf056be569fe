package config

import "time"

type DevAuthConfig interface {
	GetDevIssuer() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRememberMeRefreshTokenExpiry() time.Duration
	GetRefreshTokenLength() int
	GetSeedAdminEmail() string
	GetSeedAdminPassword() string
	GetSigningKeyFile() string
}

type DevAuth struct{}

var _ DevAuthConfig = DevAuth{}

func (DevAuth) GetDevIssuer() string {
	return GetEnv("DEVAUTH_ISSUER", "http://localhost:8080")
}

func (DevAuth) GetAccessTokenExpiry() time.Duration {
	return GetDurationEnv("DEVAUTH_ACCESS_TOKEN_EXPIRY", 15*time.Minute)
}

func (DevAuth) GetRefreshTokenExpiry() time.Duration {
	return GetDurationEnv("DEVAUTH_REFRESH_TOKEN_EXPIRY", 24*time.Hour)
}

func (DevAuth) GetRememberMeRefreshTokenExpiry() time.Duration {
	return GetDurationEnv("DEVAUTH_REMEMBER_ME_REFRESH_TOKEN_EXPIRY", 30*24*time.Hour)
}

func (DevAuth) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}

func (DevAuth) GetSeedAdminEmail() string {
	return GetEnv("DEVAUTH_ADMIN_EMAIL", "admin@sdt.com")
}

func (DevAuth) GetSeedAdminPassword() string {
	return GetEnv("DEVAUTH_ADMIN_PASSWORD", "Admin1234")
}

// GetSigningKeyFile persists the RSA signing key between restarts when set.
func (DevAuth) GetSigningKeyFile() string {
	return GetEnv("DEVAUTH_KEY_FILE", "")
}
