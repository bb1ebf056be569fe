package authclient

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// RefreshRequest is the body of POST /auth/refresh and POST /auth/logout.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse is returned by both the login and refresh endpoints.
// Refresh responses may omit everything except AccessToken.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`

	// RefreshToken is set when the server rotates the refresh token.
	RefreshToken string `json:"refreshToken,omitempty"`

	// TokenType is always "Bearer".
	TokenType string `json:"tokenType,omitempty"`

	// ExpiresIn is the access token lifetime in seconds. The token's own exp claim wins.
	ExpiresIn int `json:"expiresIn,omitempty"`

	UserID    string   `json:"userId,omitempty"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	CompanyID string   `json:"companyId,omitempty"`
	ShopID    *string  `json:"shopId,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
