package devauth

import "github.com/jrsteele09/go-auth-session/authclient"

// Route path constants
// The auth routes are the ones the session client calls, so they share its constants.
const (
	RouteAuthLogin     = authclient.LoginPath
	RouteAuthRefresh   = authclient.RefreshPath
	RouteAuthLogout    = authclient.LogoutPath
	RouteAuthLogoutAll = authclient.LogoutAllPath

	RouteWellKnownJWKS = "/.well-known/jwks.json"
	RouteHealth        = "/health"
	RouteMe            = "/api/me"
)
