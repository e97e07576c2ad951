package constants

import "time"

// Auth endpoints, relative to the API prefix.
const (
	AuthLoginPath    = "/auth/login"
	AuthRegisterPath = "/auth/register"
	AuthRefreshPath  = "/auth/refresh"
	AuthLogoutPath   = "/auth/logout"
	AuthMePath       = "/auth/me"
)

// RefreshExemptPaths returns the auth endpoints whose 401 responses never trigger a token refresh.
func RefreshExemptPaths() []string {
	return []string{AuthLoginPath, AuthRegisterPath, AuthRefreshPath, AuthLogoutPath}
}

// UnauthorizedWindow is the sliding window in which repeated 401 responses are counted.
const UnauthorizedWindow = 5000 * time.Millisecond

// UnauthorizedThreshold is the number of recent 401 responses that forces a logout.
const UnauthorizedThreshold = 3

// SignInPath is where a forced logout redirects to.
const SignInPath = "/signin"

// SignUpPath is the registration page; a forced logout never redirects away from it.
const SignUpPath = "/signup"

// Token store keys. Both are written and both are cleared; readers prefer TokenKey.
const (
	TokenKey       = "token"
	AccessTokenKey = "accessToken"
)
