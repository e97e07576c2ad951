package api

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by the login and refresh endpoints.
// Older backends answer with "token", newer ones with "accessToken".
type TokenResponse struct {
	Token       string `json:"token,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
}

// Value returns the issued access token, preferring "token" over "accessToken".
func (r TokenResponse) Value() string {
	if r.Token != "" {
		return r.Token
	}
	return r.AccessToken
}

// User is the authenticated principal returned by GET /auth/me.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
}
