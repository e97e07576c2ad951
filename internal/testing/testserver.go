// Package testing provides an in-process propdesk backend for tests: the
// REST endpoints the client core calls and a Socket.IO notification endpoint.
package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/propdesk/propdesk/internal/api"
	"github.com/propdesk/propdesk/internal/authorization"
	"github.com/propdesk/propdesk/internal/constants"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const userContextKey contextKey = "user"

// RefreshCookieName is the cookie carrying the refresh credential.
const RefreshCookieName = "refresh_token"

// TestPassword is the password of every seeded user.
const TestPassword = "correct-horse"

var signingKey = []byte("propdesk-backend-test-key")

// Backend is a fake propdesk API served over httptest.
type Backend struct {
	Server *httptest.Server
	Socket *SocketServer

	// RefreshCalls counts POST /auth/refresh requests.
	RefreshCalls atomic.Int32
	// FailRefresh makes POST /auth/refresh answer 401.
	FailRefresh atomic.Bool

	router *chi.Mux

	mu            sync.Mutex
	users         map[string]api.User
	refreshTokens map[string]string
	generation    int
	notifications []api.Notification
	accessTTL     time.Duration
}

// BackendOption configures a Backend.
type BackendOption func(*backendConfig)

type backendConfig struct {
	socketPaths []string
	accessTTL   time.Duration
}

// WithSocketPaths mounts the Socket.IO endpoint at the given paths instead of /socket.io.
// Passing no path disables the endpoint.
func WithSocketPaths(paths ...string) BackendOption {
	return func(c *backendConfig) {
		c.socketPaths = paths
	}
}

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(ttl time.Duration) BackendOption {
	return func(c *backendConfig) {
		c.accessTTL = ttl
	}
}

// NewBackend starts a Backend seeded with one user per role. It is closed
// when the test finishes.
func NewBackend(t *testing.T, opts ...BackendOption) *Backend {
	t.Helper()

	cfg := backendConfig{socketPaths: []string{constants.SocketIOPrefix}, accessTTL: 15 * time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Backend{
		Socket:        NewSocketServer(),
		users:         make(map[string]api.User),
		refreshTokens: make(map[string]string),
		accessTTL:     cfg.accessTTL,
	}
	b.Socket.Authorize = func(token string) bool {
		_, err := b.authenticate(token)
		return err == nil
	}
	for i, role := range authorization.ValidRoles() {
		email := authorization.LoginName(role) + "@example.com"
		b.users[email] = api.User{
			ID:       fmt.Sprintf("usr-%d", i+1),
			Email:    email,
			Name:     authorization.Label(role),
			Role:     role,
			TenantID: "tnt-1",
		}
	}

	b.router = b.routes(cfg.socketPaths)
	b.Server = httptest.NewServer(b.router)
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the server origin.
func (b *Backend) URL() string {
	return b.Server.URL
}

// Client returns an HTTP client for testing
func (b *Backend) Client() *http.Client {
	return b.Server.Client()
}

func (b *Backend) routes(socketPaths []string) *chi.Mux {
	r := chi.NewRouter()

	for _, p := range socketPaths {
		r.Handle(strings.TrimRight(p, "/")+"/", b.Socket)
	}

	r.Route(constants.APIPrefix, func(r chi.Router) {
		r.Use(setContentTypeJSON)
		r.Post(constants.AuthLoginPath, b.handleLogin)
		r.Post(constants.AuthRefreshPath, b.handleRefresh)
		r.Post(constants.AuthLogoutPath, b.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(b.requireAuth)
			r.Get(constants.AuthMePath, b.handleMe)
			r.Get(constants.NotificationsPath, b.handleListNotifications)
			r.Get(constants.NotificationsUnreadCountPath, b.handleUnreadCount)
			r.With(requireCSRF).Patch(constants.NotificationsPath+"/{id}/read", b.handleMarkRead)
		})
	})

	return r
}

// MintAccessToken issues an access token for email without going through login.
func (b *Backend) MintAccessToken(email string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	user, ok := b.users[email]
	if !ok {
		return "", fmt.Errorf("unknown user %q", email)
	}
	return b.mintLocked(user)
}

func (b *Backend) mintLocked(user api.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"email":    user.Email,
		"role":     user.Role,
		"tenantId": user.TenantID,
		"gen":      b.generation,
		"iat":      now.Unix(),
		"exp":      now.Add(b.accessTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
}

// ExpireAccessTokens invalidates every access token issued so far.
// Refresh credentials stay valid.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generation++
}

func (b *Backend) authenticate(raw string) (*api.User, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}
	gen, _ := claims["gen"].(float64)
	email, _ := claims["email"].(string)

	b.mu.Lock()
	defer b.mu.Unlock()
	if int(gen) != b.generation {
		return nil, fmt.Errorf("token generation %d revoked", int(gen))
	}
	user, ok := b.users[email]
	if !ok {
		return nil, fmt.Errorf("unknown user %q", email)
	}
	return &user, nil
}

// AddNotification stores n and pushes it to connected sockets followed by the new unread count.
func (b *Backend) AddNotification(n api.Notification) {
	b.mu.Lock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	b.notifications = append([]api.Notification{n}, b.notifications...)
	count := b.unreadLocked()
	b.mu.Unlock()

	b.Socket.Emit(constants.EventNotificationNew, n)
	b.Socket.Emit(constants.EventNotificationCount, api.UnreadCount{Count: count})
}

// UnreadCount returns the number of unread notifications.
func (b *Backend) UnreadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unreadLocked()
}

func (b *Backend) unreadLocked() int {
	count := 0
	for _, n := range b.notifications {
		if !n.Read {
			count++
		}
	}
	return count
}

func (b *Backend) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body api.LoginRequest
	if err := decodeRequestBody(w, req, &body); err != nil {
		return
	}

	b.mu.Lock()
	user, ok := b.users[body.Email]
	if !ok || body.Password != TestPassword {
		b.mu.Unlock()
		writeErrorResponse(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
		return
	}
	token, err := b.mintLocked(user)
	refresh := uuid.NewString()
	b.refreshTokens[refresh] = user.Email
	b.mu.Unlock()
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "Server error", err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{Name: RefreshCookieName, Value: refresh, Path: constants.APIPrefix + "/auth", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: constants.CSRFCookieName, Value: uuid.NewString(), Path: "/"})
	writeJSON(w, http.StatusOK, api.TokenResponse{Token: token})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, req *http.Request) {
	b.RefreshCalls.Add(1)
	if b.FailRefresh.Load() {
		writeErrorResponse(w, http.StatusUnauthorized, "Unauthorized", "refresh rejected")
		return
	}

	cookie, err := req.Cookie(RefreshCookieName)
	if err != nil {
		writeErrorResponse(w, http.StatusUnauthorized, "Unauthorized", "missing refresh credential")
		return
	}

	b.mu.Lock()
	email, ok := b.refreshTokens[cookie.Value]
	var token string
	if ok {
		token, err = b.mintLocked(b.users[email])
	}
	b.mu.Unlock()
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Unauthorized", "unknown refresh credential")
		return
	}
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "Server error", err.Error())
		return
	}

	// Newer backends answer with accessToken only.
	writeJSON(w, http.StatusOK, api.TokenResponse{AccessToken: token})
}

func (b *Backend) handleLogout(w http.ResponseWriter, req *http.Request) {
	if cookie, err := req.Cookie(RefreshCookieName); err == nil {
		b.mu.Lock()
		delete(b.refreshTokens, cookie.Value)
		b.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: RefreshCookieName, Value: "", Path: constants.APIPrefix + "/auth", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleMe(w http.ResponseWriter, req *http.Request) {
	user, ok := requireAuthenticatedUser(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (b *Backend) handleListNotifications(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	list := append([]api.Notification{}, b.notifications...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, api.NotificationList{Notifications: list})
}

func (b *Backend) handleUnreadCount(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.UnreadCount{Count: b.UnreadCount()})
}

func (b *Backend) handleMarkRead(w http.ResponseWriter, req *http.Request) {
	id := strings.TrimSpace(chi.URLParam(req, "id"))

	b.mu.Lock()
	found := false
	for i := range b.notifications {
		if b.notifications[i].ID == id {
			b.notifications[i].Read = true
			found = true
		}
	}
	count := b.unreadLocked()
	b.mu.Unlock()

	if !found {
		writeErrorResponse(w, http.StatusNotFound, "Not found", "notification "+id+" does not exist")
		return
	}
	b.Socket.Emit(constants.EventNotificationCount, api.UnreadCount{Count: count})
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		raw, found := strings.CutPrefix(req.Header.Get(constants.AuthorizationHeader), constants.BearerPrefix)
		if !found {
			writeErrorResponse(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		user, err := b.authenticate(raw)
		if err != nil {
			writeErrorResponse(w, http.StatusUnauthorized, "Unauthorized", err.Error())
			return
		}
		next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), userContextKey, user)))
	})
}

// requireCSRF checks the double-submit anti-forgery token.
func requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		cookie, err := req.Cookie(constants.CSRFCookieName)
		if err != nil || cookie.Value == "" || req.Header.Get(constants.CSRFHeader) != cookie.Value {
			writeErrorResponse(w, http.StatusForbidden, "Forbidden", "CSRF token mismatch")
			return
		}
		next.ServeHTTP(w, req)
	})
}

func requireAuthenticatedUser(w http.ResponseWriter, req *http.Request) (*api.User, bool) {
	user, ok := req.Context().Value(userContextKey).(*api.User)
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Unauthorized", "user not found in context")
		return nil, false
	}
	return user, true
}

// setContentTypeJSON sets Content-Type to application/json for all responses
func setContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
		next.ServeHTTP(w, req)
	})
}

func decodeRequestBody(w http.ResponseWriter, req *http.Request, v any) error {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err.Error())
		return fmt.Errorf("failed to decode request body: %w", err)
	}
	return nil
}

func writeErrorResponse(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, api.ErrorResponse{Error: message, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
