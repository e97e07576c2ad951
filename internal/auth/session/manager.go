// Package session holds the process-wide authentication state shared by every
// API call: the access token, the single in-flight token refresh, and the
// window of recent unauthorized responses that decides when to force a logout.
package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/propdesk/propdesk/internal/auth/tokenstore"
	"github.com/propdesk/propdesk/internal/constants"
	apperrors "github.com/propdesk/propdesk/internal/errors"
	"github.com/propdesk/propdesk/internal/platform"

	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// RefreshFunc performs the refresh network call and returns the new access token.
type RefreshFunc func(ctx context.Context) (string, error)

// Options configures a Manager.
type Options struct {
	Store    tokenstore.Store
	Platform platform.Platform
	Logger   *slog.Logger
	// Now is the clock used by the unauthorized window. Defaults to time.Now.
	Now func() time.Time
}

// Manager owns the session state. All methods are safe for concurrent use.
type Manager struct {
	store    tokenstore.Store
	platform platform.Platform
	logger   *slog.Logger
	window   *UnauthorizedWindow
	flight   singleflight.Group
}

// NewManager creates a Manager. Call Initialize before first use.
func NewManager(opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:    opts.Store,
		platform: opts.Platform,
		logger:   log,
		window:   NewUnauthorizedWindow(constants.UnauthorizedWindow, constants.UnauthorizedThreshold, opts.Now),
	}
}

// Initialize prepares the manager for a fresh session.
func (m *Manager) Initialize() {
	m.Reset()
	m.logger.Debug("session manager initialized", "location", m.platform.Location())
}

// Reset drops the unauthorized window and detaches any in-flight refresh so
// the next 401 starts a new one. The stored token is left untouched.
func (m *Manager) Reset() {
	m.window.Reset()
	m.flight.Forget(refreshKey)
}

// Token returns the stored access token.
func (m *Manager) Token() (string, error) {
	return m.store.Get()
}

// SetToken stores a token obtained by an explicit login.
func (m *Manager) SetToken(token string) error {
	m.window.Reset()
	return m.store.Set(token)
}

// Store returns the underlying token store.
func (m *Manager) Store() tokenstore.Store {
	return m.store
}

// Refresh runs do at most once at a time across the process. Callers arriving
// while a refresh is outstanding wait for and share its outcome. A successful
// refresh stores the new token; a failed one clears the stored token.
func (m *Manager) Refresh(ctx context.Context, do RefreshFunc) (string, error) {
	// The shared call must not die with whichever caller happened to start it.
	flightCtx := context.WithoutCancel(ctx)
	ch := m.flight.DoChan(refreshKey, func() (any, error) {
		return m.runRefresh(flightCtx, do)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		token, _ := res.Val.(string)
		if res.Shared {
			m.logger.Debug("joined in-flight token refresh")
		}
		return token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) runRefresh(ctx context.Context, do RefreshFunc) (string, error) {
	m.logger.Debug("refreshing access token")

	token, err := do(ctx)
	if err == nil && token == "" {
		err = apperrors.ErrRefreshFailed("refresh response carried no token", nil)
	}
	if err != nil {
		if clearErr := m.store.Clear(); clearErr != nil {
			m.logger.Error("failed to clear access token", "error", clearErr)
		}
		m.logger.Debug("token refresh failed", "error", err)
		return "", err
	}

	if err := m.store.Set(token); err != nil {
		m.logger.Error("failed to store refreshed access token", "error", err)
	}
	m.logger.Debug("access token refreshed")
	return token, nil
}

// RecordUnauthorized registers a 401 that was not recovered by a refresh.
// It forces a logout and reports true once the threshold of recent 401s is reached.
func (m *Manager) RecordUnauthorized() bool {
	tripped := m.window.Record()
	m.logger.Debug("unauthorized response recorded", "recent", m.window.Count(), "forced_logout", tripped)
	if tripped {
		m.ForceLogout()
	}
	return tripped
}

// UnauthorizedCount returns the number of recent 401s.
func (m *Manager) UnauthorizedCount() int {
	return m.window.Count()
}

// ForceLogout ends the session: clears the token, resets the unauthorized
// window, and sends the user to sign-in unless they are already on an auth page.
func (m *Manager) ForceLogout() {
	m.clear()

	location := m.platform.Location()
	if strings.HasPrefix(location, constants.SignInPath) || strings.HasPrefix(location, constants.SignUpPath) {
		m.logger.Debug("forced logout without redirect", "location", location)
		return
	}
	m.logger.Debug("forced logout", "redirect", constants.SignInPath)
	m.platform.Redirect(constants.SignInPath)
}

// Logout ends the session at the user's request. No redirect happens.
func (m *Manager) Logout() error {
	m.window.Reset()
	return m.store.Clear()
}

func (m *Manager) clear() {
	if err := m.store.Clear(); err != nil {
		m.logger.Error("failed to clear access token", "error", err)
	}
	m.window.Reset()
}
