package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/propdesk/propdesk/internal/auth/tokenstore"
	apperrors "github.com/propdesk/propdesk/internal/errors"
	"github.com/propdesk/propdesk/internal/logger"
	"github.com/propdesk/propdesk/internal/platform"
	testbackend "github.com/propdesk/propdesk/internal/testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	manager   *Manager
	store     *tokenstore.Memory
	platform  *platform.Runtime
	clock     *fakeClock
	redirects []string
}

func newFixture(t *testing.T, location string) *fixture {
	t.Helper()

	f := &fixture{store: tokenstore.NewMemoryWith("stale"), clock: newFakeClock()}
	p, err := platform.New(platform.Options{
		Location:   location,
		OnRedirect: func(path string) { f.redirects = append(f.redirects, path) },
	})
	require.NoError(t, err)
	f.platform = p

	f.manager = NewManager(Options{
		Store:    f.store,
		Platform: p,
		Logger:   logger.Discard(),
		Now:      f.clock.Now,
	})
	f.manager.Initialize()
	return f
}

func TestManager_RefreshSingleFlight(t *testing.T) {
	f := newFixture(t, "/inspections")

	const callers = 8
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	refresh := func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "fresh", nil
	}

	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		tokens[0], errs[0] = f.manager.Refresh(context.Background(), refresh)
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = f.manager.Refresh(context.Background(), refresh)
		}(i)
	}
	// Give the late callers time to join the outstanding refresh.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "exactly one refresh call")
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "fresh", tokens[i])
	}

	stored, _ := f.store.Get()
	assert.Equal(t, "fresh", stored)
}

func TestManager_RefreshSlotClearedAfterSettle(t *testing.T) {
	f := newFixture(t, "/")

	var calls atomic.Int32
	refresh := func(context.Context) (string, error) {
		n := calls.Add(1)
		if n == 1 {
			return "", errors.New("network down")
		}
		return "second", nil
	}

	_, err := f.manager.Refresh(context.Background(), refresh)
	require.Error(t, err)

	token, err := f.manager.Refresh(context.Background(), refresh)
	require.NoError(t, err)
	assert.Equal(t, "second", token)
	assert.Equal(t, int32(2), calls.Load())
}

func TestManager_RefreshFailureClearsToken(t *testing.T) {
	tests := []struct {
		name     string
		refresh  RefreshFunc
		wantCode string
	}{
		{
			name:    "call fails",
			refresh: func(context.Context) (string, error) { return "", errors.New("connection reset") },
		},
		{
			name:     "no token in response",
			refresh:  func(context.Context) (string, error) { return "", nil },
			wantCode: apperrors.ErrCodeRefreshFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "/jobs")

			_, err := f.manager.Refresh(context.Background(), tt.refresh)
			require.Error(t, err)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, apperrors.GetErrorCode(err))
			}

			token, _ := f.manager.Token()
			assert.Empty(t, token, "token must be cleared before the error propagates")
			assert.Empty(t, f.redirects, "refresh failure alone does not redirect")
		})
	}
}

func TestManager_RefreshCallerCancellation(t *testing.T) {
	f := newFixture(t, "/")

	release := make(chan struct{})
	refreshCtxErr := make(chan error, 1)
	refresh := func(ctx context.Context) (string, error) {
		<-release
		refreshCtxErr <- ctx.Err()
		return "fresh", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.manager.Refresh(ctx, refresh)
		done <- err
	}()

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(release)
	assert.NoError(t, <-refreshCtxErr, "the shared refresh outlives the cancelled caller")
	assert.Eventually(t, func() bool {
		token, _ := f.store.Get()
		return token == "fresh"
	}, time.Second, 10*time.Millisecond)
}

func TestManager_RecordUnauthorized(t *testing.T) {
	t.Run("third 401 within the window forces logout", func(t *testing.T) {
		f := newFixture(t, "/dashboard")

		assert.False(t, f.manager.RecordUnauthorized())
		f.clock.Advance(time.Second)
		assert.False(t, f.manager.RecordUnauthorized())
		f.clock.Advance(time.Second)
		assert.True(t, f.manager.RecordUnauthorized())

		token, _ := f.manager.Token()
		assert.Empty(t, token)
		assert.Equal(t, []string{"/signin"}, f.redirects)
		assert.Equal(t, 0, f.manager.UnauthorizedCount(), "window is reset by the logout")
	})

	t.Run("elapsed window resets the count", func(t *testing.T) {
		f := newFixture(t, "/dashboard")

		assert.False(t, f.manager.RecordUnauthorized())
		f.clock.Advance(6 * time.Second)
		assert.False(t, f.manager.RecordUnauthorized())

		assert.Equal(t, 1, f.manager.UnauthorizedCount())
		token, _ := f.manager.Token()
		assert.Equal(t, "stale", token)
		assert.Empty(t, f.redirects)
	})
}

func TestManager_ForceLogout(t *testing.T) {
	tests := []struct {
		name         string
		location     string
		wantRedirect bool
	}{
		{name: "from app page", location: "/properties/12", wantRedirect: true},
		{name: "already on sign in", location: "/signin", wantRedirect: false},
		{name: "under sign in", location: "/signin/callback", wantRedirect: false},
		{name: "on sign up", location: "/signup", wantRedirect: false},
		{name: "root", location: "/", wantRedirect: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.location)
			f.manager.RecordUnauthorized()

			f.manager.ForceLogout()

			token, _ := f.manager.Token()
			assert.Empty(t, token)
			assert.Equal(t, 0, f.manager.UnauthorizedCount())
			if tt.wantRedirect {
				assert.Equal(t, []string{"/signin"}, f.redirects)
				assert.Equal(t, "/signin", f.platform.Location())
			} else {
				assert.Empty(t, f.redirects)
				assert.Equal(t, tt.location, f.platform.Location())
			}
		})
	}
}

func TestManager_LogoutAndSetToken(t *testing.T) {
	f := newFixture(t, "/")

	f.manager.RecordUnauthorized()
	require.NoError(t, f.manager.Logout())
	token, _ := f.manager.Token()
	assert.Empty(t, token)
	assert.Equal(t, 0, f.manager.UnauthorizedCount())
	assert.Empty(t, f.redirects)

	f.manager.RecordUnauthorized()
	require.NoError(t, f.manager.SetToken("new"))
	token, _ = f.manager.Token()
	assert.Equal(t, "new", token)
	assert.Equal(t, 0, f.manager.UnauthorizedCount())
	assert.Same(t, f.store, f.manager.Store())
}

func TestManager_ForceLogout_UsesPlatform(t *testing.T) {
	p := testbackend.NewMockPlatform()
	p.On("Location").Return("/work-orders")
	p.On("Redirect", "/signin").Once()

	store := testbackend.NewMockTokenStore()
	store.On("Clear").Return(errors.New("disk full"))

	m := NewManager(Options{Store: store, Platform: p, Logger: logger.Discard()})
	m.ForceLogout()

	p.AssertExpectations(t)
	store.AssertExpectations(t)
	p.AssertNotCalled(t, "Cookie", "XSRF-TOKEN")
}
