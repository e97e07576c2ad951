package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/propdesk/propdesk/internal/api"
	"github.com/propdesk/propdesk/internal/config"
	"github.com/propdesk/propdesk/internal/constants"
	"github.com/propdesk/propdesk/internal/notifications"
	"github.com/propdesk/propdesk/internal/notifications/querycache"
	testbackend "github.com/propdesk/propdesk/internal/testing"
	"github.com/propdesk/propdesk/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbsoluteBaseURL(t *testing.T) {
	tests := []struct {
		configured string
		origin     string
		want       string
	}{
		{"https://api.propdesk.io/v2/", "https://app.propdesk.io", "https://api.propdesk.io/v2"},
		{"", "https://app.propdesk.io", "https://app.propdesk.io/api"},
		{"/backend", "http://localhost:3000", "http://localhost:3000/backend"},
		{"backend", "http://localhost:3000", "http://localhost:3000/backend"},
	}
	for _, tt := range tests {
		t.Run(tt.configured, func(t *testing.T) {
			assert.Equal(t, tt.want, absoluteBaseURL(tt.configured, tt.origin))
		})
	}
}

func TestOriginOf(t *testing.T) {
	assert.Equal(t, "https://app.propdesk.io", originOf("https://app.propdesk.io/api"))
	assert.Equal(t, "http://127.0.0.1:8080", originOf("http://127.0.0.1:8080"))
	assert.Equal(t, "", originOf("/api"))
	assert.Equal(t, "", originOf(""))
}

func TestNewRuntime_NeedsAnAPI(t *testing.T) {
	_, err := NewRuntime(&config.Config{TokenFile: filepath.Join(t.TempDir(), "session.yaml")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API configured")
}

func newTestConfig(t *testing.T, backend *testbackend.Backend) *config.Config {
	t.Helper()
	return &config.Config{
		APIBaseURL: backend.URL() + constants.APIPrefix,
		TokenFile:  filepath.Join(t.TempDir(), "session.yaml"),
	}
}

func newTestRuntime(t *testing.T, cfg *config.Config) *Runtime {
	t.Helper()
	rt, err := NewRuntime(cfg, testutil.SilentLogger())
	require.NoError(t, err)
	return rt
}

func TestRuntime_SessionSurvivesRestart(t *testing.T) {
	backend := testbackend.NewBackend(t)
	cfg := newTestConfig(t, backend)
	out := &mockOutputInterface{}

	first := newTestRuntime(t, cfg)
	require.NoError(t, NewLoginService(first.Client, out, first.Close).
		Login(testutil.TestContext(t), "owner@example.com", testbackend.TestPassword))

	// A new process finds the token and the refresh cookie on disk. The
	// expired token is refreshed with the restored cookie.
	backend.ExpireAccessTokens()
	second := newTestRuntime(t, cfg)
	require.NoError(t, NewWhoamiService(second.Client, second.Session, out).Whoami(testutil.TestContext(t)))
	assert.Contains(t, out.texts("KeyValue"), "Email: owner@example.com")
	assert.GreaterOrEqual(t, backend.RefreshCalls.Load(), int32(1))

	require.NoError(t, NewLoginService(second.Client, out, second.Jar.Clear).Logout(testutil.TestContext(t)))

	third := newTestRuntime(t, cfg)
	err := NewWhoamiService(third.Client, third.Session, out).Whoami(testutil.TestContext(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")
}

func TestRuntime_InternalLogsFollowDevMode(t *testing.T) {
	tests := []struct {
		name string
		dev  bool
	}{
		{name: "quiet outside dev mode", dev: false},
		{name: "verbose in dev mode", dev: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := testbackend.NewBackend(t)
			cfg := newTestConfig(t, backend)
			out := &mockOutputInterface{}

			first := newTestRuntime(t, cfg)
			require.NoError(t, NewLoginService(first.Client, out, first.Close).
				Login(testutil.TestContext(t), "owner@example.com", testbackend.TestPassword))
			backend.ExpireAccessTokens()

			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			cfg.Dev = tt.dev
			rt, err := NewRuntime(cfg, log)
			require.NoError(t, err)
			require.NoError(t, NewWhoamiService(rt.Client, rt.Session, out).Whoami(testutil.TestContext(t)))
			require.GreaterOrEqual(t, backend.RefreshCalls.Load(), int32(1))

			if tt.dev {
				assert.Contains(t, buf.String(), "session manager initialized")
				assert.Contains(t, buf.String(), "refreshing access token")
				return
			}
			assert.Empty(t, buf.String())
		})
	}
}

func TestRuntime_LoginReportsSession(t *testing.T) {
	backend := testbackend.NewBackend(t, testbackend.WithAccessTTL(3*time.Hour))
	rt := newTestRuntime(t, newTestConfig(t, backend))
	out := &mockOutputInterface{}

	require.NoError(t, NewLoginService(rt.Client, out, rt.Close).
		Login(testutil.TestContext(t), "technician@example.com", testbackend.TestPassword))

	assert.Equal(t, []string{"Signed in as technician@example.com"}, out.texts("Successf"))
	assert.True(t, out.contains("KeyValue", "Role: Technician"))
	assert.True(t, out.contains("KeyValue", "Tenant: tnt-1"))
	var expiry string
	for _, kv := range out.texts("KeyValue") {
		if strings.HasPrefix(kv, "Token expires") {
			expiry = kv
		}
	}
	assert.Regexp(t, `\((2h 59m|3h 0m)\)$`, expiry)
}

func TestRuntime_WatchEndToEnd(t *testing.T) {
	backend := testbackend.NewBackend(t)
	rt := newTestRuntime(t, newTestConfig(t, backend))
	out := &mockOutputInterface{}

	require.NoError(t, NewLoginService(rt.Client, out, rt.Close).
		Login(testutil.TestContext(t), "tenant@example.com", testbackend.TestPassword))

	ctx, cancel := context.WithCancel(testutil.TestContext(t))
	defer cancel()
	service := NewWatchService(rt.Client, out, func(cache *querycache.Cache, opts notifications.Options) Watcher {
		return rt.NewChannel(cache, opts)
	})
	done := make(chan error, 1)
	go func() { done <- service.Watch(ctx) }()

	require.Eventually(t, func() bool {
		return backend.Socket.Connected() == 1 && out.contains("Successf", "connected")
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, out.contains("Successf", "/socket.io"))

	backend.AddNotification(api.Notification{ID: "ntf-7", Title: "Lease renewal due"})
	require.Eventually(t, func() bool {
		return out.contains("Infof", "New: Lease renewal due") && out.contains("KeyValue", "Unread: 1")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Eventually(t, func() bool { return backend.Socket.Connected() == 0 }, 5*time.Second, 10*time.Millisecond)
}
