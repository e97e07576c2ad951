package notifications

import (
	"testing"

	"github.com/propdesk/propdesk/internal/config"
	apperrors "github.com/propdesk/propdesk/internal/errors"
	"github.com/propdesk/propdesk/internal/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfig(t *testing.T) {
	tests := []struct {
		name       string
		cfg        *config.Config
		origin     string
		wantOrigin string
		wantPaths  []string
		wantErr    bool
	}{
		{
			name:       "page origin only",
			origin:     "https://app.propdesk.io",
			cfg:        &config.Config{},
			wantOrigin: "wss://app.propdesk.io",
			wantPaths:  []string{"/socket.io", "/api/socket.io"},
		},
		{
			name:       "api base url with path",
			origin:     "https://app.propdesk.io",
			cfg:        &config.Config{APIBaseURL: "http://localhost:4000/api"},
			wantOrigin: "ws://localhost:4000",
			wantPaths:  []string{"/api/socket.io", "/socket.io"},
		},
		{
			name:   "notifications url wins",
			origin: "https://app.propdesk.io",
			cfg: &config.Config{
				APIBaseURL:       "https://api.propdesk.io/v2",
				NotificationsURL: "https://rt.propdesk.io/push",
			},
			wantOrigin: "wss://rt.propdesk.io",
			wantPaths:  []string{"/push/socket.io", "/socket.io", "/api/socket.io"},
		},
		{
			name:   "override path first and deduplicated",
			origin: "https://app.propdesk.io",
			cfg: &config.Config{
				APIBaseURL:        "https://app.propdesk.io/backend",
				NotificationsPath: "/socket.io/",
			},
			wantOrigin: "wss://app.propdesk.io",
			wantPaths:  []string{"/socket.io", "/backend/socket.io", "/api/socket.io"},
		},
		{
			name:       "relative api base url resolved against page origin",
			origin:     "http://localhost:3000",
			cfg:        &config.Config{APIBaseURL: "/api", NotificationsPath: "notifications"},
			wantOrigin: "ws://localhost:3000",
			wantPaths:  []string{"/notifications", "/api/socket.io", "/socket.io"},
		},
		{
			name:       "notifications url without path",
			cfg:        &config.Config{APIBaseURL: "/api", NotificationsURL: "wss://rt.propdesk.io"},
			wantOrigin: "wss://rt.propdesk.io",
			wantPaths:  []string{"/socket.io", "/api/socket.io"},
		},
		{
			name:    "nothing to derive from",
			cfg:     &config.Config{APIBaseURL: "/api"},
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			cfg:     &config.Config{NotificationsURL: "ftp://files.propdesk.io"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := platform.New(platform.Options{Origin: tt.origin})
			require.NoError(t, err)

			got, err := ResolveConfig(tt.cfg, p)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrChannelDegradedCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOrigin, got.Origin)
			assert.Equal(t, tt.wantPaths, got.Paths)
		})
	}
}

func TestResolveConfig_NilInputs(t *testing.T) {
	_, err := ResolveConfig(nil, nil)
	assert.Error(t, err)
}

func TestCleanPath(t *testing.T) {
	assert.Equal(t, "", cleanPath("  "))
	assert.Equal(t, "/a/b", cleanPath("a//b/"))
	assert.Equal(t, "/", cleanPath("/"))
}
