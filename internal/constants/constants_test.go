package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion(t *testing.T) {
	v := GetVersion()
	assert.NotNil(t, v, "Version should not be nil")
	assert.NotEmpty(t, *v, "Version should not be empty")

	v2 := GetVersion()
	assert.Equal(t, v, v2, "GetVersion should return the same pointer")
}

func TestConfigPaths(t *testing.T) {
	tests := []struct {
		name    string
		homeDir string
		dir     string
		file    string
		token   string
	}{
		{
			name:    "standard home directory",
			homeDir: "/home/user",
			dir:     "/home/user/.propdesk",
			file:    "/home/user/.propdesk/config.yaml",
			token:   "/home/user/.propdesk/session.yaml",
		},
		{
			name:    "empty home directory",
			homeDir: "",
			dir:     "/.propdesk",
			file:    "/.propdesk/config.yaml",
			token:   "/.propdesk/session.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.dir, ConfigDirPath(tt.homeDir))
			assert.Equal(t, tt.file, ConfigFilePath(tt.homeDir))
			assert.Equal(t, tt.token, TokenFilePath(tt.homeDir))
		})
	}
}

func TestRefreshExemptPaths(t *testing.T) {
	paths := RefreshExemptPaths()
	assert.ElementsMatch(t, []string{"/auth/login", "/auth/register", "/auth/refresh", "/auth/logout"}, paths)
	assert.NotContains(t, paths, AuthMePath)
}

func TestStateChangingMethods(t *testing.T) {
	assert.Equal(t, []string{"POST", "PUT", "PATCH", "DELETE"}, StateChangingMethods())
}
