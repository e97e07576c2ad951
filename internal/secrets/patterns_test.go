package secrets

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSecretName(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"access_token", true},
		{"refreshToken", true},
		{"password", true},
		{"Authorization", true},
		{"Set-Cookie", true},
		{"X-XSRF-TOKEN", true},
		{"x-api-key", true},
		{"email", false},
		{"unreadCount", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsSecretName(tt.name))
		})
	}
}

func TestIsSecretNameWithPatterns(t *testing.T) {
	assert.True(t, IsSecretNameWithPatterns("tenant_pin", []string{"PIN"}))
	assert.False(t, IsSecretNameWithPatterns("access_token", []string{"PIN"}))
}

func TestRedactJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "token response",
			body:     `{"access_token":"eyJhbGciOi","expires_in":900,"user":{"email":"a@b.c"}}`,
			expected: `{"access_token":"[REDACTED]","expires_in":900,"user":{"email":"a@b.c"}}`,
		},
		{
			name:     "nested in arrays",
			body:     `{"sessions":[{"id":"s1","refreshToken":"r1"}]}`,
			expected: `{"sessions":[{"id":"s1","refreshToken":"[REDACTED]"}]}`,
		},
		{
			name:     "non-string secret fields are kept",
			body:     `{"token_count":3}`,
			expected: `{"token_count":3}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.expected, string(RedactJSON([]byte(tt.body))))
		})
	}
}

func TestRedactJSON_ReturnsInputUnchanged(t *testing.T) {
	for _, body := range []string{`not json`, `{"email":"a@b.c","count":1}`, ``} {
		assert.Equal(t, body, string(RedactJSON([]byte(body))))
	}
}

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer abc")
	h.Set("X-XSRF-TOKEN", "xyz")
	h.Add("Accept", "application/json")
	h.Add("Accept", "text/plain")

	got := RedactHeaders(h)
	require.Len(t, got, 3)
	assert.Equal(t, Redacted, got["Authorization"])
	assert.Equal(t, Redacted, got["X-Xsrf-Token"])
	assert.Equal(t, "application/json, text/plain", got["Accept"])
}
