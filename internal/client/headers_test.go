package client

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaders(t *testing.T) {
	h := NewHeaders("Accept", "application/json", "X-Tenant", "t1", "dangling")

	assert.Equal(t, 2, h.Len())
	assert.Equal(t, "application/json", h.Get("accept"))
	assert.True(t, h.Has("x-tenant"))
	assert.False(t, h.Has("dangling"))

	h.Add("x-tenant", "t2")
	assert.Equal(t, []string{"t1", "t2"}, h.Values("X-Tenant"))

	h.Set("X-TENANT", "t3")
	assert.Equal(t, []string{"t3"}, h.Values("x-tenant"))
	assert.Equal(t, []string{"Accept", "X-Tenant"}, h.Names(), "Set keeps the original position")

	h.Set("Authorization", "Bearer abc")
	assert.Equal(t, []string{"Accept", "X-Tenant", "Authorization"}, h.Names())

	h.Del("authorization")
	assert.False(t, h.Has("Authorization"))
	assert.Empty(t, h.Get("Authorization"))
}

func TestHeaders_ZeroValue(t *testing.T) {
	var h Headers
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Get("Accept"))
	h.Del("Accept")
	h.Set("Accept", "text/plain")
	assert.Equal(t, "text/plain", h.Get("Accept"))
}

func TestHeaders_CloneIsIndependent(t *testing.T) {
	original := NewHeaders("Accept", "application/json")
	clone := original.Clone()

	clone.Set("Accept", "text/plain")
	clone.Set("X-Extra", "1")

	assert.Equal(t, "application/json", original.Get("Accept"))
	assert.False(t, original.Has("X-Extra"))
}

func TestHeaders_HTTPBoundary(t *testing.T) {
	h := NewHeaders("x-request-id", "abc", "Accept", "a", "accept", "b")

	dst := http.Header{}
	dst.Set("Accept", "stale")
	h.applyTo(dst)

	assert.Equal(t, "abc", dst.Get("X-Request-Id"))
	assert.Equal(t, []string{"a", "b"}, dst.Values("Accept"))

	src := http.Header{}
	src.Add("Set-Cookie", "a=1")
	src.Add("Set-Cookie", "b=2")
	src.Set("Content-Type", "application/json")

	back := headersFromHTTP(src)
	assert.Equal(t, []string{"Content-Type", "Set-Cookie"}, back.Names())
	assert.Equal(t, []string{"a=1", "b=2"}, back.Values("set-cookie"))
}
