package session

import (
	"testing"
	"time"

	"github.com/propdesk/propdesk/internal/testutil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestParseClaims(t *testing.T) {
	exp := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	token := signed(t, jwt.MapClaims{
		"sub":      "user-42",
		"email":    "manager@propdesk.io",
		"role":     "property_manager",
		"tenantId": "tenant-7",
		"exp":      exp.Unix(),
	})

	claims, err := ParseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, "manager@propdesk.io", claims.Email)
	assert.Equal(t, "property_manager", claims.Role)
	assert.Equal(t, "tenant-7", claims.TenantID)
	require.NotNil(t, claims.ExpiresAt)

	assert.False(t, claims.Expired(exp.Add(-time.Minute)))
	assert.True(t, claims.Expired(exp))
}

func TestParseClaims_ExpiredTokenStillParses(t *testing.T) {
	token := signed(t, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-time.Hour).Unix()})

	claims, err := ParseClaims(token)
	require.NoError(t, err)
	assert.True(t, claims.Expired(time.Now()))
}

func TestParseClaims_Opaque(t *testing.T) {
	_, err := ParseClaims("opaque-session-token")
	require.Error(t, err)

	claims := &Claims{}
	assert.False(t, claims.Expired(time.Now()), "no expiry means not expired")
}

func TestParseClaims_BackendToken(t *testing.T) {
	user := testutil.NewUser()
	claims, err := ParseClaims(testutil.MintToken(t, user, time.Hour))
	require.NoError(t, err)

	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, user.Role, claims.Role)
	assert.Equal(t, user.TenantID, claims.TenantID)
	assert.False(t, claims.Expired(time.Now()))
	assert.True(t, claims.Expired(time.Now().Add(2*time.Hour)))
}
