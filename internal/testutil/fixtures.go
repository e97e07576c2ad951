// Package testutil provides shared testing utilities and helpers.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/propdesk/propdesk/internal/api"
	"github.com/propdesk/propdesk/internal/constants"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// TokenSigningKey signs the access tokens minted by MintToken.
var TokenSigningKey = []byte("propdesk-test-signing-key")

var notificationSeq atomic.Int64

// NotificationBuilder provides a fluent interface for building test notifications.
type NotificationBuilder struct {
	notification *api.Notification
}

// NewNotificationBuilder creates a new NotificationBuilder with sensible defaults.
func NewNotificationBuilder() *NotificationBuilder {
	return &NotificationBuilder{
		notification: &api.Notification{
			ID:        "ntf-" + strconv.FormatInt(notificationSeq.Add(1), 10),
			Title:     "Inspection scheduled",
			Type:      "inspection",
			CreatedAt: time.Now().UTC().Truncate(time.Second),
		},
	}
}

// WithID sets the notification ID.
func (b *NotificationBuilder) WithID(id string) *NotificationBuilder {
	b.notification.ID = id
	return b
}

// WithTitle sets the notification title.
func (b *NotificationBuilder) WithTitle(title string) *NotificationBuilder {
	b.notification.Title = title
	return b
}

// Read marks the notification as read.
func (b *NotificationBuilder) Read() *NotificationBuilder {
	b.notification.Read = true
	return b
}

// Build returns the constructed Notification.
func (b *NotificationBuilder) Build() api.Notification {
	return *b.notification
}

// NewUser returns a tenant user with predictable fields.
func NewUser() *api.User {
	return &api.User{
		ID:       "usr-1",
		Email:    "manager@example.com",
		Name:     "Pat Manager",
		Role:     "property_manager",
		TenantID: "tnt-1",
	}
}

// MintToken signs a JWT access token for user that expires after ttl.
func MintToken(t *testing.T, user *api.User, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"email":    user.Email,
		"role":     user.Role,
		"tenantId": user.TenantID,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(TokenSigningKey)
	require.NoError(t, err)
	return signed
}

// TestContext creates a test context with a reasonable timeout that is
// cancelled when the test finishes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), constants.TestContextTimeout)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithCancel is TestContext with its cancel function.
func TestContextWithCancel(t *testing.T) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.TestContextTimeout)
	t.Cleanup(cancel)
	return ctx, cancel
}

// SilentLogger creates a logger that discards all output.
func SilentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
