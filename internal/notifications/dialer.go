package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/propdesk/propdesk/internal/constants"
	"github.com/propdesk/propdesk/internal/notifications/socketio"
)

// Socket is an established real-time connection.
type Socket interface {
	Close() error
}

// DialOptions describes one connection attempt.
type DialOptions struct {
	Origin     string
	Path       string
	Transports []string
	// Token is sent as the connection auth payload.
	Token string
	// OnEvent receives server and lifecycle events for the lifetime of the socket.
	OnEvent func(event string, data json.RawMessage)
}

// Dialer opens real-time connections. Dial blocks until the connection is
// acknowledged or the attempt failed.
type Dialer interface {
	Dial(ctx context.Context, opts DialOptions) (Socket, error)
}

// SocketIODialer is the Socket.IO backed Dialer.
type SocketIODialer struct {
	HTTPClient     *http.Client
	Header         http.Header
	ConnectTimeout time.Duration
	Reconnect      socketio.Backoff
	Logger         *slog.Logger
}

// NewSocketIODialer returns a dialer with the default timeout and reconnect policy.
func NewSocketIODialer(logger *slog.Logger) *SocketIODialer {
	return &SocketIODialer{
		ConnectTimeout: constants.SocketConnectTimeout,
		Reconnect: socketio.Backoff{
			Base:     constants.ReconnectBaseDelay,
			Max:      constants.ReconnectMaxDelay,
			Attempts: constants.ReconnectAttempts,
		},
		Logger: logger,
	}
}

// Dial implements Dialer.
func (d *SocketIODialer) Dial(ctx context.Context, opts DialOptions) (Socket, error) {
	return socketio.Dial(ctx, socketio.Options{
		URL:            opts.Origin,
		Path:           opts.Path,
		Transports:     opts.Transports,
		Auth:           map[string]string{"token": opts.Token},
		Header:         d.Header,
		HTTPClient:     d.HTTPClient,
		ConnectTimeout: d.ConnectTimeout,
		Reconnect:      d.Reconnect,
		Logger:         d.Logger,
		OnEvent:        opts.OnEvent,
	})
}
