package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Lifecycle events delivered to Options.OnEvent next to server events.
const (
	// EventConnect is delivered after a successful reconnection.
	// The initial connection is signalled by Dial returning.
	EventConnect = "connect"
	// EventDisconnect carries the reason as a JSON string.
	EventDisconnect = "disconnect"
	// EventConnectError is delivered for each failed reconnection attempt.
	EventConnectError = "connect_error"
	// EventReconnectFailed is delivered once all reconnection attempts failed.
	EventReconnectFailed = "reconnect_failed"
)

// Disconnect reasons.
const (
	ReasonServerDisconnect = "io server disconnect"
	ReasonClientDisconnect = "io client disconnect"
	ReasonTransportClose   = "transport close"
	ReasonTransportError   = "transport error"
	ReasonPingTimeout      = "ping timeout"
)

const (
	defaultConnectTimeout = 20 * time.Second
	defaultPath           = "/socket.io"
)

var errServerDisconnect = errors.New(ReasonServerDisconnect)

// Options configures a Client.
type Options struct {
	// URL is the server origin, e.g. wss://app.example.com.
	URL string
	// Path is the Engine.IO endpoint path. Defaults to /socket.io.
	Path string
	// Transports are tried in order on every (re)connection.
	// Defaults to websocket then polling.
	Transports []string
	// Auth is sent with the Socket.IO connect packet.
	Auth any
	// Header is added to every handshake and polling request.
	Header http.Header

	HTTPClient      *http.Client
	WebSocketDialer *websocket.Dialer
	// ConnectTimeout bounds one connection attempt across all transports.
	ConnectTimeout time.Duration
	Reconnect      Backoff
	Logger         *slog.Logger

	// OnEvent receives server events and lifecycle events. It is called from
	// the client's read goroutine and must not block for long.
	OnEvent func(event string, data json.RawMessage)
}

// Client is a connected Socket.IO client.
type Client struct {
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool

	mu        sync.Mutex
	tr        transport
	sid       string
	handshake Handshake
}

// Dial connects to the server and starts the read loop. It returns once the
// Socket.IO connect packet has been acknowledged, or with the error of the
// last transport tried.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	opts = withDefaults(opts)

	c := &Client{
		opts:   opts,
		logger: opts.Logger,
		done:   make(chan struct{}),
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	go c.run()
	return c, nil
}

func withDefaults(opts Options) Options {
	if opts.Path == "" {
		opts.Path = defaultPath
	}
	if len(opts.Transports) == 0 {
		opts.Transports = []string{TransportWebSocket, TransportPolling}
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.WebSocketDialer == nil {
		opts.WebSocketDialer = websocket.DefaultDialer
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return opts
}

// ID returns the Socket.IO session id of the current connection.
func (c *Client) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sid
}

// Transport returns the name of the transport in use.
func (c *Client) Transport() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tr == nil {
		return ""
	}
	return c.tr.name()
}

// Emit sends an event to the server.
func (c *Client) Emit(ctx context.Context, event string, data any) error {
	packet, err := EncodeEvent(event, data)
	if err != nil {
		return err
	}
	tr := c.current()
	if tr == nil || c.closed.Load() {
		return errTransportClosed
	}
	return tr.send(ctx, packet)
}

// Close disconnects from the server and stops reconnection. No events are
// delivered once Close returns, except from a handler already running.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()

	var err error
	if tr := c.current(); tr != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = tr.send(ctx, string([]byte{PacketMessage, SocketDisconnect}))
		cancel()
		err = tr.close()
	}
	<-c.done
	return err
}

// Done is closed when the client stops for good: after Close, a server
// disconnect, or exhausted reconnection attempts.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) current() transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tr
}

// connect performs one connection attempt, trying each transport in turn.
func (c *Client) connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	var errs []error
	for _, name := range c.opts.Transports {
		tr, hs, sid, err := c.open(ctx, name)
		if err == nil {
			c.mu.Lock()
			c.tr, c.handshake, c.sid = tr, hs, sid
			c.mu.Unlock()
			c.logger.Debug("socket connected", "transport", name, "path", c.opts.Path, "sid", sid)
			return nil
		}
		c.logger.Debug("socket transport failed", "transport", name, "path", c.opts.Path, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

// open runs the Engine.IO and Socket.IO handshakes over one transport.
func (c *Client) open(ctx context.Context, name string) (transport, Handshake, string, error) {
	var (
		tr  transport
		hs  Handshake
		err error
	)
	switch name {
	case TransportWebSocket:
		var target string
		if target, err = endpoint(c.opts.URL, c.opts.Path, TransportWebSocket, ""); err != nil {
			return nil, hs, "", err
		}
		tr, hs, err = dialWebSocket(ctx, c.opts.WebSocketDialer, target, c.opts.Header)
	case TransportPolling:
		tr, hs, err = dialPolling(ctx, c.opts.HTTPClient, c.opts.URL, c.opts.Path, c.opts.Header)
	default:
		return nil, hs, "", fmt.Errorf("unknown transport %q", name)
	}
	if err != nil {
		return nil, hs, "", err
	}

	sid, err := c.handshakeNamespace(ctx, tr)
	if err != nil {
		_ = tr.close()
		return nil, hs, "", err
	}
	return tr, hs, sid, nil
}

func (c *Client) handshakeNamespace(ctx context.Context, tr transport) (string, error) {
	connect, err := EncodeConnect(c.opts.Auth)
	if err != nil {
		return "", err
	}
	if err = tr.send(ctx, connect); err != nil {
		return "", err
	}

	for {
		packets, err := tr.receive(ctx)
		if err != nil {
			return "", err
		}
		for _, p := range packets {
			switch {
			case p == string(PacketPing):
				if err = tr.send(ctx, string(PacketPong)); err != nil {
					return "", err
				}
			case len(p) >= 2 && p[0] == PacketMessage && p[1] == SocketConnect:
				var ack struct {
					SID string `json:"sid"`
				}
				_ = json.Unmarshal([]byte(p[2:]), &ack)
				return ack.SID, nil
			case len(p) >= 2 && p[0] == PacketMessage && p[1] == SocketConnectError:
				return "", parseConnectError(p[2:])
			case p != "" && p[0] == PacketClose:
				return "", errors.New("server closed the connection during handshake")
			}
		}
	}
}

// run reads until the connection drops, then reconnects per the backoff policy.
func (c *Client) run() {
	defer close(c.done)

	for {
		reason := c.readLoop()
		if c.closed.Load() {
			return
		}

		c.logger.Debug("socket disconnected", "reason", reason)
		c.emitLifecycle(EventDisconnect, reason)
		if reason == ReasonServerDisconnect {
			return
		}

		if !c.reconnect() {
			if !c.closed.Load() {
				c.emitLifecycle(EventReconnectFailed, nil)
			}
			return
		}
		c.emitLifecycle(EventConnect, nil)
	}
}

func (c *Client) readLoop() string {
	tr := c.current()
	c.mu.Lock()
	window := time.Duration(c.handshake.PingInterval+c.handshake.PingTimeout) * time.Millisecond
	c.mu.Unlock()

	for {
		ctx, cancel := c.ctx, context.CancelFunc(func() {})
		if window > 0 {
			ctx, cancel = context.WithTimeout(c.ctx, window)
		}
		packets, err := tr.receive(ctx)
		timedOut := ctx.Err() == context.DeadlineExceeded
		cancel()

		if err != nil {
			if c.closed.Load() {
				return ReasonClientDisconnect
			}
			_ = tr.close()
			var netErr interface{ Timeout() bool }
			switch {
			case timedOut || (errors.As(err, &netErr) && netErr.Timeout()):
				return ReasonPingTimeout
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				return ReasonTransportClose
			default:
				return ReasonTransportError
			}
		}

		for _, p := range packets {
			if err = c.handlePacket(tr, p); err != nil {
				_ = tr.close()
				if errors.Is(err, errServerDisconnect) {
					return ReasonServerDisconnect
				}
				return ReasonTransportClose
			}
		}
	}
}

func (c *Client) handlePacket(tr transport, p string) error {
	if p == "" {
		return nil
	}
	switch p[0] {
	case PacketPing:
		ctx, cancel := context.WithTimeout(c.ctx, time.Second*5)
		defer cancel()
		return tr.send(ctx, string(PacketPong))
	case PacketClose:
		return errTransportClosed
	case PacketMessage:
		if len(p) < 2 {
			return nil
		}
		switch p[1] {
		case SocketEvent:
			event, data, err := DecodeEvent(p[2:])
			if err != nil {
				c.logger.Debug("dropping malformed event", "error", err)
				return nil
			}
			c.deliver(event, data)
		case SocketDisconnect:
			return errServerDisconnect
		}
	}
	return nil
}

// reconnect retries the connection with backoff. It reports false when the
// attempts ran out or the client was closed.
func (c *Client) reconnect() bool {
	for attempt := 0; attempt < c.opts.Reconnect.Attempts; attempt++ {
		delay := c.opts.Reconnect.Delay(attempt)
		c.logger.Debug("socket reconnecting", "attempt", attempt+1, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}

		err := c.connect(c.ctx)
		if err == nil {
			if c.closed.Load() {
				if tr := c.current(); tr != nil {
					_ = tr.close()
				}
				return false
			}
			return true
		}
		if c.closed.Load() {
			return false
		}
		message, _ := json.Marshal(map[string]string{"message": err.Error()})
		c.deliver(EventConnectError, message)
	}
	return false
}

func (c *Client) emitLifecycle(event string, reason any) {
	var data json.RawMessage
	if reason != nil {
		data, _ = json.Marshal(reason)
	}
	c.deliver(event, data)
}

func (c *Client) deliver(event string, data json.RawMessage) {
	if c.closed.Load() || c.opts.OnEvent == nil {
		return
	}
	c.opts.OnEvent(event, data)
}
