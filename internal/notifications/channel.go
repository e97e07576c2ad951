// Package notifications keeps a best-effort real-time connection to the
// backend and uses it to keep the cached unread count and notification list
// current. When the connection is unavailable it falls back to polling.
package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/propdesk/propdesk/internal/api"
	"github.com/propdesk/propdesk/internal/config"
	"github.com/propdesk/propdesk/internal/constants"
	"github.com/propdesk/propdesk/internal/logger"
	"github.com/propdesk/propdesk/internal/notifications/querycache"
	"github.com/propdesk/propdesk/internal/notifications/socketio"
	"github.com/propdesk/propdesk/internal/platform"
)

// State of the real-time connection.
type State int

// Channel states.
const (
	// StateDisabled means no connection is wanted: the feature is off, there
	// is no token, or every candidate failed.
	StateDisabled State = iota
	StateConnecting
	StateConnected
	// StateDisconnected means the connection dropped and the socket is retrying.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// TokenSource provides the access token sent when connecting. A source that
// also has a Subscribe(func(string)) func() method, like
// tokenstore.Observed, lets the channel follow logins and logouts.
type TokenSource interface {
	Get() (string, error)
}

type tokenSubscriber interface {
	Subscribe(fn func(token string)) (unsubscribe func())
}

// Options configures a Channel.
type Options struct {
	Config   *config.Config
	Platform platform.Platform
	Tokens   TokenSource
	Dialer   Dialer
	// Cache receives pushed counts and is invalidated on new notifications
	// and by the poller.
	Cache  *querycache.Cache
	Logger *slog.Logger

	// PollDisconnected and PollConnected default to 30s and 120s.
	PollDisconnected time.Duration
	PollConnected    time.Duration

	// OnStateChange is called from the channel goroutine after each
	// transition. It must not call Mount or Unmount.
	OnStateChange func(State)
	// OnNotification is called from the socket goroutine for every pushed notification.
	OnNotification func(api.Notification)
}

// Status is a snapshot of the channel.
type Status struct {
	State      State
	Path       string
	Transports []string
	// ForcedPolling is set once every path failed with the streaming transport.
	ForcedPolling bool
	// PermanentlyDisabled is set once every path failed with both transports.
	PermanentlyDisabled bool
	PollInterval        time.Duration
}

// Channel is the resilient notification channel. It is mounted by the
// surface that shows notifications and unmounted when that surface goes away.
type Channel struct {
	opts   Options
	logger *slog.Logger
	poller *Poller

	mu            sync.Mutex
	state         State
	mounted       bool
	cancel        context.CancelFunc
	done          chan struct{}
	wake          chan struct{}
	unsubscribe   func()
	pathIndex     int
	forcePolling  bool
	disabled      bool
	everConnected bool
	path          string
	transports    []string

	workers sync.WaitGroup
}

// socketSession scopes lifecycle delivery to one socket.
type socketSession struct {
	lifecycle chan string
	stop      chan struct{}
}

// NewChannel creates an unmounted channel.
func NewChannel(opts Options) *Channel {
	if opts.Cache == nil {
		opts.Cache = querycache.New(nil)
	}
	if opts.PollDisconnected <= 0 {
		opts.PollDisconnected = constants.PollIntervalDisconnected
	}
	if opts.PollConnected <= 0 {
		opts.PollConnected = constants.PollIntervalConnected
	}
	if opts.Config == nil {
		opts.Config = &config.Config{}
	}

	log := logger.ForInternals(opts.Config.Dev, opts.Logger)
	c := &Channel{opts: opts, logger: log}
	c.poller = NewPoller(c.poll, log)
	return c
}

// Cache returns the query cache the channel keeps current.
func (c *Channel) Cache() *querycache.Cache {
	return c.opts.Cache
}

// State returns the current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot of the channel.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:               c.state,
		Path:                c.path,
		Transports:          append([]string(nil), c.transports...),
		ForcedPolling:       c.forcePolling,
		PermanentlyDisabled: c.disabled,
		PollInterval:        c.pollIntervalLocked(),
	}
}

// Mount starts polling and, when enabled and signed in, the real-time
// connection. A fresh mount clears any earlier permanent disablement.
// Mounting a mounted channel does nothing.
func (c *Channel) Mount(ctx context.Context) {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.mounted = true
	c.cancel = cancel
	c.done = make(chan struct{})
	c.wake = make(chan struct{}, 1)
	c.pathIndex, c.forcePolling, c.disabled, c.everConnected = 0, false, false, false
	wake, done := c.wake, c.done
	c.mu.Unlock()

	if sub, ok := c.opts.Tokens.(tokenSubscriber); ok {
		unsubscribe := sub.Subscribe(func(string) {
			select {
			case wake <- struct{}{}:
			default:
			}
		})
		c.mu.Lock()
		c.unsubscribe = unsubscribe
		c.mu.Unlock()
	}

	c.logger.Debug("notification channel mounted")
	c.poller.Start(loopCtx, c.opts.PollDisconnected)
	go c.run(loopCtx, wake, done)
}

// Unmount tears the connection down, stops polling and waits for the
// channel goroutines to exit. Fallback progress is reset.
func (c *Channel) Unmount() {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = false
	cancel, done, unsubscribe := c.cancel, c.done, c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	cancel()
	<-done
	c.workers.Wait()
	c.poller.Stop()

	c.mu.Lock()
	c.pathIndex, c.forcePolling = 0, false
	c.path, c.transports = "", nil
	c.mu.Unlock()
	c.setState(StateDisabled)
	c.logger.Debug("notification channel unmounted")
}

func (c *Channel) run(ctx context.Context, wake <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		token := c.token()
		if c.opts.Config.NotificationsDisabled || token == "" || c.permanentlyDisabled() {
			c.setState(StateDisabled)
			select {
			case <-ctx.Done():
				return
			case <-wake:
				continue
			}
		}
		c.connect(ctx, wake, token)
	}
}

// connect makes one attempt on the current candidate and, on success,
// supervises the socket until it has to be replaced.
func (c *Channel) connect(ctx context.Context, wake <-chan struct{}, token string) {
	c.setState(StateConnecting)

	conn, err := ResolveConfig(c.opts.Config, c.opts.Platform)
	if err != nil {
		c.logger.Warn("notifications disabled", "error", err)
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		return
	}

	path, transports := c.candidate(conn.Paths)
	sess := &socketSession{lifecycle: make(chan string, 1), stop: make(chan struct{})}

	c.logger.Debug("connecting notifications", "origin", conn.Origin, "path", path, "transports", transports)
	sock, err := c.opts.Dialer.Dial(ctx, DialOptions{
		Origin:     conn.Origin,
		Path:       path,
		Transports: transports,
		Token:      token,
		OnEvent:    c.handler(ctx, sess),
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Debug("notifications connect error", "path", path, "transports", transports, "error", err)
		c.advance(len(conn.Paths))
		return
	}

	c.mu.Lock()
	c.path, c.transports, c.everConnected = path, transports, true
	c.mu.Unlock()
	c.setState(StateConnected)

	c.supervise(ctx, wake, sock, sess, token, len(conn.Paths))
}

func (c *Channel) supervise(ctx context.Context, wake <-chan struct{}, sock Socket, sess *socketSession, token string, candidates int) {
	closeSocket := func() {
		close(sess.stop)
		if err := sock.Close(); err != nil {
			c.logger.Debug("failed to close notifications socket", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			closeSocket()
			return
		case <-wake:
			current := c.token()
			if current == token {
				continue
			}
			closeSocket()
			if current == "" {
				c.logger.Debug("access token cleared, notifications torn down")
				c.mu.Lock()
				c.pathIndex, c.forcePolling = 0, false
				c.mu.Unlock()
			} else {
				c.logger.Debug("access token changed, reconnecting notifications")
			}
			return
		case event := <-sess.lifecycle:
			switch event {
			case constants.EventDisconnect:
				c.setState(StateDisconnected)
			case constants.EventConnect:
				c.setState(StateConnected)
			case constants.EventConnectError, constants.EventReconnectFailed:
				c.logger.Debug("notifications reconnect failed", "event", event)
				closeSocket()
				c.advance(candidates)
				return
			}
		}
	}
}

// candidate returns the path and transports of the next attempt.
func (c *Channel) candidate(paths []string) (string, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pathIndex >= len(paths) {
		c.pathIndex = 0
	}
	if c.forcePolling {
		return paths[c.pathIndex], []string{socketio.TransportPolling}
	}
	return paths[c.pathIndex], []string{socketio.TransportWebSocket, socketio.TransportPolling}
}

// advance moves to the next candidate path, then to polling-only over all
// paths, then gives up for the rest of the mount.
func (c *Channel) advance(candidates int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.pathIndex+1 < candidates:
		c.pathIndex++
	case !c.forcePolling:
		c.forcePolling = true
		c.pathIndex = 0
	default:
		c.disabled = true
		c.pathIndex = 0
		c.forcePolling = false
		c.logger.Debug("notifications permanently disabled for this session")
	}
}

func (c *Channel) handler(ctx context.Context, sess *socketSession) func(string, json.RawMessage) {
	return func(event string, data json.RawMessage) {
		switch event {
		case constants.EventNotificationCount:
			c.applyCount(data)
		case constants.EventNotificationNew:
			c.applyNew(ctx, data)
		case constants.EventConnect, constants.EventDisconnect,
			constants.EventConnectError, constants.EventReconnectFailed:
			select {
			case sess.lifecycle <- event:
			case <-sess.stop:
			}
		default:
			c.logger.Debug("ignoring notifications event", "event", event)
		}
	}
}

// applyCount writes a pushed count straight into the cache.
func (c *Channel) applyCount(data json.RawMessage) {
	var payload api.UnreadCount
	if err := json.Unmarshal(data, &payload); err != nil {
		var bare int
		if json.Unmarshal(data, &bare) != nil {
			c.logger.Debug("dropping malformed count event", "error", err)
			return
		}
		payload.Count = bare
	}
	c.opts.Cache.Set(constants.QueryUnreadCount, payload.Count)
}

// applyNew refetches the unread count and the notification list in the background.
func (c *Channel) applyNew(ctx context.Context, data json.RawMessage) {
	var n api.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		c.logger.Debug("undecodable notification payload", "error", err)
	} else if c.opts.OnNotification != nil {
		c.opts.OnNotification(n)
	}

	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		if err := c.opts.Cache.Invalidate(ctx, constants.QueryUnreadCount, constants.QueryNotificationList); err != nil {
			c.logger.Debug("refetch after new notification failed", "error", err)
		}
	}()
}

func (c *Channel) poll(ctx context.Context) {
	if err := c.opts.Cache.Invalidate(ctx, constants.QueryUnreadCount, constants.QueryNotificationList); err != nil {
		c.logger.Debug("notification poll failed", "error", err)
	}
}

func (c *Channel) token() string {
	if c.opts.Tokens == nil {
		return ""
	}
	token, err := c.opts.Tokens.Get()
	if err != nil {
		c.logger.Warn("failed to read access token", "error", err)
		return ""
	}
	return token
}

func (c *Channel) permanentlyDisabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	interval := c.pollIntervalLocked()
	c.mu.Unlock()

	c.poller.SetInterval(interval)
	if !changed {
		return
	}
	c.logger.Debug("notification channel state changed", "state", s.String())
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

// pollIntervalLocked is the safety-net cadence while connected, or once
// connected and later disabled, and the short cadence otherwise.
func (c *Channel) pollIntervalLocked() time.Duration {
	if c.state == StateConnected || (c.state == StateDisabled && c.everConnected) {
		return c.opts.PollConnected
	}
	return c.opts.PollDisconnected
}
