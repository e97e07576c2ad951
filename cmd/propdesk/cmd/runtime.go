package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/propdesk/propdesk/internal/auth/session"
	"github.com/propdesk/propdesk/internal/auth/tokenstore"
	"github.com/propdesk/propdesk/internal/client"
	"github.com/propdesk/propdesk/internal/client/output"
	"github.com/propdesk/propdesk/internal/config"
	"github.com/propdesk/propdesk/internal/constants"
	"github.com/propdesk/propdesk/internal/logger"
	"github.com/propdesk/propdesk/internal/notifications"
	"github.com/propdesk/propdesk/internal/notifications/querycache"
	"github.com/propdesk/propdesk/internal/platform"

	"github.com/spf13/cobra"
)

// Runtime is the client stack shared by the commands: the persisted session,
// the authenticated API client and, on demand, the notification channel.
type Runtime struct {
	Config   *config.Config
	Platform *platform.Runtime
	Jar      *platform.FileJar
	Tokens   *tokenstore.Observed
	Session  *session.Manager
	Client   *client.Client
	Logger   *slog.Logger
}

// NewRuntime wires the stack for cfg. The access token and the refresh cookie
// are read from and written back to the files next to cfg.TokenFile.
func NewRuntime(cfg *config.Config, log *slog.Logger) (*Runtime, error) {
	if log == nil {
		log = slog.Default()
	}

	origin := cfg.Origin
	if origin == "" {
		origin = originOf(cfg.APIBaseURL)
	}
	if origin == "" {
		return nil, errors.New("no API configured: run 'propdesk configure' or set PROPDESK_API_BASE_URL")
	}

	baseURL := absoluteBaseURL(cfg.APIBaseURL, origin)
	jar, err := platform.NewFileJar(filepath.Join(filepath.Dir(cfg.TokenFile), constants.CookieFileName), baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie jar: %w", err)
	}

	p, err := platform.New(platform.Options{
		Origin:    origin,
		CookieURL: baseURL,
		Jar:       jar,
		OnRedirect: func(path string) {
			if path == constants.SignInPath {
				output.Warningf("Session ended, run 'propdesk login' to sign in again")
			}
		},
	})
	if err != nil {
		return nil, err
	}

	tokens := tokenstore.NewObserved(tokenstore.NewFile(cfg.TokenFile))
	sess := session.NewManager(session.Options{
		Store:    tokens,
		Platform: p,
		Logger:   logger.ForInternals(cfg.Dev, log),
	})
	sess.Initialize()

	c, err := client.New(cfg, sess, p, log)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		Config:   cfg,
		Platform: p,
		Jar:      jar,
		Tokens:   tokens,
		Session:  sess,
		Client:   c,
		Logger:   log,
	}, nil
}

// Close persists the session cookies.
func (r *Runtime) Close() error {
	return r.Jar.Save()
}

// internalLogger is the logger for session, cache and transport internals.
// They stay silent outside dev mode.
func (r *Runtime) internalLogger() *slog.Logger {
	return logger.ForInternals(r.Config.Dev, r.Logger)
}

// NewCache returns a query cache fed by the client's notification endpoints.
func (r *Runtime) NewCache() *querycache.Cache {
	cache := querycache.New(r.internalLogger())
	cache.Register(constants.QueryUnreadCount, func(ctx context.Context) (any, error) {
		return r.Client.UnreadCount(ctx)
	})
	cache.Register(constants.QueryNotificationList, func(ctx context.Context) (any, error) {
		return r.Client.ListNotifications(ctx)
	})
	return cache
}

// NewChannel returns an unmounted notification channel for this runtime.
func (r *Runtime) NewChannel(cache *querycache.Cache, opts notifications.Options) *notifications.Channel {
	opts.Config = r.Config
	opts.Platform = r.Platform
	opts.Tokens = r.Tokens
	opts.Cache = cache
	opts.Logger = r.Logger
	if opts.Dialer == nil {
		opts.Dialer = notifications.NewSocketIODialer(r.internalLogger())
	}
	return notifications.NewChannel(opts)
}

// originOf returns scheme://host of raw, or "" when raw is not absolute.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// absoluteBaseURL resolves a possibly relative API base URL against origin.
func absoluteBaseURL(configured, origin string) string {
	base := strings.TrimRight(strings.TrimSpace(configured), "/")
	if base == "" {
		base = constants.APIPrefix
	}
	if originOf(base) != "" {
		return base
	}
	return origin + "/" + strings.TrimLeft(base, "/")
}

// loadRuntime builds the Runtime for a command from the config in its context.
func loadRuntime(cmd *cobra.Command) (*Runtime, error) {
	cfg, err := getConfigFromContext(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewRuntime(cfg, slog.Default())
}
