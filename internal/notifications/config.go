package notifications

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/propdesk/propdesk/internal/config"
	"github.com/propdesk/propdesk/internal/constants"
	apperrors "github.com/propdesk/propdesk/internal/errors"
	"github.com/propdesk/propdesk/internal/platform"
)

// ConnectionConfig is where the channel connects to.
type ConnectionConfig struct {
	// Origin is the ws:// or wss:// origin of the notification endpoint.
	Origin string
	// Paths are the candidate endpoint paths, in the order they are tried.
	Paths []string
}

// ResolveConfig derives the socket origin from, in order, the notifications
// URL override, the API base URL and the platform origin. Relative URLs are
// resolved against the platform origin.
func ResolveConfig(cfg *config.Config, p platform.Platform) (ConnectionConfig, error) {
	var pageOrigin string
	if p != nil {
		pageOrigin = p.Origin()
	}
	var notificationsURL, apiBaseURL, overridePath string
	if cfg != nil {
		notificationsURL, apiBaseURL, overridePath = cfg.NotificationsURL, cfg.APIBaseURL, cfg.NotificationsPath
	}

	for _, candidate := range []string{notificationsURL, apiBaseURL, pageOrigin} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		u, err := resolveAgainst(candidate, pageOrigin)
		if err != nil || u.Host == "" {
			continue
		}

		origin, err := socketOrigin(u)
		if err != nil {
			return ConnectionConfig{}, err
		}
		return ConnectionConfig{
			Origin: origin,
			Paths:  candidatePaths(overridePath, u.Path),
		}, nil
	}

	return ConnectionConfig{}, apperrors.ErrChannelDegraded("cannot derive a notifications origin", nil)
}

func resolveAgainst(raw, pageOrigin string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Host != "" || pageOrigin == "" {
		return u, nil
	}
	base, err := url.Parse(pageOrigin)
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(u), nil
}

func socketOrigin(u *url.URL) (string, error) {
	var scheme string
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		scheme = "wss"
	case "http", "ws", "":
		scheme = "ws"
	default:
		return "", apperrors.ErrChannelDegraded(fmt.Sprintf("unsupported notifications scheme %q", u.Scheme), nil)
	}
	return scheme + "://" + u.Host, nil
}

// candidatePaths returns override, <basePath>/socket.io, /socket.io and
// /api/socket.io with duplicates and empty entries removed.
func candidatePaths(override, basePath string) []string {
	base := cleanPath(basePath)
	if base == "/" {
		base = ""
	}

	var paths []string
	seen := make(map[string]bool)
	for _, p := range []string{
		cleanPath(override),
		base + constants.SocketIOPrefix,
		constants.SocketIOPrefix,
		constants.APIPrefix + constants.SocketIOPrefix,
	} {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = "/" + strings.Trim(p, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}
