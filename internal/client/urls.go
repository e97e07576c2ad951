package client

import (
	"strings"

	"github.com/propdesk/propdesk/internal/constants"
	"github.com/propdesk/propdesk/internal/platform"
)

// ResolveBaseURL picks the API base URL once at startup: the configured URL,
// else "<origin>/api", else the bare "/api" path. Trailing slashes are stripped.
func ResolveBaseURL(configured string, p platform.Platform) string {
	candidates := []string{strings.TrimSpace(configured)}
	if p != nil && p.Origin() != "" {
		candidates = append(candidates, p.Origin()+constants.APIPrefix)
	}
	candidates = append(candidates, constants.APIPrefix)

	for _, c := range candidates {
		if trimmed := strings.TrimRight(c, "/"); trimmed != "" {
			return trimmed
		}
	}
	return constants.APIPrefix
}

// IsAbsoluteURL reports whether raw carries its own scheme or is protocol-relative.
func IsAbsoluteURL(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(raw, "//")
}

// NormalizeURL rewrites a request path relative to the /api prefix.
func NormalizeURL(raw string) string {
	return NormalizeURLWithPrefix(raw, constants.APIPrefix)
}

// NormalizeURLWithPrefix rewrites a relative request path so that it has a
// single leading slash, no duplicate slashes, and the given prefix unless it
// already carries it or targets the socket endpoint. Absolute and
// protocol-relative URLs are returned unchanged. The query string and the
// fragment are kept verbatim.
func NormalizeURLWithPrefix(raw, prefix string) string {
	if IsAbsoluteURL(raw) {
		return raw
	}

	rest, fragment, hasFragment := strings.Cut(raw, "#")
	path, query, hasQuery := strings.Cut(rest, "?")

	path = collapseSlashes("/" + path)
	prefix = strings.TrimRight(collapseSlashes("/"+prefix), "/")
	if prefix != "" && !hasPathPrefix(path, prefix) && !hasPathPrefix(path, constants.SocketIOPrefix) {
		if path == "/" {
			path = prefix
		} else {
			path = prefix + path
		}
	}

	var b strings.Builder
	b.Grow(len(raw) + len(prefix) + 1)
	b.WriteString(path)
	if hasQuery {
		b.WriteByte('?')
		b.WriteString(query)
	}
	if hasFragment {
		b.WriteByte('#')
		b.WriteString(fragment)
	}
	return b.String()
}

// hasPathPrefix matches prefix on a segment boundary, so /api matches /api and
// /api/x but not /apiary.
func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

func collapseSlashes(path string) string {
	if !strings.Contains(path, "//") {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	prev := byte(0)
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' && prev == '/' {
			continue
		}
		b.WriteByte(c)
		prev = c
	}
	return b.String()
}

// isRefreshExempt reports whether a 401 on target must never start a token refresh.
func isRefreshExempt(target string) bool {
	for _, p := range constants.RefreshExemptPaths() {
		if strings.Contains(target, p) {
			return true
		}
	}
	return false
}
