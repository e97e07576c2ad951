// Package platform abstracts the host capabilities the API client and the
// notification channel depend on: the current origin and location, navigation,
// and the cookie store shared with the backend.
package platform

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
)

// Platform describes what the hosting environment can do for the client core.
type Platform interface {
	// Origin is the scheme://host[:port] the application is served from, or "" if unknown.
	Origin() string
	// Location is the path the user is currently on.
	Location() string
	// Redirect navigates to path.
	Redirect(path string)
	// Cookie returns the raw value of the named cookie visible to the API.
	Cookie(name string) (string, bool)
	// CookieJar is the jar HTTP traffic to the backend goes through.
	CookieJar() http.CookieJar
}

// Options configures a Runtime.
type Options struct {
	// Origin is reported by Origin().
	Origin string
	// Location is the initial location, "/" when empty.
	Location string
	// CookieURL scopes Cookie lookups, usually the API base URL.
	CookieURL string
	// Jar backs CookieJar and Cookie; an empty in-memory jar is used when nil.
	Jar http.CookieJar
	// OnRedirect is invoked after every Redirect.
	OnRedirect func(path string)
}

// Runtime is the Platform used outside a browser.
type Runtime struct {
	mu         sync.Mutex
	origin     string
	location   string
	cookieURL  *url.URL
	jar        http.CookieJar
	onRedirect func(path string)
}

var _ Platform = (*Runtime)(nil)

// New creates a Runtime from the given options.
func New(opts Options) (*Runtime, error) {
	jar := opts.Jar
	if jar == nil {
		var err error
		if jar, err = cookiejar.New(nil); err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
	}

	var cookieURL *url.URL
	if opts.CookieURL != "" {
		u, err := url.Parse(opts.CookieURL)
		if err != nil {
			return nil, fmt.Errorf("invalid cookie url %q: %w", opts.CookieURL, err)
		}
		cookieURL = u
	}

	location := opts.Location
	if location == "" {
		location = "/"
	}

	return &Runtime{
		origin:     strings.TrimRight(opts.Origin, "/"),
		location:   location,
		cookieURL:  cookieURL,
		jar:        jar,
		onRedirect: opts.OnRedirect,
	}, nil
}

// Origin implements Platform.
func (r *Runtime) Origin() string {
	return r.origin
}

// Location implements Platform.
func (r *Runtime) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

// SetLocation records a navigation performed outside Redirect.
func (r *Runtime) SetLocation(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.location = path
}

// Redirect implements Platform.
func (r *Runtime) Redirect(path string) {
	r.mu.Lock()
	r.location = path
	hook := r.onRedirect
	r.mu.Unlock()

	if hook != nil {
		hook(path)
	}
}

// Cookie implements Platform.
func (r *Runtime) Cookie(name string) (string, bool) {
	if r.cookieURL == nil {
		return "", false
	}
	for _, c := range r.jar.Cookies(r.cookieURL) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// CookieJar implements Platform.
func (r *Runtime) CookieJar() http.CookieJar {
	return r.jar
}
