package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/propdesk/propdesk/internal/constants"

	"gopkg.in/yaml.v3"
)

// FileJar is a cookie jar whose cookies for a fixed set of sites survive process restarts.
// The refresh credential lives in a cookie, so a CLI session needs this to refresh at all.
type FileJar struct {
	mu      sync.RWMutex
	jar     *cookiejar.Jar
	records map[string]storedCookie
	saveMu  sync.Mutex
	path    string
	sites   []*url.URL
	now     func() time.Time
}

var _ http.CookieJar = (*FileJar)(nil)

type storedCookie struct {
	Site    string    `yaml:"site"`
	Name    string    `yaml:"name"`
	Value   string    `yaml:"value"`
	Path    string    `yaml:"path,omitempty"`
	Expires time.Time `yaml:"expires,omitempty"`
}

func (c storedCookie) key() string {
	return c.Site + "|" + c.Path + "|" + c.Name
}

// NewFileJar creates a jar persisted at path, restoring any cookies saved earlier.
// Only cookies set by the hosts of the given site URLs are persisted.
func NewFileJar(path string, sites ...string) (*FileJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	fj := &FileJar{jar: jar, path: path, records: map[string]storedCookie{}, now: time.Now}
	for _, site := range sites {
		u, err := url.Parse(site)
		if err != nil {
			return nil, fmt.Errorf("invalid cookie site %q: %w", site, err)
		}
		fj.sites = append(fj.sites, &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"})
	}

	if err := fj.load(); err != nil {
		return nil, err
	}
	return fj, nil
}

func (j *FileJar) load() error {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read cookie file: %w", err)
	}

	var stored []storedCookie
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse cookie file: %w", err)
	}

	now := j.now()
	for _, c := range stored {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		u, err := url.Parse(c.Site)
		if err != nil {
			continue
		}
		if c.Path == "" {
			c.Path = "/"
		}
		j.SetCookies(u, []*http.Cookie{{Name: c.Name, Value: c.Value, Path: c.Path, Expires: c.Expires}})
	}
	return nil
}

func (j *FileJar) current() *cookiejar.Jar {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar
}

// SetCookies implements http.CookieJar. Cookies from tracked sites are also
// recorded for Save; deletions and expired cookies drop the record.
func (j *FileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)

	site := j.siteFor(u)
	if site == nil {
		return
	}
	now := j.now()
	for _, c := range cookies {
		rec := storedCookie{Site: site.String(), Name: c.Name, Value: c.Value, Path: cookiePath(u, c)}
		switch {
		case c.MaxAge > 0:
			rec.Expires = now.Add(time.Duration(c.MaxAge) * time.Second).UTC()
		case !c.Expires.IsZero():
			rec.Expires = c.Expires.UTC()
		}

		if c.MaxAge < 0 || c.Value == "" || (!rec.Expires.IsZero() && !rec.Expires.After(now)) {
			delete(j.records, rec.key())
			continue
		}
		j.records[rec.key()] = rec
	}
}

// Cookies implements http.CookieJar.
func (j *FileJar) Cookies(u *url.URL) []*http.Cookie {
	return j.current().Cookies(u)
}

// Save writes the live cookies of every tracked site to disk.
func (j *FileJar) Save() error {
	j.saveMu.Lock()
	defer j.saveMu.Unlock()

	j.mu.RLock()
	now := j.now()
	stored := make([]storedCookie, 0, len(j.records))
	for _, rec := range j.records {
		if rec.Expires.IsZero() || rec.Expires.After(now) {
			stored = append(stored, rec)
		}
	}
	j.mu.RUnlock()
	sort.Slice(stored, func(a, b int) bool { return stored[a].key() < stored[b].key() })

	data, err := yaml.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.path), constants.ConfigDirPermissions); err != nil {
		return fmt.Errorf("failed to create cookie directory: %w", err)
	}
	if err := os.WriteFile(j.path, data, constants.ConfigFilePermissions); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	return nil
}

// Clear drops every tracked cookie and removes the file.
func (j *FileJar) Clear() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("failed to create cookie jar: %w", err)
	}

	j.mu.Lock()
	j.jar = jar
	j.records = map[string]storedCookie{}
	j.mu.Unlock()

	j.saveMu.Lock()
	defer j.saveMu.Unlock()
	if err := os.Remove(j.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cookie file: %w", err)
	}
	return nil
}

func (j *FileJar) siteFor(u *url.URL) *url.URL {
	for _, site := range j.sites {
		if strings.EqualFold(site.Host, u.Host) {
			return site
		}
	}
	return nil
}

// cookiePath is the path attribute c is stored under, defaulting to the
// directory of the request path.
func cookiePath(u *url.URL, c *http.Cookie) string {
	if strings.HasPrefix(c.Path, "/") {
		return c.Path
	}
	dir := path.Dir(u.Path)
	if dir == "." || !strings.HasPrefix(dir, "/") {
		return "/"
	}
	return dir
}
