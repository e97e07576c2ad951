// Package client provides the authenticated HTTP client for the propdesk API.
// It normalizes request paths, attaches bearer and CSRF credentials, and
// recovers from expired access tokens with a single shared refresh.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/propdesk/propdesk/internal/auth/session"
	"github.com/propdesk/propdesk/internal/config"
	"github.com/propdesk/propdesk/internal/constants"
	apperrors "github.com/propdesk/propdesk/internal/errors"
	"github.com/propdesk/propdesk/internal/logger"
	"github.com/propdesk/propdesk/internal/platform"
	"github.com/propdesk/propdesk/internal/secrets"
)

// Client provides a generic HTTP client for API operations
type Client struct {
	config   *config.Config
	session  *session.Manager
	platform platform.Platform
	logger   *slog.Logger

	baseURL string
	// base is nil when baseURL has no scheme and host.
	base   *url.URL
	origin *url.URL
	prefix string

	withCookies    *http.Client
	withoutCookies *http.Client
}

// New creates a new API client. The base URL is resolved once, from
// cfg.APIBaseURL or the platform origin. Internal logging goes to log only
// when cfg.Dev is set.
func New(cfg *config.Config, sess *session.Manager, p platform.Platform, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}

	baseURL := ResolveBaseURL(cfg.APIBaseURL, p)
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL %q: %w", baseURL, err)
	}

	prefix := strings.TrimRight(base.Path, "/")
	if prefix == "" {
		prefix = constants.APIPrefix
	}
	if base.Scheme == "" || base.Host == "" {
		base = nil
	}

	var origin *url.URL
	if raw := p.Origin(); raw != "" {
		if origin, err = url.Parse(raw); err != nil {
			return nil, fmt.Errorf("invalid origin %q: %w", raw, err)
		}
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = constants.DefaultRequestTimeout
	}

	return &Client{
		config:         cfg,
		session:        sess,
		platform:       p,
		logger:         logger.ForInternals(cfg.Dev, log),
		baseURL:        baseURL,
		base:           base,
		origin:         origin,
		prefix:         prefix,
		withCookies:    &http.Client{Timeout: timeout, Jar: p.CookieJar()},
		withoutCookies: &http.Client{Timeout: timeout},
	}, nil
}

// BaseURL returns the resolved API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the session manager the client reports to.
func (c *Client) Session() *session.Manager {
	return c.session
}

// Do makes an HTTP request to the API. Non-2xx responses are returned as
// *errors.AppError carrying the status code. A 401 is recovered with one
// token refresh and one resend where allowed.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	return c.do(ctx, req, attempt{})
}

func (c *Client) do(ctx context.Context, req Request, att attempt) (*Response, error) {
	resp, err := c.send(ctx, req, att)

	decision := c.interceptResponse(req, att, err)
	if decision != passThrough {
		c.logger.Debug("unauthorized response", "path", req.Path, "decision", decision.String())
	}

	switch decision {
	case forceLogout:
		c.session.ForceLogout()
		return nil, err
	case softUnauthorized:
		c.session.RecordUnauthorized()
		return nil, err
	case refreshAndRetry:
		token, refreshErr := c.session.Refresh(ctx, c.refreshToken)
		if refreshErr != nil {
			if ctx.Err() != nil {
				return nil, refreshErr
			}
			// A refresh call rejected with 401 has already logged out.
			if !apperrors.IsUnauthorized(refreshErr) {
				c.session.ForceLogout()
			}
			return nil, refreshErr
		}
		return c.do(ctx, req, attempt{retried: true, token: token})
	default:
		return resp, err
	}
}

// send performs a single attempt without any 401 handling.
func (c *Client) send(ctx context.Context, req Request, att attempt) (*Response, error) {
	httpReq, err := c.interceptRequest(ctx, req, att)
	if err != nil {
		return nil, err
	}

	reqLog := c.logger.With("request_id", httpReq.Header.Get(constants.RequestIDHeader))
	logArgs := []any{
		"operation", "HTTP.Request",
		"method", httpReq.Method,
		"url", httpReq.URL.String(),
		"retry", att.retried,
		"hasBody", req.Body != nil,
		"headers", secrets.RedactHeaders(httpReq.Header),
	}
	logArgs = append(logArgs, logger.GetDeadlineInfo(ctx)...)
	reqLog.Debug("calling API", logArgs...)

	resp, err := c.httpClientFor(req, httpReq.URL).Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	reqLog.Debug("received HTTP response",
		"status", resp.StatusCode,
		"bodySize", len(body),
		"method", httpReq.Method,
		"url", httpReq.URL.String())

	if resp.StatusCode >= constants.HTTPStatusBadRequest {
		return nil, apperrors.NewHTTPError(resp.StatusCode, body)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    headersFromHTTP(resp.Header),
		Body:       body,
	}, nil
}

// DoJSON makes a request and unmarshals the response into the provided interface
func (c *Client) DoJSON(ctx context.Context, req Request, result any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}

	if result == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}

	if err = json.Unmarshal(resp.Body, result); err != nil {
		c.logger.Debug("response body", "body", string(secrets.RedactJSON(resp.Body)))
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
