package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/propdesk/propdesk/internal/constants"
	apperrors "github.com/propdesk/propdesk/internal/errors"

	"github.com/google/uuid"
)

// attempt describes one send of a Request. The zero value is the first send.
type attempt struct {
	// retried is set on the single resend that follows a token refresh.
	retried bool
	// token overrides the stored token; it carries the refreshed token into the resend.
	token string
}

// retryDecision is what the response interceptor wants done with a failed send.
type retryDecision int

const (
	// passThrough returns the response or error to the caller as is.
	passThrough retryDecision = iota
	// refreshAndRetry waits for the shared token refresh and resends once.
	refreshAndRetry
	// softUnauthorized counts the 401 towards the forced-logout threshold.
	softUnauthorized
	// forceLogout ends the session right away.
	forceLogout
)

func (d retryDecision) String() string {
	switch d {
	case refreshAndRetry:
		return "refresh_and_retry"
	case softUnauthorized:
		return "soft_unauthorized"
	case forceLogout:
		return "force_logout"
	default:
		return "pass_through"
	}
}

// interceptRequest turns req into the outgoing http.Request for one attempt.
func (c *Client) interceptRequest(ctx context.Context, req Request, att attempt) (*http.Request, error) {
	target, err := c.resolveTarget(req.Path)
	if err != nil {
		return nil, err
	}

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, apperrors.ErrInvalidRequest("invalid request body", err)
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	headers := req.Headers.Clone()
	if req.IsRefresh || req.SkipAuth {
		headers.Del(constants.AuthorizationHeader)
	} else {
		switch body.kind {
		case bodyMultipart:
			headers.Del(constants.ContentTypeHeader)
		case bodyJSON:
			headers.Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
		}

		if token := c.bearerToken(att); token != "" {
			headers.Set(constants.AuthorizationHeader, constants.BearerPrefix+token)
		}

		if slices.Contains(constants.StateChangingMethods(), method) {
			if csrf, ok := c.csrfToken(); ok {
				headers.Set(constants.CSRFHeader, csrf)
			}
		}
	}

	// Transport defaults, applied whether or not auth was attached.
	switch {
	case body.kind == bodyMultipart:
		headers.Set(constants.ContentTypeHeader, body.contentType)
	case body.contentType != "" && !headers.Has(constants.ContentTypeHeader):
		headers.Set(constants.ContentTypeHeader, body.contentType)
	}
	if !headers.Has(constants.RequestIDHeader) {
		headers.Set(constants.RequestIDHeader, uuid.NewString())
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body.reader())
	if err != nil {
		return nil, apperrors.ErrInvalidRequest("failed to create request", err)
	}
	headers.applyTo(httpReq.Header)
	return httpReq, nil
}

// bearerToken returns the token to authenticate an attempt with. A token
// store failure is logged and the request goes out unauthenticated.
func (c *Client) bearerToken(att attempt) string {
	if att.token != "" {
		return att.token
	}
	token, err := c.session.Token()
	if err != nil {
		c.logger.Warn("failed to read access token", "error", err)
		return ""
	}
	return token
}

func (c *Client) csrfToken() (string, bool) {
	raw, ok := c.platform.Cookie(constants.CSRFCookieName)
	if !ok || raw == "" {
		return "", false
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw, true
	}
	return decoded, true
}

// interceptResponse decides what happens after a send of req failed with err.
func (c *Client) interceptResponse(req Request, att attempt, err error) retryDecision {
	if err == nil || !apperrors.IsUnauthorized(err) {
		return passThrough
	}
	if req.IsRefresh {
		return forceLogout
	}
	if att.retried || isRefreshExempt(NormalizeURLWithPrefix(req.Path, c.prefix)) {
		return softUnauthorized
	}
	return refreshAndRetry
}

// resolveTarget returns the absolute URL a request path is sent to.
func (c *Client) resolveTarget(path string) (string, error) {
	normalized := NormalizeURLWithPrefix(path, c.prefix)
	if strings.HasPrefix(normalized, "//") {
		scheme := "https"
		if c.base != nil {
			scheme = c.base.Scheme
		}
		return scheme + ":" + normalized, nil
	}
	if IsAbsoluteURL(normalized) {
		return normalized, nil
	}
	if c.base == nil {
		return "", apperrors.ErrInvalidRequest(
			fmt.Sprintf("cannot send %s: API base URL %q has no origin", normalized, c.baseURL), nil)
	}
	return c.base.Scheme + "://" + c.base.Host + normalized, nil
}

// httpClientFor picks the cookie-carrying client for credentialed or
// same-origin requests, and the cookieless one otherwise.
func (c *Client) httpClientFor(req Request, target *url.URL) *http.Client {
	if req.WithCredentials || c.sameOrigin(target) {
		return c.withCookies
	}
	return c.withoutCookies
}

func (c *Client) sameOrigin(target *url.URL) bool {
	origin := c.origin
	if origin == nil {
		origin = c.base
	}
	if origin == nil || target == nil {
		return false
	}
	return strings.EqualFold(origin.Scheme, target.Scheme) && strings.EqualFold(origin.Host, target.Host)
}
