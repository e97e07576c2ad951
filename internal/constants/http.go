package constants

import "time"

// APIPrefix is the path prefix every relative API path is mounted under.
const APIPrefix = "/api"

// SocketIOPrefix is the path prefix of the real-time endpoint. Paths under it are never API-prefixed.
const SocketIOPrefix = "/socket.io"

// AuthorizationHeader is the HTTP Authorization header name.
const AuthorizationHeader = "Authorization"

// BearerPrefix is the scheme prefix of the Authorization header value.
const BearerPrefix = "Bearer "

// ContentTypeHeader is the HTTP Content-Type header name.
const ContentTypeHeader = "Content-Type"

// ContentTypeJSON is the media type used for JSON request bodies.
const ContentTypeJSON = "application/json"

// ContentTypeFormURLEncoded is the media type used for URL-encoded request bodies.
const ContentTypeFormURLEncoded = "application/x-www-form-urlencoded"

// RequestIDHeader carries a per-request correlation identifier.
const RequestIDHeader = "X-Request-ID"

// CSRFCookieName is the cookie the backend stores its anti-forgery token in.
const CSRFCookieName = "XSRF-TOKEN"

// CSRFHeader is the header the anti-forgery token is echoed back in.
const CSRFHeader = "X-XSRF-TOKEN"

// HTTPStatusBadRequest is the HTTP status code for bad requests (400)
const HTTPStatusBadRequest = 400

// DefaultRequestTimeout bounds a single HTTP round trip made by the API client.
const DefaultRequestTimeout = 30 * time.Second

// StateChangingMethods returns the HTTP methods that must carry a CSRF token.
func StateChangingMethods() []string {
	return []string{"POST", "PUT", "PATCH", "DELETE"}
}

// CLIMaxConcurrentRequests bounds the requests a single CLI command runs in parallel.
const CLIMaxConcurrentRequests = 4
