package socketio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport names.
const (
	TransportWebSocket = "websocket"
	TransportPolling   = "polling"
)

// errTransportClosed is returned by a transport after close.
var errTransportClosed = errors.New("transport closed")

// transport carries Engine.IO packets over one connection.
type transport interface {
	name() string
	send(ctx context.Context, packets ...string) error
	// receive blocks until at least one packet arrives or the connection fails.
	receive(ctx context.Context) ([]string, error)
	close() error
}

// endpoint builds the Engine.IO URL for a transport. The scheme follows the
// transport: ws/wss for websocket, http/https for polling.
func endpoint(origin, path, transportName, sid string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("invalid socket origin %q: %w", origin, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid socket origin %q: missing host", origin)
	}

	secure := u.Scheme == "wss" || u.Scheme == "https"
	switch {
	case transportName == TransportWebSocket && secure:
		u.Scheme = "wss"
	case transportName == TransportWebSocket:
		u.Scheme = "ws"
	case secure:
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}

	if path == "" {
		path = "/socket.io"
	}
	u.Path = strings.TrimRight(path, "/") + "/"
	u.RawPath = ""
	u.Fragment = ""

	q := url.Values{}
	q.Set("EIO", ProtocolVersion)
	q.Set("transport", transportName)
	if sid != "" {
		q.Set("sid", sid)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// wsTransport is the streaming transport.
type wsTransport struct {
	conn        *websocket.Conn
	writeMu     sync.Mutex
	readTimeout time.Duration
}

func dialWebSocket(ctx context.Context, dialer *websocket.Dialer, target string, header http.Header) (*wsTransport, Handshake, error) {
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		defer func() {
			_ = resp.Body.Close()
		}()
	}
	if err != nil {
		if resp != nil {
			return nil, Handshake{}, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, Handshake{}, fmt.Errorf("failed to connect to websocket: %w", err)
	}

	t := &wsTransport{conn: conn}
	packets, err := t.receive(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, Handshake{}, err
	}
	hs, err := ParseOpen(packets[0])
	if err != nil {
		_ = conn.Close()
		return nil, Handshake{}, err
	}
	t.readTimeout = time.Duration(hs.PingInterval+hs.PingTimeout) * time.Millisecond
	return t, hs, nil
}

func (t *wsTransport) name() string {
	return TransportWebSocket
}

func (t *wsTransport) send(_ context.Context, packets ...string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	for _, p := range packets {
		if err := t.conn.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
			return fmt.Errorf("failed to write packet: %w", err)
		}
	}
	return nil
}

func (t *wsTransport) receive(ctx context.Context) ([]string, error) {
	if err := t.conn.SetReadDeadline(readDeadline(ctx, t.readTimeout)); err != nil {
		return nil, err
	}
	_, msg, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return []string{string(msg)}, nil
}

func (t *wsTransport) close() error {
	t.writeMu.Lock()
	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()
	return t.conn.Close()
}

// readDeadline is the earlier of the context deadline and now+timeout.
// Zero means no deadline.
func readDeadline(ctx context.Context, timeout time.Duration) time.Time {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return deadline
}

// pollingTransport is the buffered transport: one long GET for inbound
// packets and a POST per outbound batch.
type pollingTransport struct {
	client *http.Client
	origin string
	path   string
	header http.Header
	sid    string

	mu     sync.Mutex
	closed bool
}

func dialPolling(ctx context.Context, client *http.Client, origin, path string, header http.Header) (*pollingTransport, Handshake, error) {
	t := &pollingTransport{client: client, origin: origin, path: path, header: header}

	packets, err := t.receive(ctx)
	if err != nil {
		return nil, Handshake{}, err
	}
	if len(packets) == 0 {
		return nil, Handshake{}, fmt.Errorf("%w: empty polling handshake", ErrMalformedPacket)
	}
	hs, err := ParseOpen(packets[0])
	if err != nil {
		return nil, Handshake{}, err
	}
	t.sid = hs.SID
	return t, hs, nil
}

func (t *pollingTransport) name() string {
	return TransportPolling
}

func (t *pollingTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *pollingTransport) send(ctx context.Context, packets ...string) error {
	if t.isClosed() {
		return errTransportClosed
	}
	return t.post(ctx, packets)
}

func (t *pollingTransport) post(ctx context.Context, packets []string) error {
	target, err := endpoint(t.origin, t.path, TransportPolling, t.sid)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(EncodePayload(packets)))
	if err != nil {
		return fmt.Errorf("failed to create polling request: %w", err)
	}
	copyHeader(req.Header, t.header)
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post packets: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polling post failed with status %d", resp.StatusCode)
	}
	return nil
}

func (t *pollingTransport) receive(ctx context.Context) ([]string, error) {
	if t.isClosed() {
		return nil, errTransportClosed
	}
	target, err := endpoint(t.origin, t.path, TransportPolling, t.sid)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create polling request: %w", err)
	}
	copyHeader(req.Header, t.header)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to poll: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read polling response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("polling failed with status %d", resp.StatusCode)
	}
	return DecodePayload(string(body)), nil
}

func (t *pollingTransport) close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return t.post(ctx, []string{string(PacketClose)})
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
