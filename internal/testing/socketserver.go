package testing

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/propdesk/propdesk/internal/notifications/socketio"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// SocketAttempt is one Engine.IO handshake seen by a SocketServer.
type SocketAttempt struct {
	Path      string
	Transport string
}

// SocketServer is an in-process Socket.IO endpoint. It accepts the
// default namespace, checks the auth token, pushes events and can drop
// connections on demand.
type SocketServer struct {
	// Authorize validates the token sent in the connect packet. Nil accepts any token.
	Authorize func(token string) bool
	// RejectWebSocket fails websocket handshakes, leaving only long-polling.
	RejectWebSocket atomic.Bool
	// PingInterval is advertised in the handshake.
	PingInterval time.Duration

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*socketSession
	attempts []SocketAttempt
	pongs    int
	received []string
	changed  chan struct{}
}

type socketSession struct {
	sid       string
	transport string
	connected bool

	conn    *websocket.Conn
	writeMu sync.Mutex

	queue  chan string
	closed chan struct{}
	once   sync.Once
}

// NewSocketServer creates a SocketServer.
func NewSocketServer() *SocketServer {
	return &SocketServer{
		PingInterval: 25 * time.Second,
		sessions:     make(map[string]*socketSession),
		changed:      make(chan struct{}),
	}
}

func (s *SocketServer) notify() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// ServeHTTP implements http.Handler for both transports.
func (s *SocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("EIO") != socketio.ProtocolVersion {
		http.Error(w, "unsupported protocol version", http.StatusBadRequest)
		return
	}

	switch q.Get("transport") {
	case socketio.TransportWebSocket:
		s.serveWebSocket(w, r)
	case socketio.TransportPolling:
		s.servePolling(w, r, q.Get("sid"))
	default:
		http.Error(w, "unknown transport", http.StatusBadRequest)
	}
}

func (s *SocketServer) handshake(sess *socketSession) string {
	open, _ := socketio.EncodeOpen(socketio.Handshake{
		SID:          sess.sid,
		Upgrades:     []string{},
		PingInterval: int(s.PingInterval / time.Millisecond),
		PingTimeout:  int(20 * time.Second / time.Millisecond),
		MaxPayload:   1_000_000,
	})
	return open
}

func (s *SocketServer) register(r *http.Request, transport string, conn *websocket.Conn) *socketSession {
	sess := &socketSession{
		sid:       uuid.NewString(),
		transport: transport,
		conn:      conn,
		queue:     make(chan string, 64),
		closed:    make(chan struct{}),
	}
	s.mu.Lock()
	s.sessions[sess.sid] = sess
	s.attempts = append(s.attempts, SocketAttempt{Path: strings.TrimRight(r.URL.Path, "/"), Transport: transport})
	s.notify()
	s.mu.Unlock()
	return sess
}

func (s *SocketServer) drop(sess *socketSession) {
	sess.once.Do(func() { close(sess.closed) })
	s.mu.Lock()
	delete(s.sessions, sess.sid)
	s.notify()
	s.mu.Unlock()
}

func (s *SocketServer) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.RejectWebSocket.Load() {
		http.Error(w, "websocket disabled", http.StatusBadRequest)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sess := s.register(r, socketio.TransportWebSocket, conn)
	defer func() {
		_ = conn.Close()
		s.drop(sess)
	}()

	if err = s.write(sess, s.handshake(sess)); err != nil {
		return
	}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if !s.handle(sess, string(msg)) {
			return
		}
	}
}

func (s *SocketServer) servePolling(w http.ResponseWriter, r *http.Request, sid string) {
	if sid == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "handshake must be a GET", http.StatusBadRequest)
			return
		}
		sess := s.register(r, socketio.TransportPolling, nil)
		_, _ = io.WriteString(w, s.handshake(sess))
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions[sid]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		for _, p := range socketio.DecodePayload(string(body)) {
			if !s.handle(sess, p) {
				s.drop(sess)
				break
			}
		}
		_, _ = io.WriteString(w, "ok")
	case http.MethodGet:
		var packets []string
		select {
		case p := <-sess.queue:
			packets = append(packets, p)
		drain:
			for {
				select {
				case p = <-sess.queue:
					packets = append(packets, p)
				default:
					break drain
				}
			}
		case <-sess.closed:
			packets = []string{string(socketio.PacketClose)}
		case <-r.Context().Done():
			return
		case <-time.After(s.PingInterval):
			packets = []string{string(socketio.PacketNoop)}
		}
		_, _ = io.WriteString(w, socketio.EncodePayload(packets))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handle processes one client packet. It reports false when the session ends.
func (s *SocketServer) handle(sess *socketSession, p string) bool {
	s.mu.Lock()
	s.received = append(s.received, p)
	s.mu.Unlock()

	switch {
	case p == string(socketio.PacketPong):
		s.mu.Lock()
		s.pongs++
		s.notify()
		s.mu.Unlock()
	case p == string(socketio.PacketClose):
		return false
	case strings.HasPrefix(p, "40"):
		var auth struct {
			Token string `json:"token"`
		}
		_ = json.Unmarshal([]byte(p[2:]), &auth)
		if s.Authorize != nil && !s.Authorize(auth.Token) {
			_ = s.write(sess, `44{"message":"unauthorized"}`)
			return true
		}
		ack, _ := json.Marshal(map[string]string{"sid": uuid.NewString()})
		s.mu.Lock()
		sess.connected = true
		s.notify()
		s.mu.Unlock()
		_ = s.write(sess, "40"+string(ack))
	case strings.HasPrefix(p, "41"):
		s.mu.Lock()
		sess.connected = false
		s.notify()
		s.mu.Unlock()
	}
	return true
}

func (s *SocketServer) write(sess *socketSession, packet string) error {
	if sess.conn != nil {
		sess.writeMu.Lock()
		defer sess.writeMu.Unlock()
		return sess.conn.WriteMessage(websocket.TextMessage, []byte(packet))
	}
	select {
	case sess.queue <- packet:
		return nil
	case <-sess.closed:
		return io.ErrClosedPipe
	}
}

func (s *SocketServer) connectedSessions() []*socketSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*socketSession
	for _, sess := range s.sessions {
		if sess.connected {
			out = append(out, sess)
		}
	}
	return out
}

// Emit pushes an event to every connected client.
func (s *SocketServer) Emit(event string, data any) {
	packet, err := socketio.EncodeEvent(event, data)
	if err != nil {
		return
	}
	for _, sess := range s.connectedSessions() {
		_ = s.write(sess, packet)
	}
}

// SendRaw writes a raw Engine.IO packet to every connected client.
func (s *SocketServer) SendRaw(packet string) {
	for _, sess := range s.connectedSessions() {
		_ = s.write(sess, packet)
	}
}

// DropConnections closes every transport without a Socket.IO disconnect,
// as a network failure would.
func (s *SocketServer) DropConnections() {
	s.mu.Lock()
	sessions := make([]*socketSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		if sess.conn != nil {
			_ = sess.conn.Close()
		}
		s.drop(sess)
	}
}

// DisconnectAll sends a Socket.IO disconnect to every connected client.
func (s *SocketServer) DisconnectAll() {
	for _, sess := range s.connectedSessions() {
		_ = s.write(sess, "41")
	}
}

// Connected returns the number of clients past the Socket.IO handshake.
func (s *SocketServer) Connected() int {
	return len(s.connectedSessions())
}

// Attempts returns every Engine.IO handshake in arrival order.
func (s *SocketServer) Attempts() []SocketAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SocketAttempt(nil), s.attempts...)
}

// Pongs returns the number of pong packets received.
func (s *SocketServer) Pongs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pongs
}

// Received returns every packet received from clients.
func (s *SocketServer) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

// WaitFor blocks until cond holds or timeout elapses, and reports whether it held.
func (s *SocketServer) WaitFor(timeout time.Duration, cond func(*SocketServer) bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		s.mu.Lock()
		changed := s.changed
		s.mu.Unlock()
		if cond(s) {
			return true
		}
		select {
		case <-changed:
		case <-deadline.C:
			return cond(s)
		}
	}
}
