// Package socketio is a minimal Socket.IO v5 client over Engine.IO v4.
// It supports the websocket and HTTP long-polling transports, the default
// namespace, an auth payload on connect, server events, and reconnection
// with capped exponential backoff.
package socketio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Engine.IO packet types.
const (
	PacketOpen    byte = '0'
	PacketClose   byte = '1'
	PacketPing    byte = '2'
	PacketPong    byte = '3'
	PacketMessage byte = '4'
	PacketUpgrade byte = '5'
	PacketNoop    byte = '6'
)

// Socket.IO packet types, carried inside Engine.IO message packets.
const (
	SocketConnect      byte = '0'
	SocketDisconnect   byte = '1'
	SocketEvent        byte = '2'
	SocketAck          byte = '3'
	SocketConnectError byte = '4'
)

// RecordSeparator joins packets in a long-polling payload.
const RecordSeparator = "\x1e"

// ProtocolVersion is the Engine.IO protocol revision sent as the EIO query parameter.
const ProtocolVersion = "4"

// Handshake is the payload of the Engine.IO open packet.
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload,omitempty"`
}

// ErrMalformedPacket is returned for packets that cannot be decoded.
var ErrMalformedPacket = errors.New("malformed packet")

// EncodePayload joins packets for an HTTP long-polling request body.
func EncodePayload(packets []string) string {
	return strings.Join(packets, RecordSeparator)
}

// DecodePayload splits a long-polling response body into packets.
func DecodePayload(payload string) []string {
	if payload == "" {
		return nil
	}
	return strings.Split(payload, RecordSeparator)
}

// ParseOpen decodes an Engine.IO open packet.
func ParseOpen(packet string) (Handshake, error) {
	var hs Handshake
	if packet == "" || packet[0] != PacketOpen {
		return hs, fmt.Errorf("%w: expected open packet, got %q", ErrMalformedPacket, truncate(packet))
	}
	if err := json.Unmarshal([]byte(packet[1:]), &hs); err != nil {
		return hs, fmt.Errorf("%w: open payload: %w", ErrMalformedPacket, err)
	}
	if hs.SID == "" {
		return hs, fmt.Errorf("%w: open payload without sid", ErrMalformedPacket)
	}
	return hs, nil
}

// EncodeOpen builds an Engine.IO open packet.
func EncodeOpen(hs Handshake) (string, error) {
	data, err := json.Marshal(hs)
	if err != nil {
		return "", err
	}
	return string(PacketOpen) + string(data), nil
}

// EncodeConnect builds the Socket.IO connect packet for the default namespace.
// A nil auth sends no payload.
func EncodeConnect(auth any) (string, error) {
	prefix := string([]byte{PacketMessage, SocketConnect})
	if auth == nil {
		return prefix, nil
	}
	data, err := json.Marshal(auth)
	if err != nil {
		return "", fmt.Errorf("failed to encode auth payload: %w", err)
	}
	return prefix + string(data), nil
}

// EncodeEvent builds a Socket.IO event packet: 42["event",data].
func EncodeEvent(event string, data any) (string, error) {
	args := []any{event}
	if data != nil {
		args = append(args, data)
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode event %q: %w", event, err)
	}
	return string([]byte{PacketMessage, SocketEvent}) + string(encoded), nil
}

// DecodeEvent decodes the body of a Socket.IO event packet (without the
// leading "42"). An ack id before the array is skipped. Only the first
// argument is returned as data.
func DecodeEvent(body string) (string, json.RawMessage, error) {
	start := strings.IndexByte(body, '[')
	if start < 0 {
		return "", nil, fmt.Errorf("%w: event without arguments", ErrMalformedPacket)
	}

	var args []json.RawMessage
	if err := json.Unmarshal([]byte(body[start:]), &args); err != nil {
		return "", nil, fmt.Errorf("%w: event arguments: %w", ErrMalformedPacket, err)
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%w: event without name", ErrMalformedPacket)
	}

	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("%w: event name: %w", ErrMalformedPacket, err)
	}
	if len(args) == 1 {
		return name, nil, nil
	}
	return name, bytes.Clone(args[1]), nil
}

// ConnectError is the payload of a Socket.IO connect_error packet.
type ConnectError struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ConnectError) Error() string {
	if e.Message == "" {
		return "connection refused by server"
	}
	return "connection refused by server: " + e.Message
}

func parseConnectError(body string) *ConnectError {
	ce := &ConnectError{}
	if err := json.Unmarshal([]byte(body), ce); err != nil {
		ce.Message = body
	}
	return ce
}

func truncate(s string) string {
	const limit = 64
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
