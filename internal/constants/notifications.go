package constants

import "time"

// Real-time events consumed by the notification channel.
const (
	EventConnect           = "connect"
	EventDisconnect        = "disconnect"
	EventConnectError      = "connect_error"
	EventReconnectFailed   = "reconnect_failed"
	EventNotificationNew   = "notification:new"
	EventNotificationCount = "notification:count"
)

// Cached query keys maintained by the notification channel.
const (
	QueryUnreadCount      = "unread-count"
	QueryNotificationList = "notification-list"
)

// Notification endpoints, relative to the API prefix.
const (
	NotificationsPath            = "/notifications"
	NotificationsUnreadCountPath = "/notifications/unread-count"
)

// PollIntervalDisconnected is the unread-count polling cadence while real-time push is unavailable.
const PollIntervalDisconnected = 30 * time.Second

// PollIntervalConnected is the safety-net polling cadence once real-time push has connected.
const PollIntervalConnected = 120 * time.Second

// Reconnect backoff of the underlying socket client.
const (
	ReconnectBaseDelay = 1 * time.Second
	ReconnectMaxDelay  = 5 * time.Second
	ReconnectAttempts  = 5
)

// SocketConnectTimeout bounds a single connection attempt on one candidate path.
const SocketConnectTimeout = 20 * time.Second

// Transport names understood by the socket client.
const (
	TransportWebSocket = "websocket"
	TransportPolling   = "polling"
)
