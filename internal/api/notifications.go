package api

import (
	"bytes"
	"encoding/json"
	"time"
)

// Notification is a single in-app notification.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Type      string    `json:"type,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationList is the response of GET /notifications.
// The backend answers either with a bare array or with {"notifications": [...]}.
type NotificationList struct {
	Notifications []Notification `json:"notifications"`
}

// UnmarshalJSON accepts both the bare array and the wrapped object form.
func (l *NotificationList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &l.Notifications)
	}

	var wrapped struct {
		Notifications []Notification `json:"notifications"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	l.Notifications = wrapped.Notifications
	return nil
}

// UnreadCount is the response of GET /notifications/unread-count and the payload
// of the notification:count push event.
type UnreadCount struct {
	Count int `json:"count"`
}
