package client

import (
	"context"

	"github.com/propdesk/propdesk/internal/api"
)

// Interface defines the API client interface for dependency injection and testing
type Interface interface {
	Do(ctx context.Context, req Request) (*Response, error)
	DoJSON(ctx context.Context, req Request, result any) error
	Refresh(ctx context.Context) (string, error)
	Login(ctx context.Context, email, password string) (*api.TokenResponse, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*api.User, error)
	UnreadCount(ctx context.Context) (int, error)
	ListNotifications(ctx context.Context) ([]api.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// Compile-time check to ensure Client implements Interface
var _ Interface = (*Client)(nil)
