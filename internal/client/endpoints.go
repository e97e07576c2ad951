package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/propdesk/propdesk/internal/api"
	"github.com/propdesk/propdesk/internal/constants"
	apperrors "github.com/propdesk/propdesk/internal/errors"
)

// Login signs in with email and password and stores the issued access token.
// The refresh cookie set by the backend lands in the platform cookie jar.
func (c *Client) Login(ctx context.Context, email, password string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	err := c.DoJSON(ctx, Request{
		Method:          http.MethodPost,
		Path:            constants.AuthLoginPath,
		Body:            api.LoginRequest{Email: email, Password: password},
		WithCredentials: true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	token := resp.Value()
	if token == "" {
		return nil, apperrors.ErrInvalidRequest("login response carried no token", nil)
	}
	if err = c.session.SetToken(token); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Logout tells the backend to drop the refresh credential, then clears the
// local session. The backend call is best effort.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Do(ctx, Request{
		Method:          http.MethodPost,
		Path:            constants.AuthLogoutPath,
		WithCredentials: true,
	})
	if err != nil {
		c.logger.Debug("logout request failed", "error", err)
	}

	return c.session.Logout()
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*api.User, error) {
	var resp api.User
	if err := c.DoJSON(ctx, Request{Method: http.MethodGet, Path: constants.AuthMePath}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UnreadCount returns the number of unread notifications.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp api.UnreadCount
	err := c.DoJSON(ctx, Request{Method: http.MethodGet, Path: constants.NotificationsUnreadCountPath}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// ListNotifications returns the user's notifications, newest first as sent by the backend.
func (c *Client) ListNotifications(ctx context.Context) ([]api.Notification, error) {
	var resp api.NotificationList
	err := c.DoJSON(ctx, Request{Method: http.MethodGet, Path: constants.NotificationsPath}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

// MarkNotificationRead marks a single notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := c.Do(ctx, Request{
		Method: http.MethodPatch,
		Path:   constants.NotificationsPath + "/" + url.PathEscape(id) + "/read",
	})
	return err
}
