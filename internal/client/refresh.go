package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/propdesk/propdesk/internal/api"
	"github.com/propdesk/propdesk/internal/constants"
	apperrors "github.com/propdesk/propdesk/internal/errors"
)

// refreshToken calls the refresh endpoint. The refresh credential travels in
// a cookie, so the call is credentialed and never carries the stale bearer.
func (c *Client) refreshToken(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, Request{
		Method:          http.MethodPost,
		Path:            constants.AuthRefreshPath,
		Body:            struct{}{},
		IsRefresh:       true,
		WithCredentials: true,
	}, attempt{})
	if err != nil {
		return "", apperrors.ErrRefreshFailed("token refresh failed", err)
	}

	var tokens api.TokenResponse
	if err = json.Unmarshal(resp.Body, &tokens); err != nil {
		return "", apperrors.ErrRefreshFailed("invalid refresh response", err)
	}

	token := tokens.Value()
	if token == "" {
		return "", apperrors.ErrRefreshFailed("refresh response carried no token", nil)
	}
	return token, nil
}

// Refresh forces a token refresh, joining one already in flight.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.session.Refresh(ctx, c.refreshToken)
}
