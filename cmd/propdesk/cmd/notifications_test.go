package cmd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/propdesk/propdesk/internal/api"
	"github.com/propdesk/propdesk/internal/constants"
	"github.com/propdesk/propdesk/internal/notifications"
	"github.com/propdesk/propdesk/internal/notifications/querycache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationsService_Count(t *testing.T) {
	out := &mockOutputInterface{}
	mock := &mockClient{unreadCountFunc: func(context.Context) (int, error) { return 3, nil }}

	require.NoError(t, NewNotificationsService(mock, out).Count(context.Background()))
	assert.Equal(t, []string{"Unread: 3"}, out.texts("KeyValue"))

	mock.unreadCountFunc = func(context.Context) (int, error) { return 0, errors.New("boom") }
	err := NewNotificationsService(mock, out).Count(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get unread count")
}

func TestNotificationsService_List(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	list := []api.Notification{
		{ID: "ntf-1", Title: "Gas safety check due", Type: "compliance", CreatedAt: now.Add(-5 * time.Minute)},
		{ID: "ntf-2", Title: "Invoice issued", Type: "billing", Read: true, CreatedAt: now.Add(-3 * time.Hour)},
	}
	mock := &mockClient{listNotificationsFunc: func(context.Context) ([]api.Notification, error) { return list, nil }}

	tests := []struct {
		name       string
		unreadOnly bool
		wantRows   []string
	}{
		{
			name:     "all",
			wantRows: []string{"ntf-1|Gas safety check due|compliance|", "ntf-2|Invoice issued|billing|"},
		},
		{
			name:       "unread only",
			unreadOnly: true,
			wantRows:   []string{"ntf-1|Gas safety check due|compliance|"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &mockOutputInterface{}
			service := NewNotificationsService(mock, out)
			service.now = func() time.Time { return now }

			require.NoError(t, service.List(context.Background(), tt.unreadOnly))
			tables := out.texts("Table")
			require.Len(t, tables, 1)
			assert.Contains(t, tables[0], "ID|Title|Type|Status|Received")
			for _, row := range tt.wantRows {
				assert.Contains(t, tables[0], row)
			}
			assert.Contains(t, tables[0], "5m ago")
			if tt.unreadOnly {
				assert.NotContains(t, tables[0], "ntf-2")
			}
		})
	}
}

func TestNotificationsService_ListEmpty(t *testing.T) {
	out := &mockOutputInterface{}
	mock := &mockClient{listNotificationsFunc: func(context.Context) ([]api.Notification, error) { return nil, nil }}

	require.NoError(t, NewNotificationsService(mock, out).List(context.Background(), false))
	assert.Empty(t, out.texts("Table"))
	assert.True(t, out.contains("Infof", "No notifications"))
}

func TestNotificationsService_MarkRead(t *testing.T) {
	t.Run("all succeed", func(t *testing.T) {
		var mu sync.Mutex
		var marked []string
		mock := &mockClient{
			markNotificationReadFunc: func(_ context.Context, id string) error {
				mu.Lock()
				defer mu.Unlock()
				marked = append(marked, id)
				return nil
			},
			unreadCountFunc: func(context.Context) (int, error) { return 0, nil },
		}
		out := &mockOutputInterface{}

		require.NoError(t, NewNotificationsService(mock, out).MarkRead(context.Background(), []string{"ntf-1", "ntf-2"}))
		assert.ElementsMatch(t, []string{"ntf-1", "ntf-2"}, marked)
		assert.Equal(t, []string{"Marked ntf-1 as read", "Marked ntf-2 as read"}, out.texts("Successf"))
		assert.Equal(t, []string{"Unread: 0"}, out.texts("KeyValue"))
	})

	t.Run("partial failure", func(t *testing.T) {
		mock := &mockClient{
			markNotificationReadFunc: func(_ context.Context, id string) error {
				if id == "ntf-404" {
					return errors.New("not found")
				}
				return nil
			},
			unreadCountFunc: func(context.Context) (int, error) {
				t.Fatal("count is not refreshed after a failure")
				return 0, nil
			},
		}
		out := &mockOutputInterface{}

		err := NewNotificationsService(mock, out).MarkRead(context.Background(), []string{"ntf-1", "ntf-404", "ntf-3"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ntf-404")
		assert.Equal(t, []string{"Marked ntf-1 as read", "Marked ntf-3 as read"}, out.texts("Successf"))
		assert.Equal(t, []string{"ntf-404: not found"}, out.texts("Errorf"))
	})
}

// fakeWatcher plays a connect sequence on Mount.
type fakeWatcher struct {
	cache     *querycache.Cache
	opts      notifications.Options
	mu        sync.Mutex
	status    notifications.Status
	mounted   bool
	unmounted bool
	disable   bool
}

func (w *fakeWatcher) Mount(_ context.Context) {
	w.mu.Lock()
	w.mounted = true
	w.mu.Unlock()

	w.opts.OnStateChange(notifications.StateConnecting)
	if w.disable {
		w.setStatus(notifications.Status{State: notifications.StateDisabled, PermanentlyDisabled: true, PollInterval: 30 * time.Second})
		w.opts.OnStateChange(notifications.StateDisabled)
		return
	}
	w.setStatus(notifications.Status{
		State:      notifications.StateConnected,
		Path:       "/socket.io",
		Transports: []string{constants.TransportWebSocket, constants.TransportPolling},
	})
	w.opts.OnStateChange(notifications.StateConnected)
	w.opts.OnNotification(api.Notification{ID: "ntf-9", Title: "Boiler service booked", Body: "Tuesday 9am"})
	w.cache.Set(constants.QueryUnreadCount, 4)
	w.cache.Set(constants.QueryUnreadCount, 4)
	w.cache.Set(constants.QueryNotificationList, []api.Notification{})
}

func (w *fakeWatcher) Unmount() {
	w.mu.Lock()
	w.unmounted = true
	w.mu.Unlock()
	w.setStatus(notifications.Status{State: notifications.StateDisabled})
	w.opts.OnStateChange(notifications.StateDisabled)
}

func (w *fakeWatcher) Status() notifications.Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *fakeWatcher) setStatus(s notifications.Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = s
}

func TestWatchService_Watch(t *testing.T) {
	out := &mockOutputInterface{}
	mock := &mockClient{}
	watcher := &fakeWatcher{}
	service := NewWatchService(mock, out, func(cache *querycache.Cache, opts notifications.Options) Watcher {
		watcher.cache, watcher.opts = cache, opts
		return watcher
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, service.Watch(ctx))

	assert.True(t, watcher.mounted)
	assert.True(t, watcher.unmounted)
	assert.True(t, out.contains("Successf", "connected via websocket, polling on /socket.io"))
	assert.True(t, out.contains("Infof", "New: Boiler service booked"))
	assert.True(t, out.contains("Infof", "Tuesday 9am"))
	assert.Equal(t, []string{"Unread: 4"}, out.texts("KeyValue"), "unchanged counts are not repeated")
	assert.True(t, out.contains("Infof", "Stopped watching"))
}

func TestWatchService_WatchPermanentlyDisabled(t *testing.T) {
	out := &mockOutputInterface{}
	watcher := &fakeWatcher{disable: true}
	service := NewWatchService(&mockClient{}, out, func(cache *querycache.Cache, opts notifications.Options) Watcher {
		watcher.cache, watcher.opts = cache, opts
		return watcher
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.NoError(t, service.Watch(ctx))

	assert.True(t, out.contains("Warningf", "Real-time notifications unavailable, polling every 30s"))
}
