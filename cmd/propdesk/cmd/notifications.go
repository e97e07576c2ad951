package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/propdesk/propdesk/internal/api"
	"github.com/propdesk/propdesk/internal/client"
	"github.com/propdesk/propdesk/internal/client/output"
	"github.com/propdesk/propdesk/internal/constants"
	"github.com/propdesk/propdesk/internal/notifications"
	"github.com/propdesk/propdesk/internal/notifications/querycache"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "Inspect and follow notifications",
}

var notificationsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the number of unread notifications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		service, err := newNotificationsService(cmd)
		if err != nil {
			return err
		}
		return service.Count(cmd.Context())
	},
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		unread, _ := cmd.Flags().GetBool("unread")
		service, err := newNotificationsService(cmd)
		if err != nil {
			return err
		}
		return service.List(cmd.Context(), unread)
	},
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <notification-id>...",
	Short: "Mark notifications as read",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := newNotificationsService(cmd)
		if err != nil {
			return err
		}
		return service.MarkRead(cmd.Context(), args)
	},
}

var notificationsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow notifications in real time",
	Long: `Follow notifications as they arrive. The real-time connection falls back
across endpoint paths and from WebSocket to long-polling; the unread count is
polled throughout. Stop with Ctrl+C, or use --timeout to bound the session.`,
	Example: `  propdesk notifications watch --timeout 0`,
	Args:    cobra.NoArgs,
	RunE:    runNotificationsWatch,
}

func init() {
	notificationsListCmd.Flags().Bool("unread", false, "Only show unread notifications")
	notificationsCmd.AddCommand(notificationsCountCmd, notificationsListCmd, notificationsReadCmd, notificationsWatchCmd)
	rootCmd.AddCommand(notificationsCmd)
}

func newNotificationsService(cmd *cobra.Command) (*NotificationsService, error) {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return nil, err
	}
	return NewNotificationsService(rt.Client, NewOutputWrapper()), nil
}

func runNotificationsWatch(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service := NewWatchService(rt.Client, NewOutputWrapper(),
		func(cache *querycache.Cache, opts notifications.Options) Watcher {
			return rt.NewChannel(cache, opts)
		})
	return service.Watch(ctx)
}

// NotificationsService handles the one-shot notification commands
type NotificationsService struct {
	client client.Interface
	output OutputInterface
	now    func() time.Time
}

// NewNotificationsService creates a new NotificationsService with the provided dependencies
func NewNotificationsService(apiClient client.Interface, outputter OutputInterface) *NotificationsService {
	return &NotificationsService{client: apiClient, output: outputter, now: time.Now}
}

// Count prints the unread notification count.
func (s *NotificationsService) Count(ctx context.Context) error {
	count, err := s.client.UnreadCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to get unread count: %w", err)
	}
	s.output.KeyValue("Unread", fmt.Sprintf("%d", count))
	return nil
}

// List prints the notifications as a table, optionally only the unread ones.
func (s *NotificationsService) List(ctx context.Context, unreadOnly bool) error {
	list, err := s.client.ListNotifications(ctx)
	if err != nil {
		return fmt.Errorf("failed to list notifications: %w", err)
	}

	now := s.now()
	rows := make([][]string, 0, len(list))
	for _, n := range list {
		if unreadOnly && n.Read {
			continue
		}
		rows = append(rows, []string{
			n.ID,
			output.Truncate(n.Title, constants.NotificationBodyPreviewLength),
			n.Type,
			output.ReadMarker(n.Read),
			output.Ago(n.CreatedAt, now),
		})
	}

	if len(rows) == 0 {
		s.output.Infof("No notifications")
		return nil
	}
	s.output.Table([]string{"ID", "Title", "Type", "Status", "Received"}, rows)
	s.output.Blank()
	s.output.Infof("%d notification(s)", len(rows))
	return nil
}

// MarkRead marks every id as read concurrently and prints the remaining unread count.
// Every id is attempted; the first failure is returned.
func (s *NotificationsService) MarkRead(ctx context.Context, ids []string) error {
	var g errgroup.Group
	g.SetLimit(constants.CLIMaxConcurrentRequests)

	failed := make([]error, len(ids))
	for i, id := range ids {
		g.Go(func() error {
			if err := s.client.MarkNotificationRead(ctx, id); err != nil {
				failed[i] = err
				return fmt.Errorf("failed to mark %s as read: %w", id, err)
			}
			return nil
		})
	}
	groupErr := g.Wait()

	for i, id := range ids {
		if failed[i] != nil {
			s.output.Errorf("%s: %v", id, failed[i])
			continue
		}
		s.output.Successf("Marked %s as read", s.output.Bold(id))
	}
	if groupErr != nil {
		return groupErr
	}
	return s.Count(ctx)
}

// Watcher is the part of the notification channel the watch command drives.
type Watcher interface {
	Mount(ctx context.Context)
	Unmount()
	Status() notifications.Status
}

// WatcherFactory creates the channel for a watch session around cache.
type WatcherFactory func(cache *querycache.Cache, opts notifications.Options) Watcher

// WatchService follows notifications until its context ends
type WatchService struct {
	client     client.Interface
	output     OutputInterface
	newWatcher WatcherFactory

	mu        sync.Mutex
	lastCount int
	haveCount bool
}

// NewWatchService creates a new WatchService with the provided dependencies
func NewWatchService(apiClient client.Interface, outputter OutputInterface, newWatcher WatcherFactory) *WatchService {
	return &WatchService{client: apiClient, output: outputter, newWatcher: newWatcher}
}

// Watch mounts a channel and reports state changes, new notifications and
// unread count changes until ctx is done. Reaching the deadline or being
// interrupted is a normal end.
func (s *WatchService) Watch(ctx context.Context) error {
	cache := querycache.New(nil)
	cache.Register(constants.QueryUnreadCount, func(ctx context.Context) (any, error) {
		return s.client.UnreadCount(ctx)
	})
	cache.Register(constants.QueryNotificationList, func(ctx context.Context) (any, error) {
		return s.client.ListNotifications(ctx)
	})
	unsubscribe := cache.Subscribe(s.onCacheUpdate)
	defer unsubscribe()

	var watcher Watcher
	watcher = s.newWatcher(cache, notifications.Options{
		OnStateChange: func(state notifications.State) {
			s.onStateChange(state, watcher)
		},
		OnNotification: s.onNotification,
	})

	s.output.Infof("Watching notifications, press Ctrl+C to stop")
	watcher.Mount(ctx)
	<-ctx.Done()
	watcher.Unmount()

	s.output.Infof("Stopped watching")
	return nil
}

func (s *WatchService) onStateChange(state notifications.State, watcher Watcher) {
	status := watcher.Status()
	switch state {
	case notifications.StateConnected:
		s.output.Successf("%s via %s on %s", output.StateBadge(state.String()),
			strings.Join(status.Transports, ", "), s.output.Bold(status.Path))
	case notifications.StateConnecting, notifications.StateDisconnected:
		s.output.Infof("%s", output.StateBadge(state.String()))
	case notifications.StateDisabled:
		if status.PermanentlyDisabled {
			s.output.Warningf("Real-time notifications unavailable, polling every %s",
				output.Duration(status.PollInterval))
			return
		}
		s.output.Infof("%s", output.StateBadge(state.String()))
	}
}

func (s *WatchService) onNotification(n api.Notification) {
	title := output.Truncate(n.Title, constants.NotificationBodyPreviewLength)
	if n.Body != "" {
		title += " " + output.Gray(output.Truncate(n.Body, constants.NotificationBodyPreviewLength))
	}
	s.output.Infof("%s %s", s.output.Cyan("New:"), title)
}

func (s *WatchService) onCacheUpdate(key string, value any) {
	if key != constants.QueryUnreadCount {
		return
	}
	count, ok := value.(int)
	if !ok {
		return
	}

	s.mu.Lock()
	changed := !s.haveCount || count != s.lastCount
	s.lastCount, s.haveCount = count, true
	s.mu.Unlock()

	if changed {
		s.output.KeyValue("Unread", fmt.Sprintf("%d", count))
	}
}
