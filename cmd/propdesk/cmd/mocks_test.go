package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/propdesk/propdesk/internal/api"
	"github.com/propdesk/propdesk/internal/client"
)

// mockClient is a manual mock of client.Interface
type mockClient struct {
	doFunc                   func(ctx context.Context, req client.Request) (*client.Response, error)
	loginFunc                func(ctx context.Context, email, password string) (*api.TokenResponse, error)
	logoutFunc               func(ctx context.Context) error
	meFunc                   func(ctx context.Context) (*api.User, error)
	unreadCountFunc          func(ctx context.Context) (int, error)
	listNotificationsFunc    func(ctx context.Context) ([]api.Notification, error)
	markNotificationReadFunc func(ctx context.Context, id string) error
}

var _ client.Interface = (*mockClient)(nil)

func (m *mockClient) Do(ctx context.Context, req client.Request) (*client.Response, error) {
	if m.doFunc != nil {
		return m.doFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockClient) DoJSON(_ context.Context, _ client.Request, _ any) error {
	return errors.New("not implemented")
}

func (m *mockClient) Refresh(_ context.Context) (string, error) {
	return "", errors.New("not implemented")
}

func (m *mockClient) Login(ctx context.Context, email, password string) (*api.TokenResponse, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, email, password)
	}
	return nil, errors.New("not implemented")
}

func (m *mockClient) Logout(ctx context.Context) error {
	if m.logoutFunc != nil {
		return m.logoutFunc(ctx)
	}
	return errors.New("not implemented")
}

func (m *mockClient) Me(ctx context.Context) (*api.User, error) {
	if m.meFunc != nil {
		return m.meFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockClient) UnreadCount(ctx context.Context) (int, error) {
	if m.unreadCountFunc != nil {
		return m.unreadCountFunc(ctx)
	}
	return 0, errors.New("not implemented")
}

func (m *mockClient) ListNotifications(ctx context.Context) ([]api.Notification, error) {
	if m.listNotificationsFunc != nil {
		return m.listNotificationsFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockClient) MarkNotificationRead(ctx context.Context, id string) error {
	if m.markNotificationReadFunc != nil {
		return m.markNotificationReadFunc(ctx, id)
	}
	return errors.New("not implemented")
}

type call struct {
	method string
	text   string
}

// mockOutputInterface records output calls. Prompts are answered from prompts in order.
type mockOutputInterface struct {
	mu      sync.Mutex
	calls   []call
	prompts []string
}

func (m *mockOutputInterface) record(method, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{method: method, text: text})
}

func (m *mockOutputInterface) Infof(format string, a ...any) {
	m.record("Infof", fmt.Sprintf(format, a...))
}

func (m *mockOutputInterface) Errorf(format string, a ...any) {
	m.record("Errorf", fmt.Sprintf(format, a...))
}

func (m *mockOutputInterface) Successf(format string, a ...any) {
	m.record("Successf", fmt.Sprintf(format, a...))
}

func (m *mockOutputInterface) Warningf(format string, a ...any) {
	m.record("Warningf", fmt.Sprintf(format, a...))
}

func (m *mockOutputInterface) Table(headers []string, rows [][]string) {
	lines := []string{strings.Join(headers, "|")}
	for _, row := range rows {
		lines = append(lines, strings.Join(row, "|"))
	}
	m.record("Table", strings.Join(lines, "\n"))
}

func (m *mockOutputInterface) Blank() {
	m.record("Blank", "")
}

func (m *mockOutputInterface) Bold(text string) string {
	return text
}

func (m *mockOutputInterface) Cyan(text string) string {
	return text
}

func (m *mockOutputInterface) KeyValue(key, value string) {
	m.record("KeyValue", key+": "+value)
}

func (m *mockOutputInterface) Prompt(prompt string) string {
	m.record("Prompt", prompt)
	return m.nextPrompt()
}

func (m *mockOutputInterface) PromptSecret(prompt string) string {
	m.record("PromptSecret", prompt)
	return m.nextPrompt()
}

func (m *mockOutputInterface) Println(a ...any) {
	m.record("Println", strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
}

func (m *mockOutputInterface) nextPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	answer := m.prompts[0]
	m.prompts = m.prompts[1:]
	return answer
}

// texts returns the text of every call to method, in order.
func (m *mockOutputInterface) texts(method string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if c.method == method {
			out = append(out, c.text)
		}
	}
	return out
}

// contains reports whether a call to method printed text containing substr.
func (m *mockOutputInterface) contains(method, substr string) bool {
	for _, text := range m.texts(method) {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}
