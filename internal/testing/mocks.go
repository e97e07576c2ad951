package testing

import (
	"net/http"

	"github.com/stretchr/testify/mock"
)

// MockTokenStore mocks tokenstore.Store
type MockTokenStore struct {
	mock.Mock
}

func NewMockTokenStore() *MockTokenStore {
	return &MockTokenStore{}
}

func (m *MockTokenStore) Get() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockTokenStore) Set(token string) error {
	args := m.Called(token)
	return args.Error(0)
}

func (m *MockTokenStore) Clear() error {
	args := m.Called()
	return args.Error(0)
}

// MockPlatform mocks platform.Platform
type MockPlatform struct {
	mock.Mock
}

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{}
}

func (m *MockPlatform) Origin() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockPlatform) Location() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockPlatform) Redirect(path string) {
	m.Called(path)
}

func (m *MockPlatform) Cookie(name string) (string, bool) {
	args := m.Called(name)
	return args.String(0), args.Bool(1)
}

func (m *MockPlatform) CookieJar() http.CookieJar {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(http.CookieJar)
}
