package tokenstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/propdesk/propdesk/internal/constants"

	"gopkg.in/yaml.v3"
)

// File is a Store backed by a YAML document on disk.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile creates a store persisted at path. The file is created on first Set.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file backing the store.
func (f *File) Path() string {
	return f.path
}

// Get implements Store.
func (f *File) Get() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return "", err
	}
	return pick(values), nil
}

// Set implements Store.
func (f *File) Set(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		values = map[string]string{}
	}
	values[constants.TokenKey] = token
	values[constants.AccessTokenKey] = token
	return f.write(values)
}

// Clear implements Store.
func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		// An unreadable file cannot hold a usable token; drop it.
		return f.remove()
	}
	delete(values, constants.TokenKey)
	delete(values, constants.AccessTokenKey)
	if len(values) == 0 {
		return f.remove()
	}
	return f.write(values)
}

func (f *File) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return values, nil
}

func (f *File) write(values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode token file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), constants.ConfigDirPermissions); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(f.path, data, constants.ConfigFilePermissions); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func (f *File) remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
