package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Credentials is what a client remembers between calls.
type Credentials struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenStore persists the client's credentials. Load returns a zero value
// when nothing is stored.
type TokenStore interface {
	Load() (Credentials, error)
	Save(Credentials) error
	Clear() error
}

// MemoryTokenStore keeps credentials for the life of the process.
type MemoryTokenStore struct {
	mu    sync.Mutex
	creds Credentials
}

func (m *MemoryTokenStore) Load() (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds, nil
}

func (m *MemoryTokenStore) Save(c Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = c
	return nil
}

func (m *MemoryTokenStore) Clear() error {
	return m.Save(Credentials{})
}

// FileTokenStore keeps credentials in a JSON file readable only by the owner.
type FileTokenStore struct {
	Path string
}

func (f FileTokenStore) Load() (Credentials, error) {
	var c Credentials
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return Credentials{}, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return c, nil
}

func (f FileTokenStore) Save(c Credentials) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

func (f FileTokenStore) Clear() error {
	err := os.Remove(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
