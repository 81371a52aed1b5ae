package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Session is what the client remembers between runs.
type Session struct {
	Token  string `json:"token"`
	UserID uint   `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

// LoggedIn reports whether a token is present.
func (s Session) LoggedIn() bool { return s.Token != "" }

// TokenStore persists the session. Load returns a zero Session when nothing
// has been saved yet.
type TokenStore interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

// MemoryTokenStore keeps the session for the lifetime of the process.
type MemoryTokenStore struct {
	mu      sync.Mutex
	session Session
}

func (m *MemoryTokenStore) Load() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, nil
}

func (m *MemoryTokenStore) Save(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	return nil
}

func (m *MemoryTokenStore) Clear() error {
	return m.Save(Session{})
}

// FileTokenStore keeps the session in a JSON file readable only by the owner.
type FileTokenStore struct {
	Path string
}

// DefaultSessionPath is ~/.newsboard/session.json, or the working directory
// when the home directory is unknown.
func DefaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".newsboard", "session.json")
	}
	return filepath.Join(home, ".newsboard", "session.json")
}

func (f FileTokenStore) Load() (Session, error) {
	var s Session
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, fmt.Errorf("reading session %s: %w", f.Path, err)
	}
	return s, nil
}

func (f FileTokenStore) Save(s Session) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, b, 0o600)
}

func (f FileTokenStore) Clear() error {
	err := os.Remove(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
