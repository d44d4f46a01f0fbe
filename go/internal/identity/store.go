package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Identity is the minimal state kept between runs so a device can
// re-authenticate as the same user
type Identity struct {
	DeviceID string `yaml:"device_id"`
	UserID   string `yaml:"user_id,omitempty"`
	Username string `yaml:"username,omitempty"`
}

// Store defines what the gateway needs to remember a device
type Store interface {
	Load() (*Identity, error)
	Save(id *Identity) error
}

// FileStore keeps the identity in a YAML file
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns the per-user identity file location
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "xoxo", "identity.yaml")
}

// Load reads the identity. A missing file yields an empty identity.
func (s *FileStore) Load() (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Identity{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read identity file: %w", err)
	}

	var id Identity
	if err := yaml.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("failed to parse identity file: %w", err)
	}
	return &id, nil
}

// Save writes the identity, creating the parent directory if needed
func (s *FileStore) Save(id *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create identity directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace identity file: %w", err)
	}
	return nil
}

// MemoryStore keeps the identity in memory
type MemoryStore struct {
	mu sync.Mutex
	id Identity
}

func NewMemoryStore(id Identity) *MemoryStore {
	return &MemoryStore{id: id}
}

func (s *MemoryStore) Load() (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id
	return &id, nil
}

func (s *MemoryStore) Save(id *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = *id
	return nil
}
