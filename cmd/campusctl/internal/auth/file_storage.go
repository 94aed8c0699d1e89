package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schoolops/campus/pkg/sdk"
)

const sessionFile = "session.json"

// fileSlots is the on-disk layout: the two durable slots side by side.
type fileSlots struct {
	Token string `json:"token"`
	User  string `json:"user"`
}

// FileStorage implements sdk.SessionStorage using a JSON file readable only
// by the current user.
type FileStorage struct {
	path string
}

// Ensure FileStorage implements sdk.SessionStorage at compile time.
var _ sdk.SessionStorage = (*FileStorage)(nil)

// NewFileStorage creates a FileStorage at path. An empty path selects
// session.json inside dir.
func NewFileStorage(dir, path string) *FileStorage {
	if path == "" {
		path = filepath.Join(dir, sessionFile)
	}
	return &FileStorage{path: path}
}

// Path returns the location of the session file.
func (s *FileStorage) Path() string {
	return s.path
}

// Load reads both slots. A missing file means no session; an unreadable
// file is reported as sdk.ErrMalformedSession.
func (s *FileStorage) Load(_ context.Context) (sdk.Slots, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sdk.Slots{}, nil
		}
		return sdk.Slots{}, fmt.Errorf("failed to read session file: %w", err)
	}
	var f fileSlots
	if err := json.Unmarshal(data, &f); err != nil {
		return sdk.Slots{}, fmt.Errorf("%w: %s: %v", sdk.ErrMalformedSession, s.path, err)
	}
	return sdk.Slots{Credential: f.Token, Profile: []byte(f.User)}, nil
}

// Save writes both slots with a temp file and an atomic rename, so a reader
// never sees one slot without the other.
func (s *FileStorage) Save(_ context.Context, slots sdk.Slots) error {
	data, err := json.MarshalIndent(fileSlots{Token: slots.Credential, User: string(slots.Profile)}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, sessionFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp session file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to restrict session file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Clear deletes the session file.
func (s *FileStorage) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
