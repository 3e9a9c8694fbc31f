// Package history persists the displayed chat history for one workspace so
// a reconnecting client can be replayed the conversation (§6.3): a single
// JSON file per workspace, written on every turn the way internal/store
// writes its snapshot — to a temp file, then renamed into place.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/agent"
)

// Store owns the single chat-history file for one workspace.
type Store struct {
	mu   sync.Mutex
	path string
}

// New binds a Store to dir/workspaceID.json.
func New(dir, workspaceID string) *Store {
	return &Store{path: filepath.Join(dir, workspaceID+".json")}
}

// Load reads the persisted message history, or returns nil if none exists
// yet (a fresh workspace has no chat history file).
func (s *Store) Load() ([]agent.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: read %s: %w", s.path, err)
	}
	var messages []agent.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("history: decode %s: %w", s.path, err)
	}
	return messages, nil
}

// Save atomically replaces the persisted history with messages.
func (s *Store) Save(messages []agent.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("history: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encode: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("history: write temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("history: rename: %w", err)
	}
	return nil
}

// Reset removes the persisted history entirely (§4.7.6 reset operation).
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("history: remove %s: %w", s.path, err)
	}
	return nil
}
