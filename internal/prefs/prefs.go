// Package prefs is the key/value port for user preferences, cached
// identifiers and session tokens.
package prefs

import (
	"context"
	"strconv"
	"sync"
)

// Well-known keys.
const (
	KeyDeadlinesVisible      = "deadlines_visible"
	KeyGithubPromptSeen      = "github_prompt_seen"
	KeyGithubPromptDismissed = "github_prompt_dismissed"
	KeyTheme                 = "theme"
	KeyCalendarID            = "calendar_id"
	KeyTokenUniversity       = "token_university"
	KeyTokenProvider         = "token_provider"
	KeyTokenLMS              = "token_lms"
)

// Preserved lists the keys that survive a session clear.
var Preserved = []string{
	KeyDeadlinesVisible,
	KeyGithubPromptSeen,
	KeyGithubPromptDismissed,
	KeyTheme,
}

// Store is the preference storage port.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// ClearExcept removes every key except those listed in keep.
	ClearExcept(ctx context.Context, keep []string) error
}

// Bool reads a boolean preference, returning def when unset or unparsable.
func Bool(ctx context.Context, s Store, key string, def bool) bool {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// SetBool writes a boolean preference.
func SetBool(ctx context.Context, s Store, key string, v bool) error {
	return s.Set(ctx, key, strconv.FormatBool(v))
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// ClearExcept snapshots the kept keys, wipes the map and restores them.
func (m *MemoryStore) ClearExcept(_ context.Context, keep []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string]string, len(keep))
	for _, k := range keep {
		if v, ok := m.data[k]; ok {
			snapshot[k] = v
		}
	}
	m.data = snapshot
	return nil
}
