package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Keys of the persistent settings store
const (
	KeyBackendURL       = "backendUrl"
	KeyNovelID          = "novelId"
	KeyChapterNo        = "chapterNo"
	KeyAutoIncrement    = "autoIncrementChapterNo"
	KeyCustomExtractors = "customExtractors"
)

// Store is a last-writer-wins key/value store holding JSON values.
// Writes to different keys are independent; there is no multi-key transaction.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value any) error
}

// MemoryStore keeps settings in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]json.RawMessage)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = data
	return nil
}
