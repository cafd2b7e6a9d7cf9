package repo

import (
	"context"
	"sync"
	"time"
)

const memoryMessageCap = 1000

// Memory keeps keys and the most recent messages in process memory.
type Memory struct {
	mu       sync.Mutex
	keys     []APIKey
	messages []MessageRecord
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) ListActiveGeminiKeys(_ context.Context) ([]APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]APIKey, len(m.keys))
	copy(out, m.keys)
	return out, nil
}

func (m *Memory) SetCooldownUntil(_ context.Context, keyID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.keys {
		if m.keys[i].ID == keyID {
			u := until
			m.keys[i].CooldownUntil = &u
			return nil
		}
	}
	return nil
}

func (m *Memory) SeedGeminiKeys(_ context.Context, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{}, len(m.keys))
	for _, k := range m.keys {
		seen[k.ID] = struct{}{}
	}
	for _, v := range values {
		id := KeyID(v)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		m.keys = append(m.keys, APIKey{ID: id, Value: v})
	}
	return nil
}

func (m *Memory) InsertMessage(_ context.Context, msg MessageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, normaliseMessage(msg))
	if len(m.messages) > memoryMessageCap {
		m.messages = m.messages[len(m.messages)-memoryMessageCap:]
	}
	return nil
}

// Messages returns a copy of the retained messages.
func (m *Memory) Messages() []MessageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MessageRecord, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *Memory) Close() error { return nil }
