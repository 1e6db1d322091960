package logstore

import (
	"context"
	"strings"
	"sync"

	contractx "github.com/natthaphol/shopscout/agent/contract"
)

// MemoryStore keeps run records in process memory, grouped by session. It is
// the default store when no Redis credentials are configured.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]contractx.LogRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]contractx.LogRecord)}
}

func (m *MemoryStore) Append(_ context.Context, rec contractx.LogRecord) error {
	session := strings.TrimSpace(rec.SessionID)
	if session == "" {
		session = anonymousSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session] = append(m.sessions[session], rec)
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, sessionID string, n int) ([]contractx.LogRecord, error) {
	if n <= 0 {
		return []contractx.LogRecord{}, nil
	}
	session := strings.TrimSpace(sessionID)
	if session == "" {
		session = anonymousSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sessions[session]
	if len(all) > n {
		all = all[len(all)-n:]
	}
	out := make([]contractx.LogRecord, len(all))
	copy(out, all)
	return out, nil
}
