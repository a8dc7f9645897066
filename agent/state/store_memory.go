package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore keeps session state in-process. Entries are never evicted, so
// the map grows for the lifetime of the process; production deployments should
// prefer the Redis store, which carries a TTL.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (*SessionState, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	m.mu.RLock()
	payload, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrStateNotFound
	}

	var st SessionState
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("unmarshal session state: %w", err)
	}
	st.EnsureMemory()
	return &st, nil
}

func (m *MemoryStore) Save(_ context.Context, st *SessionState) error {
	if st == nil {
		return ErrNilSessionState
	}
	if strings.TrimSpace(st.SessionID) == "" {
		return ErrInvalidSession
	}

	// Round-tripping through JSON gives callers the same value-copy
	// semantics as the remote store.
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}

	m.mu.Lock()
	m.sessions[st.SessionID] = payload
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}
