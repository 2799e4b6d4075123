package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Memory is the in-memory Store used for tests and store-less runs.
type Memory struct {
	mu          sync.RWMutex
	checkpoints map[string][]*Checkpoint
	sessions    map[string]*Session
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		checkpoints: make(map[string][]*Checkpoint),
		sessions:    make(map[string]*Session),
	}
}

// SaveCheckpoint implements Store. A frame with the same
// (task_id, iteration, node) key replaces the previous one.
func (m *Memory) SaveCheckpoint(_ context.Context, taskID string, iteration int, node string, state json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	frame := &Checkpoint{
		TaskID:    taskID,
		Iteration: iteration,
		Node:      node,
		State:     append(json.RawMessage(nil), state...),
		CreatedAt: time.Now().UTC(),
	}
	frames := m.checkpoints[taskID]
	for i, existing := range frames {
		if existing.Iteration == iteration && existing.Node == node {
			frames[i] = frame
			return nil
		}
	}
	m.checkpoints[taskID] = append(frames, frame)
	return nil
}

// LoadLatest implements Store.
func (m *Memory) LoadLatest(_ context.Context, taskID string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	frames := m.checkpoints[taskID]
	if len(frames) == 0 {
		return nil, ErrNotFound
	}
	latest := frames[len(frames)-1]
	copied := *latest
	copied.State = append(json.RawMessage(nil), latest.State...)
	return &copied, nil
}

// SaveSession implements Store. Saving an existing ID updates its
// status and result, keeping the original description and domain.
func (m *Memory) SaveSession(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *session
	now := time.Now().UTC()
	if existing, ok := m.sessions[session.ID]; ok {
		copied.CreatedAt = existing.CreatedAt
		if copied.TaskDescription == "" {
			copied.TaskDescription = existing.TaskDescription
		}
		if copied.Domain == "" {
			copied.Domain = existing.Domain
		}
	} else if copied.CreatedAt.IsZero() {
		copied.CreatedAt = now
	}
	copied.UpdatedAt = now
	m.sessions[session.ID] = &copied
	return nil
}

// GetSession implements Store.
func (m *Memory) GetSession(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *session
	return &copied, nil
}

// ListSessions implements Store, newest first.
func (m *Memory) ListSessions(_ context.Context, limit int) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		copied := *s
		sessions = append(sessions, &copied)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// Ping implements Store.
func (m *Memory) Ping(context.Context) error { return nil }

// Close implements Store.
func (m *Memory) Close() error { return nil }
