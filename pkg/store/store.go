// Package store persists checkpoint frames and session records. The
// engine and orchestrator only depend on the narrow Store interface;
// backends are Postgres and an in-memory implementation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound marks a lookup for a missing session or checkpoint.
var ErrNotFound = errors.New("store: not found")

// Checkpoint is one task state snapshot, keyed by
// (task_id, iteration, node).
type Checkpoint struct {
	TaskID    string          `json:"task_id"`
	Iteration int             `json:"iteration"`
	Node      string          `json:"node"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

// Session is the durable record of one task run.
type Session struct {
	ID              string    `json:"id"`
	TaskDescription string    `json:"task_description"`
	Domain          string    `json:"domain"`
	Status          string    `json:"status"`
	Result          string    `json:"result"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Store is the persistence interface. SaveCheckpoint doubles as the
// engine's Checkpointer.
type Store interface {
	SaveCheckpoint(ctx context.Context, taskID string, iteration int, node string, state json.RawMessage) error
	LoadLatest(ctx context.Context, taskID string) (*Checkpoint, error)
	SaveSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, limit int) ([]*Session, error)
	// Ping reports backend availability, for health endpoints.
	Ping(ctx context.Context) error
	Close() error
}
