package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a throwaway Postgres container and returns a
// migrated store.
func setupPostgres(t *testing.T) *Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("agentic_test"),
		postgres.WithUsername("agentic"),
		postgres.WithPassword("agentic"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("could not start postgres container (docker unavailable?): %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	db, err := NewPostgres(ctx, PostgresConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "agentic",
		Password: "agentic",
		Database: "agentic_test",
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPostgresStore(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	t.Run("checkpoints", func(t *testing.T) {
		_, err := db.LoadLatest(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, db.SaveCheckpoint(ctx, "t1", 0, "plan", json.RawMessage(`{"iteration": 0}`)))
		require.NoError(t, db.SaveCheckpoint(ctx, "t1", 1, "execute", json.RawMessage(`{"iteration": 1}`)))
		// Same key upserts.
		require.NoError(t, db.SaveCheckpoint(ctx, "t1", 1, "execute", json.RawMessage(`{"iteration": 1, "v": 2}`)))

		latest, err := db.LoadLatest(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, 1, latest.Iteration)
		assert.Equal(t, "execute", latest.Node)
		assert.JSONEq(t, `{"iteration": 1, "v": 2}`, string(latest.State))
	})

	t.Run("sessions", func(t *testing.T) {
		_, err := db.GetSession(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, db.SaveSession(ctx, &Session{
			ID:              "s1",
			TaskDescription: "write calculator",
			Domain:          "coding",
			Status:          "in_progress",
		}))
		require.NoError(t, db.SaveSession(ctx, &Session{ID: "s1", Status: "completed", Result: "done"}))

		got, err := db.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "completed", got.Status)
		assert.Equal(t, "done", got.Result)
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

		require.NoError(t, db.SaveSession(ctx, &Session{ID: "s2", Status: "failed"}))
		sessions, err := db.ListSessions(ctx, 10)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(sessions), 2)
	})
}
