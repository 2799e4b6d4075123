package store

import (
	"context"
	stdsql "database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver for database/sql
)

//go:embed migrations
var migrationsFS embed.FS

// PostgresConfig holds connection settings for the Postgres store.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Postgres is the durable Store. Migrations embedded in the binary are
// applied on startup.
type Postgres struct {
	db *stdsql.DB
}

var _ Store = (*Postgres)(nil)

// NewPostgres opens a connection pool, verifies it, and applies pending
// migrations.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Postgres{db: db}, nil
}

// runMigrations applies pending migrations from the embedded FS.
func runMigrations(db *stdsql.DB, database string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, database, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	// Close only the source driver: m.Close() would also close the
	// shared *sql.DB.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}
	return nil
}

// SaveCheckpoint implements Store.
func (p *Postgres) SaveCheckpoint(ctx context.Context, taskID string, iteration int, node string, state json.RawMessage) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO checkpoints (task_id, iteration, node, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (task_id, iteration, node)
		DO UPDATE SET state = EXCLUDED.state, created_at = now()`,
		taskID, iteration, node, state)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for task %s: %w", taskID, err)
	}
	return nil
}

// LoadLatest implements Store.
func (p *Postgres) LoadLatest(ctx context.Context, taskID string) (*Checkpoint, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT task_id, iteration, node, state, created_at
		FROM checkpoints
		WHERE task_id = $1
		ORDER BY id DESC
		LIMIT 1`, taskID)

	var cp Checkpoint
	err := row.Scan(&cp.TaskID, &cp.Iteration, &cp.Node, &cp.State, &cp.CreatedAt)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint for task %s: %w", taskID, err)
	}
	return &cp, nil
}

// SaveSession implements Store.
func (p *Postgres) SaveSession(ctx context.Context, session *Session) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sessions (id, task_description, domain, status, result)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET status = EXCLUDED.status, result = EXCLUDED.result, updated_at = now()`,
		session.ID, session.TaskDescription, session.Domain, session.Status, session.Result)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	return nil
}

// GetSession implements Store.
func (p *Postgres) GetSession(ctx context.Context, id string) (*Session, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, task_description, domain, status, result, created_at, updated_at
		FROM sessions
		WHERE id = $1`, id)

	var s Session
	err := row.Scan(&s.ID, &s.TaskDescription, &s.Domain, &s.Status, &s.Result, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return &s, nil
}

// ListSessions implements Store, newest first.
func (p *Postgres) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, task_description, domain, status, result, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.TaskDescription, &s.Domain, &s.Status, &s.Result, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

// DB returns the underlying pool for health checks.
func (p *Postgres) DB() *stdsql.DB { return p.db }

// Ping implements Store.
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Close implements Store.
func (p *Postgres) Close() error { return p.db.Close() }
