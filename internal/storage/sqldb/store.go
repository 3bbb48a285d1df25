// Package sqldb stores usage records and agent activity logs in SQL.
package sqldb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
	"github.com/tjfontaine/campaign-orchestrator/internal/storage/dialect"
)

// Store implements ports.UsageStore.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var _ ports.UsageStore = (*Store)(nil)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite
	DSN    string // Data source name / connection string
}

// New creates a new SQL store with the specified configuration.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a SQLite store at dbPath.
func NewSQLite(dbPath string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

// DB returns the underlying sqlx.DB for advanced operations
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS user_usage (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			function_name TEXT NOT NULL,
			units INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS agent_logs (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			user_id TEXT,
			component TEXT NOT NULL,
			event_type TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_usage_user_created ON user_usage(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_logs_run ON agent_logs(run_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(s.dialect.Rebind(stmt)); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return s.runMigrations()
}

// runMigrations adds columns introduced after the first schema release.
func (s *Store) runMigrations() error {
	migrations := []struct {
		table  string
		column string
		ddl    string
	}{
		{"agent_logs", "cost_saved", "ALTER TABLE agent_logs ADD COLUMN cost_saved REAL NOT NULL DEFAULT 0"},
	}

	for _, m := range migrations {
		exists, err := s.columnExists(m.table, m.column)
		if err != nil {
			return fmt.Errorf("failed to check column %s.%s: %w", m.table, m.column, err)
		}
		if !exists {
			if _, err := s.db.Exec(s.dialect.Rebind(m.ddl)); err != nil {
				return fmt.Errorf("failed to add column %s.%s: %w", m.table, m.column, err)
			}
		}
	}

	return nil
}

func (s *Store) columnExists(table, column string) (bool, error) {
	var count int
	if err := s.db.QueryRow(s.dialect.ColumnExistsQuery(), table, column).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// UsageSince implements ports.QuotaCounter.
func (s *Store) UsageSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := s.dialect.Rebind(`SELECT COALESCE(SUM(units), 0) FROM user_usage
		WHERE user_id = ? AND created_at >= ?`)

	var total int
	if err := s.db.GetContext(ctx, &total, query, userID, since.UTC()); err != nil {
		return 0, fmt.Errorf("sum usage: %w", err)
	}
	return total, nil
}

// InsertUsage appends a usage record. Missing ids and timestamps are filled in.
func (s *Store) InsertUsage(ctx context.Context, rec *domain.UsageRecord) error {
	if rec == nil {
		return nil
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	query := s.dialect.Rebind(`INSERT INTO user_usage (id, user_id, function_name, units, created_at)
		VALUES (:id, :user_id, :function_name, :units, :created_at)`)
	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("insert usage: %w", err)
	}
	return nil
}

// InsertAgentLog appends an agent activity record.
func (s *Store) InsertAgentLog(ctx context.Context, log *domain.AgentLog) error {
	if log == nil {
		return nil
	}
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	log.CreatedAt = log.CreatedAt.UTC()

	var metadata string
	if len(log.Metadata) > 0 {
		data, err := json.Marshal(log.Metadata)
		if err != nil {
			return fmt.Errorf("encode agent log metadata: %w", err)
		}
		metadata = string(data)
	}

	query := s.dialect.Rebind(`INSERT INTO agent_logs (
		id, run_id, user_id, component, event_type, message, metadata, cost_saved, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		log.ID, log.RunID, log.UserID, log.Component, log.EventType, log.Message,
		metadata, log.CostSaved, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert agent log: %w", err)
	}
	return nil
}

type agentLogRow struct {
	ID        string    `db:"id"`
	RunID     string    `db:"run_id"`
	UserID    string    `db:"user_id"`
	Component string    `db:"component"`
	EventType string    `db:"event_type"`
	Message   string    `db:"message"`
	Metadata  string    `db:"metadata"`
	CostSaved float64   `db:"cost_saved"`
	CreatedAt time.Time `db:"created_at"`
}

// ListAgentLogs returns the logs of one pipeline run, oldest first.
func (s *Store) ListAgentLogs(ctx context.Context, runID string) ([]*domain.AgentLog, error) {
	if runID == "" {
		return []*domain.AgentLog{}, nil
	}

	query := s.dialect.Rebind(`SELECT id, run_id, COALESCE(user_id, '') AS user_id, component, event_type,
		       message, COALESCE(metadata, '') AS metadata, cost_saved, created_at
		FROM agent_logs
		WHERE run_id = ?
		ORDER BY created_at ASC, rowid ASC`)

	var rows []agentLogRow
	if err := s.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("list agent logs: %w", err)
	}

	logs := make([]*domain.AgentLog, 0, len(rows))
	for _, r := range rows {
		log := &domain.AgentLog{
			ID:        r.ID,
			RunID:     r.RunID,
			UserID:    r.UserID,
			Component: r.Component,
			EventType: r.EventType,
			Message:   r.Message,
			CostSaved: r.CostSaved,
			CreatedAt: r.CreatedAt,
		}
		if r.Metadata != "" {
			if err := json.Unmarshal([]byte(r.Metadata), &log.Metadata); err != nil {
				return nil, fmt.Errorf("decode agent log metadata: %w", err)
			}
		}
		logs = append(logs, log)
	}
	return logs, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
