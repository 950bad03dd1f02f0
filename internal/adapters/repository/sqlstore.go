package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/okian/allot/internal/domain/model"
)

// Profile selects the SQLite durability settings.
type Profile string

const (
	// ProfileLedger fsyncs every commit and never shrinks the file.
	ProfileLedger Profile = "ledger"
	// ProfileStandard fsyncs at checkpoints.
	ProfileStandard Profile = "standard"
)

const schema = `
CREATE TABLE IF NOT EXISTS phases (
	id       TEXT PRIMARY KEY,
	title    TEXT NOT NULL UNIQUE,
	start_at INTEGER NOT NULL,
	end_at   INTEGER NOT NULL,
	active   INTEGER NOT NULL DEFAULT 0,
	body     BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_phases_active_end ON phases(active, end_at);

CREATE TABLE IF NOT EXISTS employees (
	email TEXT PRIMARY KEY,
	body  BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	title    TEXT PRIMARY KEY,
	phase_id TEXT NOT NULL DEFAULT '',
	body     BLOB NOT NULL
);
`

// SQLStore is a Store backed by SQLite. Records are stored as msgpack bodies
// next to the columns needed for lookups and constraints.
type SQLStore struct {
	conn *sql.DB
	path string

	reporter reporter
}

// NewSQLStore opens (and creates if needed) the database at path and migrates it.
func NewSQLStore(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", buildConnectionString(path, o.profile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(2)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s := &SQLStore{conn: conn, path: path}
	s.reporter.start(ctx, o.metricsUpdateInterval, s.Count)
	return s, nil
}

func buildConnectionString(path string, profile Profile) string {
	connStr := path + "?_pragma=journal_mode(WAL)"
	switch profile {
	case ProfileLedger:
		connStr += "&_pragma=synchronous(FULL)"
		connStr += "&_pragma=auto_vacuum(NONE)"
	default:
		connStr += "&_pragma=synchronous(NORMAL)"
		connStr += "&_pragma=auto_vacuum(INCREMENTAL)"
	}
	connStr += "&_pragma=foreign_keys(1)"
	connStr += "&_pragma=busy_timeout(5000)"
	return connStr
}

// Close stops the metrics updater and closes the database.
func (s *SQLStore) Close() error {
	s.reporter.stop()
	return s.conn.Close()
}

// Path returns the database file path.
func (s *SQLStore) Path() string { return s.path }

func (s *SQLStore) GetPhase(ctx context.Context, id string) (model.Phase, error) {
	var p model.Phase
	err := s.getBody(ctx, "SELECT body FROM phases WHERE id = ?", id, &p)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Phase{}, model.NotFound("phase", id)
	}
	return p, err
}

func (s *SQLStore) ListPhases(ctx context.Context) ([]model.Phase, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT body FROM phases ORDER BY start_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query phases: %w", err)
	}
	defer rows.Close()

	var out []model.Phase
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan phase: %w", err)
		}
		var p model.Phase
		if err := msgpack.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("failed to decode phase: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetEmployee(ctx context.Context, email string) (model.Employee, error) {
	var e model.Employee
	err := s.getBody(ctx, "SELECT body FROM employees WHERE email = ?", email, &e)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Employee{}, model.NotFound("employee", email)
	}
	return e, err
}

func (s *SQLStore) GetProject(ctx context.Context, title string) (model.Project, error) {
	var p model.Project
	err := s.getBody(ctx, "SELECT body FROM projects WHERE title = ?", title, &p)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Project{}, model.NotFound("project", title)
	}
	return p, err
}

func (s *SQLStore) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT body FROM projects ORDER BY title")
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		var p model.Project
		if err := msgpack.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("failed to decode project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) getBody(ctx context.Context, query, key string, v any) error {
	var body []byte
	if err := s.conn.QueryRowContext(ctx, query, key).Scan(&body); err != nil {
		return err
	}
	if err := msgpack.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return nil
}

// Apply writes the changeset in one transaction.
func (s *SQLStore) Apply(ctx context.Context, cs model.Changeset) (err error) {
	start := time.Now()
	defer func() { observeApply(start, err) }()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range cs.DeletedPhases {
		if _, err := tx.ExecContext(ctx, "DELETE FROM phases WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete phase %q: %w", id, err)
		}
	}
	for _, p := range cs.Phases {
		body, err := msgpack.Marshal(&p)
		if err != nil {
			return fmt.Errorf("failed to encode phase %q: %w", p.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO phases (id, title, start_at, end_at, active, body) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title, start_at = excluded.start_at, end_at = excluded.end_at,
				active = excluded.active, body = excluded.body`,
			p.ID, p.Title, p.StartAt.Unix(), p.EndAt.Unix(), boolToInt(p.Active), body)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				return &ConflictError{Kind: "phase", Field: model.FieldTitle, Value: p.Title}
			}
			return fmt.Errorf("failed to write phase %q: %w", p.ID, err)
		}
	}
	for _, e := range cs.Employees {
		body, err := msgpack.Marshal(&e)
		if err != nil {
			return fmt.Errorf("failed to encode employee %q: %w", e.Email, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO employees (email, body) VALUES (?, ?)
			ON CONFLICT(email) DO UPDATE SET body = excluded.body`, e.Email, body)
		if err != nil {
			return fmt.Errorf("failed to write employee %q: %w", e.Email, err)
		}
	}
	for _, p := range cs.Projects {
		body, err := msgpack.Marshal(&p)
		if err != nil {
			return fmt.Errorf("failed to encode project %q: %w", p.Title, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO projects (title, phase_id, body) VALUES (?, ?, ?)
			ON CONFLICT(title) DO UPDATE SET phase_id = excluded.phase_id, body = excluded.body`,
			p.Title, p.PhaseID, body)
		if err != nil {
			return fmt.Errorf("failed to write project %q: %w", p.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) Count(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM phases),
			(SELECT COUNT(*) FROM employees),
			(SELECT COUNT(*) FROM projects)`).Scan(&c.Phases, &c.Employees, &c.Projects)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count records: %w", err)
	}
	return c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
