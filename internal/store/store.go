// Package store persists per-segment pipeline status in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"os"
	"path/filepath"

	"github.com/ZacxDev/clip-assembler/pkg/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Segment is one persisted row of the segments table.
type Segment struct {
	Index     int
	Status    types.SegmentStatus
	ClipPath  string
	Error     string
	UpdatedAt string
}

// Run is one pipeline invocation.
type Run struct {
	ID         string
	Source     string
	StartedAt  string
	FinishedAt string
	Outcome    string
}

type Store struct {
	conn *sql.DB
	log  logrus.FieldLogger
}

// Open creates the database if needed, applies migrations and resets rows a killed run left in flight.
func Open(path string, log logrus.FieldLogger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "create state directory")
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open state database")
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "ping state database")
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "execute %s", pragma)
		}
	}

	s := &Store{conn: conn, log: log}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	if n, err := s.resetInterrupted(context.Background()); err != nil {
		log.WithError(err).Warn("Failed to reset interrupted segments")
	} else if n > 0 {
		log.Infof("Reset %d segment(s) interrupted by a previous run", n)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "read migrations")
	}
	for _, m := range entries {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if s.migrationApplied(name) {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return errors.Wrapf(err, "read migration %s", name)
		}
		if _, err := s.conn.Exec(string(content)); err != nil {
			return errors.Wrapf(err, "execute migration %s", name)
		}
		if _, err := s.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return errors.Wrapf(err, "record migration %s", name)
		}
		s.log.Debugf("Applied migration %s", name)
	}
	return nil
}

func (s *Store) migrationApplied(name string) bool {
	var exists int
	if err := s.conn.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists); err != nil {
		return false
	}
	var applied int
	err := s.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

func (s *Store) resetInterrupted(ctx context.Context) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE segments SET status = ?, error = 'interrupted by restart', updated_at = datetime('now')
		 WHERE status IN (?, ?)`,
		string(types.SegmentStatusPending), string(types.SegmentStatusSynthesizing), string(types.SegmentStatusRendering))
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return res.RowsAffected()
}

// StartRun records a new run for source and returns its ID.
func (s *Store) StartRun(ctx context.Context, source string) (string, error) {
	id := uuid.NewString()
	if _, err := s.conn.ExecContext(ctx, "INSERT INTO runs (id, source) VALUES (?, ?)", id, source); err != nil {
		return "", errors.Wrap(err, "insert run")
	}
	return id, nil
}

// FinishRun stamps the outcome of a run.
func (s *Store) FinishRun(ctx context.Context, id, outcome string) error {
	_, err := s.conn.ExecContext(ctx,
		"UPDATE runs SET finished_at = datetime('now'), outcome = ? WHERE id = ?", outcome, id)
	return errors.Wrap(err, "finish run")
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	var (
		r                 Run
		finished, outcome sql.NullString
	)
	err := s.conn.QueryRowContext(ctx,
		"SELECT id, source, started_at, finished_at, outcome FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1").
		Scan(&r.ID, &r.Source, &r.StartedAt, &finished, &outcome)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query latest run")
	}
	r.FinishedAt = finished.String
	r.Outcome = outcome.String
	return &r, nil
}

// Record upserts the status of one segment.
func (s *Store) Record(ctx context.Context, source string, idx int, status types.SegmentStatus, clipPath, errMsg string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO segments (run_source, idx, status, clip_path, error, updated_at)
		 VALUES (?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(run_source, idx) DO UPDATE SET
		   status = excluded.status,
		   clip_path = excluded.clip_path,
		   error = excluded.error,
		   updated_at = excluded.updated_at`,
		source, idx, string(status), clipPath, errMsg)
	return errors.Wrapf(err, "record segment %d", idx)
}

// Reconcile seeds every index of the plan from disk: an existing clip is Cached, anything else Pending.
func (s *Store) Reconcile(ctx context.Context, source string, count int, clipPath func(idx int) string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin reconcile")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM segments WHERE run_source = ? AND idx >= ?", source, count); err != nil {
		return errors.Wrap(err, "drop stale segments")
	}
	for idx := 0; idx < count; idx++ {
		p := clipPath(idx)
		status := types.SegmentStatusPending
		if _, err := os.Stat(p); err == nil {
			status = types.SegmentStatusCached
		} else {
			p = ""
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO segments (run_source, idx, status, clip_path, error, updated_at)
			 VALUES (?, ?, ?, ?, '', datetime('now'))
			 ON CONFLICT(run_source, idx) DO UPDATE SET
			   status = excluded.status,
			   clip_path = excluded.clip_path,
			   error = '',
			   updated_at = excluded.updated_at`,
			source, idx, string(status), p); err != nil {
			return errors.Wrapf(err, "reconcile segment %d", idx)
		}
	}
	return errors.Wrap(tx.Commit(), "commit reconcile")
}

// Segments lists the persisted statuses for source in index order.
func (s *Store) Segments(ctx context.Context, source string) ([]Segment, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT idx, status, COALESCE(clip_path, ''), COALESCE(error, ''), updated_at
		 FROM segments WHERE run_source = ? ORDER BY idx`, source)
	if err != nil {
		return nil, errors.Wrap(err, "query segments")
	}
	defer rows.Close()

	var out []Segment
	for rows.Next() {
		var (
			seg    Segment
			status string
		)
		if err := rows.Scan(&seg.Index, &status, &seg.ClipPath, &seg.Error, &seg.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan segment")
		}
		seg.Status = types.SegmentStatus(status)
		out = append(out, seg)
	}
	return out, errors.WithStack(rows.Err())
}
