// Package manifest records batch runs and per-document outcomes in SQLite.
// The recorded source digests back the content-based incremental cache.
package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/a3tai/syllabus-extractor/internal/pipeline"
)

// Run is one recorded batch run.
type Run struct {
	ID         string         `json:"id"`
	InputDir   string         `json:"input_dir"`
	OutputDir  string         `json:"output_dir"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Stats      pipeline.Stats `json:"stats"`
}

// Document is the latest recorded outcome for one source file. RunID is
// empty when the outcome came from a single-document extraction.
type Document struct {
	Filename       string    `json:"filename"`
	SourceDigest   string    `json:"source_digest"`
	SourceModTime  time.Time `json:"source_mtime"`
	Status         string    `json:"status"`
	ObjectiveCount int       `json:"objective_count"`
	Error          string    `json:"error,omitempty"`
	RunID          string    `json:"run_id,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Store is a SQLite-backed manifest. It implements pipeline.RunRecorder and
// pipeline.DigestLookup.
type Store struct {
	db   *sql.DB
	path string
}

var (
	_ pipeline.RunRecorder  = (*Store)(nil)
	_ pipeline.DigestLookup = (*Store)(nil)
)

// Open opens or creates the manifest database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating manifest directory: %w", err)
	}

	// WAL lets the batch pool read digests while a run is being recorded.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

var migrations = []string{
	`CREATE TABLE runs (
		id TEXT PRIMARY KEY,
		input_dir TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		total_files INTEGER NOT NULL,
		processed INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		total_objectives INTEGER NOT NULL
	);
	CREATE TABLE documents (
		filename TEXT PRIMARY KEY,
		source_digest TEXT NOT NULL,
		source_mtime TEXT NOT NULL,
		status TEXT NOT NULL,
		objective_count INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		run_id TEXT NOT NULL REFERENCES runs(id),
		updated_at TEXT NOT NULL
	);
	CREATE INDEX idx_runs_started_at ON runs(started_at);`,
}

// migrate runs all pending migrations.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	for i, stmt := range migrations {
		version := i + 1
		if version <= current {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// RecordRun stores the run and upserts one row per document it touched.
// Reports that wrote nothing are ignored.
func (s *Store) RecordRun(ctx context.Context, report *pipeline.BatchReport) error {
	if report == nil || !report.Written {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	finished := time.Now().UTC()
	stats := report.Summary.Stats
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, input_dir, output_dir, started_at, finished_at,
			total_files, processed, skipped, failed, total_objectives)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.RunID, report.InputDir, report.OutputDir,
		formatTime(report.StartedAt), formatTime(finished),
		stats.TotalFiles, stats.Processed, stats.Skipped, stats.Failed, stats.TotalObjectives)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	for _, result := range report.Results {
		if err := upsertDocument(ctx, tx, result, report.RunID, finished); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

// RecordDocument upserts the outcome of a document extracted outside a
// batch run, so its digest serves the content cache of later runs.
func (s *Store) RecordDocument(ctx context.Context, result pipeline.Result) error {
	return upsertDocument(ctx, s.db, result, "", time.Now().UTC())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertDocument(ctx context.Context, db execer, result pipeline.Result, runID string, at time.Time) error {
	errText := ""
	if result.Err != nil {
		errText = result.Err.Error()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO documents (filename, source_digest, source_mtime, status,
			objective_count, error, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			source_digest = excluded.source_digest,
			source_mtime = excluded.source_mtime,
			status = excluded.status,
			objective_count = excluded.objective_count,
			error = excluded.error,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at
	`, result.Filename, result.SourceDigest, formatTime(result.SourceModTime), string(result.Status),
		result.Count(), errText, runID, formatTime(at))
	if err != nil {
		return fmt.Errorf("saving document %s: %w", result.Filename, err)
	}
	return nil
}

// LookupDigest returns the source digest recorded for filename by the last
// run that produced an artifact for it. Failed documents have none.
func (s *Store) LookupDigest(ctx context.Context, filename string) (string, bool, error) {
	var digest string
	err := s.db.QueryRowContext(ctx, `
		SELECT source_digest FROM documents
		WHERE filename = ? AND status IN ('processed', 'skipped') AND source_digest != ''
	`, filename).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up digest: %w", err)
	}
	return digest, true, nil
}

// Runs returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, input_dir, output_dir, started_at, finished_at,
			total_files, processed, skipped, failed, total_objectives
		FROM runs ORDER BY started_at DESC, finished_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// Documents returns the latest outcome of every recorded document, ordered
// by filename.
func (s *Store) Documents(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT filename, source_digest, source_mtime, status, objective_count, error, run_id, updated_at
		FROM documents ORDER BY filename
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var d Document
		var mtime, updated string
		if err := rows.Scan(&d.Filename, &d.SourceDigest, &mtime, &d.Status,
			&d.ObjectiveCount, &d.Error, &d.RunID, &updated); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		d.SourceModTime = parseTime(mtime)
		d.UpdatedAt = parseTime(updated)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var started, finished string
	if err := row.Scan(&r.ID, &r.InputDir, &r.OutputDir, &started, &finished,
		&r.Stats.TotalFiles, &r.Stats.Processed, &r.Stats.Skipped, &r.Stats.Failed,
		&r.Stats.TotalObjectives); err != nil {
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	return r, nil
}

// Times are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
