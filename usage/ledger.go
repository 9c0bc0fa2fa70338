// Package usage persists a local ledger of OCR calls so token counts and
// cost can be summed across runs. The ledger is a single SQLite file;
// the schema is managed through embedded migrations.
package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	// SQLite driver (pure Go, no CGO required)
	_ "modernc.org/sqlite"
)

// Record sources.
const (
	SourceCLI   = "cli"
	SourceRelay = "relay"
)

// Record statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrNilLedger indicates a method call on a nil or closed ledger.
var ErrNilLedger = errors.New("usage: ledger is not open")

// Record is one OCR call written to the ledger.
type Record struct {
	ID        string
	CreatedAt time.Time
	Source    string
	FileName  string
	MIME      string
	Model     string
	Tokens    int
	Cost      float64
	Duration  time.Duration
	Status    string
}

// Totals aggregates the ledger.
type Totals struct {
	Calls  int
	Tokens int
	Cost   float64
}

// Ledger is a SQLite-backed usage store. Safe for concurrent use; writes
// are serialized through a single connection.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open creates or opens the ledger at path, applying pending schema
// migrations first. Parent directories are created as needed.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("usage: ledger path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("usage: failed to create ledger directory: %w", err)
	}

	if err := runMigrations(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("usage: failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("usage: failed to ping database: %w", err)
	}

	// WAL allows concurrent readers with a single writer; the pool is
	// capped at one connection so SQLite never sees write contention.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("usage: failed to set pragma: %w", err)
		}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Ledger{db: db, path: path}, nil
}

// Close releases the underlying database.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Path returns the ledger's database file path.
func (l *Ledger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Add writes one record. A missing ID, timestamp, or status is filled in.
func (l *Ledger) Add(ctx context.Context, rec Record) error {
	if l == nil || l.db == nil {
		return ErrNilLedger
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = StatusOK
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO usage_records
			(id, created_at, source, file_name, mime_type, model, tokens, cost, duration_ms, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt, rec.Source, rec.FileName, rec.MIME, rec.Model,
		rec.Tokens, rec.Cost, rec.Duration.Milliseconds(), rec.Status,
	)
	if err != nil {
		return fmt.Errorf("usage: failed to insert record: %w", err)
	}
	return nil
}

// Sum aggregates successful calls across the whole ledger.
func (l *Ledger) Sum(ctx context.Context) (*Totals, error) {
	if l == nil || l.db == nil {
		return nil, ErrNilLedger
	}

	var totals Totals
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(tokens), 0), COALESCE(SUM(cost), 0)
		FROM usage_records
		WHERE status = ?`, StatusOK,
	).Scan(&totals.Calls, &totals.Tokens, &totals.Cost)
	if err != nil {
		return nil, fmt.Errorf("usage: failed to aggregate records: %w", err)
	}
	return &totals, nil
}

// Recent returns the newest records, most recent first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Record, error) {
	if l == nil || l.db == nil {
		return nil, ErrNilLedger
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, created_at, source, file_name, mime_type, model, tokens, cost, duration_ms, status
		FROM usage_records
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("usage: failed to query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var durationMS int64
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.Source, &rec.FileName,
			&rec.MIME, &rec.Model, &rec.Tokens, &rec.Cost, &durationMS, &rec.Status); err != nil {
			return nil, fmt.Errorf("usage: failed to scan record: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("usage: failed to iterate records: %w", err)
	}
	return records, nil
}
