// Package history records completed program runs in a SQLite ledger.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound indicates the requested run doesn't exist
var ErrRunNotFound = errors.New("run not found")

// Status is the outcome of a run.
type Status string

const (
	StatusHalted Status = "halted" // '@' or zero divisor
	StatusFailed Status = "failed" // fatal error
)

// Run is one recorded execution.
type Run struct {
	ID          string
	ProgramID   string // content ID of the grid as loaded
	Source      string // file the program came from
	StartedAt   time.Time
	Duration    time.Duration
	Steps       uint64
	Status      Status
	Error       string
	OutputBytes int64
}

// NewRun starts a record for a program, stamping a fresh ID and start time.
func NewRun(programID, source string) Run {
	return Run{
		ID:        uuid.New().String(),
		ProgramID: programID,
		Source:    source,
		StartedAt: time.Now().UTC(),
	}
}

// Finish fills in the outcome of the run.
func (r *Run) Finish(steps uint64, outputBytes int64, err error) {
	r.Duration = time.Since(r.StartedAt)
	r.Steps = steps
	r.OutputBytes = outputBytes
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
	} else {
		r.Status = StatusHalted
	}
}

// Store handles SQLite storage for runs
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		program_id   TEXT NOT NULL,
		source       TEXT NOT NULL,
		started_at   INTEGER NOT NULL,
		duration_ns  INTEGER NOT NULL,
		steps        INTEGER NOT NULL,
		status       TEXT NOT NULL,
		error        TEXT NOT NULL,
		output_bytes INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record persists a run, replacing any earlier record with the same ID.
func (s *Store) Record(ctx context.Context, r Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		return fmt.Errorf("recording run: empty id")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs
			(id, program_id, source, started_at, duration_ns, steps, status, error, output_bytes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProgramID, r.Source, r.StartedAt.UnixNano(), int64(r.Duration),
		int64(r.Steps), string(r.Status), r.Error, r.OutputBytes,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// Get retrieves a single run by ID.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, fmt.Errorf("querying run: %w", err)
	}
	return r, nil
}

// List returns up to limit runs, most recent first. A limit <= 0 returns
// every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	return s.query(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limitArg(limit))
}

// ListProgram returns runs of one program, most recent first.
func (s *Store) ListProgram(ctx context.Context, programID string, limit int) ([]Run, error) {
	return s.query(ctx, `SELECT `+runColumns+` FROM runs WHERE program_id = ? ORDER BY started_at DESC LIMIT ?`,
		programID, limitArg(limit))
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

const runColumns = `id, program_id, source, started_at, duration_ns, steps, status, error, output_bytes`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r         Run
		startedAt int64
		duration  int64
		steps     int64
		status    string
	)
	err := sc.Scan(&r.ID, &r.ProgramID, &r.Source, &startedAt, &duration, &steps, &status, &r.Error, &r.OutputBytes)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.Unix(0, startedAt).UTC()
	r.Duration = time.Duration(duration)
	r.Steps = uint64(steps)
	r.Status = Status(status)
	return r, nil
}

// limitArg maps "no limit" to SQLite's -1.
func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
