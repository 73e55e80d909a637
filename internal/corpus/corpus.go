// Package corpus keeps a SQLite history of reconstruction runs so
// fingerprint drift on a known input shows up as a regression instead
// of passing silently.
package corpus

import (
	"context"
	"database/sql"
	"time"

	"github.com/FocuswithJustin/Partitura/core/errors"
	"github.com/FocuswithJustin/Partitura/core/sqlite"
)

// Run is one recorded reconstruction of one source file.
type Run struct {
	ID          int64
	RecordedAt  time.Time
	Source      string
	Format      string
	Fingerprint string
	Parts       int
	Notes       int
	Violations  int
	Differences int
	Pass        bool
}

// Store is a corpus database handle.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at  TEXT    NOT NULL,
	source       TEXT    NOT NULL,
	format       TEXT    NOT NULL,
	fingerprint  TEXT    NOT NULL,
	parts        INTEGER NOT NULL,
	notes        INTEGER NOT NULL,
	violations   INTEGER NOT NULL,
	differences  INTEGER NOT NULL,
	pass         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
`

// Open opens (or creates) a corpus database at the given path and
// applies the schema.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply corpus schema")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a run, filling in its ID and timestamp.
func (s *Store) Record(ctx context.Context, run *Run) error {
	if run.Source == "" {
		return errors.NewValidation("source", "run source is required")
	}
	if run.Fingerprint == "" {
		return errors.NewValidation("fingerprint", "run fingerprint is required")
	}

	run.RecordedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (recorded_at, source, format, fingerprint, parts, notes, violations, differences, pass)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RecordedAt.Format(time.RFC3339Nano), run.Source, run.Format,
		run.Fingerprint, run.Parts, run.Notes, run.Violations,
		run.Differences, boolToInt(run.Pass))
	if err != nil {
		return errors.Wrap(err, "failed to record run")
	}
	run.ID, err = res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read run ID")
	}
	return nil
}

// List returns the most recent runs, newest first. A non-positive
// limit returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, recorded_at, source, format, fingerprint, parts, notes, violations, differences, pass
	          FROM runs ORDER BY id DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+" LIMIT ?", limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()
	return scanRuns(rows)
}

// BySource returns every run recorded for one source, newest first.
func (s *Store) BySource(ctx context.Context, source string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recorded_at, source, format, fingerprint, parts, notes, violations, differences, pass
		 FROM runs WHERE source = ? ORDER BY id DESC`, source)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query runs")
	}
	defer rows.Close()
	return scanRuns(rows)
}

// Latest returns the most recent run for a source, or a not-found
// error if the source has never been recorded.
func (s *Store) Latest(ctx context.Context, source string) (*Run, error) {
	runs, err := s.BySource(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.NewNotFound("run", source)
	}
	return &runs[0], nil
}

// Regressed reports whether a fresh fingerprint differs from the last
// recorded one for the source. A source with no history never counts
// as regressed; the previous run is returned when one exists.
func (s *Store) Regressed(ctx context.Context, source, fingerprint string) (bool, *Run, error) {
	prev, err := s.Latest(ctx, source)
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil, nil
		}
		return false, nil, err
	}
	return prev.Fingerprint != fingerprint, prev, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var run Run
		var recordedAt string
		var pass int
		if err := rows.Scan(&run.ID, &recordedAt, &run.Source, &run.Format,
			&run.Fingerprint, &run.Parts, &run.Notes, &run.Violations,
			&run.Differences, &pass); err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		t, err := time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, errors.NewParse("timestamp", "", err.Error())
		}
		run.RecordedAt = t
		run.Pass = pass != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
