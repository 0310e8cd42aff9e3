package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/tessplot/internal/journal/migrations"

	_ "modernc.org/sqlite"
)

// Run is one invocation of the plot pipeline for a target.
type Run struct {
	ID         string
	Target     int64
	Requested  []int
	Found      []int
	Samples    int
	SeriesFile string
	PlotFile   string
	CreatedAt  time.Time
}

// Download is a pixel file fetched from the archive during a run.
type Download struct {
	RunID     string
	Target    int64
	Sector    int
	Key       string
	Path      string
	Bytes     int64
	CreatedAt time.Time
}

// DBTX is the subset of database/sql used here.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// RunMigrations applies the embedded schema to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the journal database at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*Journal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordRun stores run and its downloads atomically. Zero CreatedAt values
// are set to the current time.
func (j *Journal) RecordRun(ctx context.Context, run Run, downloads []Download) error {
	now := j.now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}

	return withTx(ctx, j.db, nil, func(ctx context.Context, tx DBTX) error {
		query := `INSERT INTO runs (id, target, requested, found, samples, series_file, plot_file, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := tx.ExecContext(ctx, query, run.ID, run.Target, joinInts(run.Requested), joinInts(run.Found),
			run.Samples, run.SeriesFile, run.PlotFile, formatTime(run.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		for _, d := range downloads {
			if d.CreatedAt.IsZero() {
				d.CreatedAt = now
			}
			query := `INSERT INTO downloads (run_id, target, sector, object_key, local_path, bytes, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`
			_, err := tx.ExecContext(ctx, query, run.ID, d.Target, d.Sector, d.Key, d.Path, d.Bytes, formatTime(d.CreatedAt))
			if err != nil {
				return fmt.Errorf("failed to insert download: %w", err)
			}
		}
		return nil
	})
}

// ListRuns returns the most recent runs first. target 0 lists every target;
// limit <= 0 means no limit.
func (j *Journal) ListRuns(ctx context.Context, target int64, limit int) ([]Run, error) {
	query := `SELECT id, target, requested, found, samples, series_file, plot_file, created_at FROM runs`
	var args []any
	if target != 0 {
		query += ` WHERE target = ?`
		args = append(args, target)
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error selecting runs: %w", err)
	}
	defer rows.Close()

	var result []Run
	for rows.Next() {
		var r Run
		var requested, found, created string
		if err := rows.Scan(&r.ID, &r.Target, &requested, &found, &r.Samples, &r.SeriesFile, &r.PlotFile, &created); err != nil {
			return nil, err
		}
		r.Requested = splitInts(requested)
		r.Found = splitInts(found)
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Downloads returns the downloads recorded for runID in insertion order.
func (j *Journal) Downloads(ctx context.Context, runID string) ([]Download, error) {
	query := `SELECT run_id, target, sector, object_key, local_path, bytes, created_at
		FROM downloads WHERE run_id = ? ORDER BY rowid`
	rows, err := j.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("error selecting downloads: %w", err)
	}
	defer rows.Close()

	var result []Download
	for rows.Next() {
		var d Download
		var created string
		if err := rows.Scan(&d.RunID, &d.Target, &d.Sector, &d.Key, &d.Path, &d.Bytes, &created); err != nil {
			return nil, err
		}
		if d.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		result = append(result, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// withTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
func withTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// timeLayout is fixed width so that created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) []int {
	if s == "" {
		return []int{}
	}
	var out []int
	for _, p := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}
