package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"

	"holoexport/internal/config"
	"holoexport/internal/export"
	"holoexport/internal/services"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// ErrTerminal is returned when a transition targets a job that already
// reached a terminal state.
var ErrTerminal = errors.New("job already terminal")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the jobs database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

const jobColumns = "id, owner, format, status, progress, request_json, result_json, error_message, output_path, created_at, updated_at, completed_at"

// Create inserts a new pending job and returns the stored row. An empty ID
// is assigned a fresh UUID.
func (s *Store) Create(ctx context.Context, job *Job) (*Job, error) {
	if job == nil {
		return nil, errors.New("job is nil")
	}
	id := strings.TrimSpace(job.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO export_jobs (
            id, owner, format, status, progress, request_json,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		nullableString(job.Owner),
		string(job.Format),
		StatusPending,
		0,
		nullableString(job.RequestJSON),
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. A missing row is a not-found error,
// never a partial record.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "get", fmt.Sprintf("job %s not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListByOwner returns jobs newest first, filtered by owner when non-empty.
func (s *Store) ListByOwner(ctx context.Context, owner string, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	if strings.TrimSpace(owner) == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM export_jobs ORDER BY created_at DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE owner = ? ORDER BY created_at DESC LIMIT ?`, owner, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobsList []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobsList = append(jobsList, job)
	}
	return jobsList, rows.Err()
}

// MarkProcessing moves a pending job into processing with the initial
// progress marker.
func (s *Store) MarkProcessing(ctx context.Context, id string, progress int) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE export_jobs SET status = ?, progress = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusProcessing,
		progress,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return s.requireTransition(ctx, res, id)
}

// UpdateProgress advances a processing job's progress. Regressions and
// writes to terminal jobs are ignored by the guard clause.
func (s *Store) UpdateProgress(ctx context.Context, id string, progress int) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE export_jobs SET progress = ?, updated_at = ?
         WHERE id = ? AND status = ? AND progress <= ?`,
		progress,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusProcessing,
		progress,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// MarkComplete records the terminal success shape: progress pinned to 100,
// result stored verbatim, completion timestamp set. A job that is already
// terminal is left untouched.
func (s *Store) MarkComplete(ctx context.Context, id, resultJSON, outputPath string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE export_jobs
         SET status = ?, progress = 100, result_json = ?, output_path = ?,
             error_message = NULL, completed_at = ?, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		StatusComplete,
		nullableString(resultJSON),
		nullableString(outputPath),
		now,
		now,
		id,
		StatusComplete,
		StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}
	return s.requireTransition(ctx, res, id)
}

// MarkFailed records the terminal failure shape: progress reset to 0, the
// most specific error message stored, completion timestamp set.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE export_jobs
         SET status = ?, progress = 0, error_message = ?, result_json = NULL,
             completed_at = ?, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		StatusFailed,
		nullableString(message),
		now,
		now,
		id,
		StatusComplete,
		StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return s.requireTransition(ctx, res, id)
}

// requireTransition distinguishes a rejected transition (row exists but is
// terminal or in the wrong state) from a missing job.
func (s *Store) requireTransition(ctx context.Context, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, id)
	}
	return fmt.Errorf("invalid transition for job %s in status %s", id, job.Status)
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM export_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusProcessing:
			health.Processing += count
		case StatusComplete:
			health.Complete += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		owner        sql.NullString
		format       sql.NullString
		statusStr    string
		progress     sql.NullInt64
		requestJSON  sql.NullString
		resultJSON   sql.NullString
		errorMessage sql.NullString
		outputPath   sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&owner,
		&format,
		&statusStr,
		&progress,
		&requestJSON,
		&resultJSON,
		&errorMessage,
		&outputPath,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		Owner:        owner.String,
		Format:       export.Format(format.String),
		Status:       Status(statusStr),
		Progress:     int(progress.Int64),
		RequestJSON:  requestJSON.String,
		ResultJSON:   resultJSON.String,
		ErrorMessage: errorMessage.String,
		OutputPath:   outputPath.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
