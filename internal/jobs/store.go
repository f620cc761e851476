package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"scribe/internal/config"
)

// ErrInvalidTransition indicates a status write that the job state machine
// does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// storedTimeLayout is RFC 3339 with a fixed-width nanosecond fraction so
// timestamps stored as text compare correctly in SQL.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Store manages job persistence backed by SQLite. It is the single source of
// truth for job status; queue messages only carry pointers into it.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.JobDatabasePath())
}

// OpenPath opens the job database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
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

// CreateJob inserts a new queued job. When the caller supplies no id, the
// store assigns one.
func (s *Store) CreateJob(ctx context.Context, newJob NewJob) (*Job, error) {
	id := newJob.ID
	if id == "" {
		id = uuid.NewString()
	}
	optionsJSON, err := json.Marshal(newJob.Options)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}
	timestamp := time.Now().UTC().Format(storedTimeLayout)

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (id, status, source_url, language, options_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		StatusQueued,
		nullableString(newJob.SourceURL),
		nullableString(newJob.Language),
		string(optionsJSON),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier. A missing job returns (nil, nil).
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateJobStatus moves a job to a new status after validating the
// transition against the state machine.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, to Status) error {
	return s.transition(ctx, id, to, func(tx *sql.Tx, now string) error {
		_, err := tx.ExecContext(
			ctx,
			`UPDATE jobs SET status = ?, error_message = NULL, updated_at = ? WHERE id = ?`,
			to, now, id,
		)
		return err
	})
}

// UpdateJobProgress replaces the free-form progress marker. Progress is not
// status; no transition check applies.
func (s *Store) UpdateJobProgress(ctx context.Context, id, progress string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?`,
		nullableString(progress),
		time.Now().UTC().Format(storedTimeLayout),
		id,
	)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// SetJobResult persists transcription output plus derived metadata and marks
// the job completed in the same write.
func (s *Store) SetJobResult(ctx context.Context, id string, output Output, meta ResultMetadata) error {
	result := Result{Output: output, ResultMetadata: meta}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return s.transition(ctx, id, StatusCompleted, func(tx *sql.Tx, now string) error {
		_, err := tx.ExecContext(
			ctx,
			`UPDATE jobs SET status = ?, result_json = ?, error_message = NULL, updated_at = ? WHERE id = ?`,
			StatusCompleted, string(resultJSON), now, id,
		)
		return err
	})
}

// SetJobError records a terminal failure. Recording an error against a job
// that does not exist is a no-op so the failure path never masks the
// original error. An already failed job re-records the message, and a
// completed job is left untouched, so redelivered poison messages settle
// without spurious transition errors.
func (s *Store) SetJobError(ctx context.Context, id, message string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read current status: %w", err)
	}

	from := Status(current)
	if from == StatusCompleted {
		return nil
	}
	if from != StatusFailed && !ValidTransition(from, StatusFailed) {
		return fmt.Errorf("%w: job %s cannot move %s -> %s", ErrInvalidTransition, id, from, StatusFailed)
	}

	now := time.Now().UTC().Format(storedTimeLayout)
	_, err = tx.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		StatusFailed, nullableString(message), now, id,
	)
	if err != nil {
		return fmt.Errorf("write status %s: %w", StatusFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// transition runs a validated status write inside a transaction. The update
// closure performs the actual write once the move is proven legal.
func (s *Store) transition(ctx context.Context, id string, to Status, update func(tx *sql.Tx, now string) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read current status: %w", err)
	}

	from := Status(current)
	if !ValidTransition(from, to) {
		return fmt.Errorf("%w: job %s cannot move %s -> %s", ErrInvalidTransition, id, from, to)
	}

	now := time.Now().UTC().Format(storedTimeLayout)
	if err := update(tx, now); err != nil {
		return fmt.Errorf("write status %s: %w", to, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
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

// RetryFailed moves failed jobs back to queued for reprocessing. With no ids
// it retries every failed job.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	now := time.Now().UTC().Format(storedTimeLayout)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs SET status = ?, error_message = NULL, progress = NULL, updated_at = ? WHERE status = ?`,
			StatusQueued, now, StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusQueued, now)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE jobs SET status = ?, error_message = NULL, progress = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}

// FailStaleProcessing fails jobs stuck in processing since before the
// cutoff. Run on daemon startup so abandoned attempts surface instead of
// hanging forever.
func (s *Store) FailStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ?
         WHERE status = ? AND updated_at < ?`,
		StatusFailed,
		StaleProcessingReason,
		time.Now().UTC().Format(storedTimeLayout),
		StatusProcessing,
		cutoff.UTC().Format(storedTimeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale processing: %w", err)
	}
	return res.RowsAffected()
}

const jobColumns = "id, status, source_url, language, options_json, progress, result_json, error_message, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		statusStr    string
		sourceURL    sql.NullString
		languageCode sql.NullString
		optionsJSON  sql.NullString
		progress     sql.NullString
		resultJSON   sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&sourceURL,
		&languageCode,
		&optionsJSON,
		&progress,
		&resultJSON,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		Status:       Status(statusStr),
		SourceURL:    sourceURL.String,
		Language:     languageCode.String,
		Progress:     progress.String,
		ErrorMessage: errorMessage.String,
	}
	if optionsJSON.Valid && optionsJSON.String != "" {
		if err := json.Unmarshal([]byte(optionsJSON.String), &job.Options); err != nil {
			return nil, fmt.Errorf("decode job options: %w", err)
		}
	}
	if resultJSON.Valid && resultJSON.String != "" {
		var result Result
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
		job.Result = &result
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
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
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
