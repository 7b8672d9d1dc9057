package lookup

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"platecheck/lib/scrapers/csgt"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one queued lookup and, once finished, its outcome.
type Job struct {
	ID          string        `json:"id"`
	Plate       string        `json:"plate"`
	Category    csgt.Category `json:"category"`
	MaxAttempts int           `json:"max_attempts"`
	Status      Status        `json:"status"`
	Result      *csgt.Result  `json:"result,omitempty"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

type ListFilter struct {
	// Status narrows the listing; empty means all statuses.
	Status Status
	Limit  int
	Offset int
}

// Store persists lookup jobs. Callers receive it explicitly; there is
// no package-level default instance.
type Store interface {
	Put(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, filter ListFilter) ([]*Job, error)
	Delete(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (map[Status]int, error)
	Close() error
}

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

type SqliteStore struct {
	db *sql.DB
}

var _ Store = (*SqliteStore)(nil)

// OpenSqlite opens or creates the job database at path.
func OpenSqlite(path string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite", path)
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
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SqliteStore{db: db}
	if err := store.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SqliteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("schema version mismatch: database has %d, expected %d", version, schemaVersion)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// Put upserts the job by id.
func (s *SqliteStore) Put(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}

	var resultJSON any
	if job.Result != nil {
		encoded, err := json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		resultJSON = string(encoded)
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO lookup_jobs (
            id, plate, category, max_attempts, status,
            result_json, error_detail, created_at, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            status = excluded.status,
            result_json = excluded.result_json,
            error_detail = excluded.error_detail,
            completed_at = excluded.completed_at`,
		job.ID,
		job.Plate,
		int(job.Category),
		job.MaxAttempts,
		string(job.Status),
		resultJSON,
		nullableString(job.ErrorDetail),
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("put job: %w", err)
	}
	return nil
}

// Get returns nil without error when the job does not exist.
func (s *SqliteStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM lookup_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *SqliteStore) List(ctx context.Context, filter ListFilter) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM lookup_jobs`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SqliteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lookup_jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *SqliteStore) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM lookup_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

const jobColumns = "id, plate, category, max_attempts, status, result_json, error_detail, created_at, completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		plate        string
		category     int
		maxAttempts  int
		status       string
		resultJSON   sql.NullString
		errorDetail  sql.NullString
		createdRaw   string
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&id, &plate, &category, &maxAttempts, &status,
		&resultJSON, &errorDetail, &createdRaw, &completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:          id,
		Plate:       plate,
		Category:    csgt.Category(category),
		MaxAttempts: maxAttempts,
		Status:      Status(status),
		ErrorDetail: errorDetail.String,
	}
	if resultJSON.Valid {
		var result csgt.Result
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		job.Result = &result
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		job.CreatedAt = created
	}
	if completedRaw.Valid {
		if completed, err := time.Parse(time.RFC3339Nano, completedRaw.String); err == nil {
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

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}
