package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgJobDB is the subset of pgxpool.Pool the job store uses.
type pgJobDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGJobStore persists job records to PostgreSQL for deployments without
// DynamoDB. Expired rows read as not found.
type PGJobStore struct {
	db pgJobDB
}

// NewPGJobStore builds a Postgres-backed job store.
func NewPGJobStore(db *pgxpool.Pool) *PGJobStore {
	if db == nil {
		panic("conversation: pgx pool cannot be nil")
	}
	return &PGJobStore{db: db}
}

func newPGJobStoreWithDB(db pgJobDB) *PGJobStore {
	if db == nil {
		panic("conversation: job db cannot be nil")
	}
	return &PGJobStore{db: db}
}

var _ JobRecorder = (*PGJobStore)(nil)
var _ JobUpdater = (*PGJobStore)(nil)

// PutPending inserts a pending job record.
func (s *PGJobStore) PutPending(ctx context.Context, job *JobRecord) error {
	if job == nil {
		return errors.New("conversation: job cannot be nil")
	}

	now := time.Now().UTC()
	job.Status = JobStatusPending
	job.CreatedAt = now.Format(time.RFC3339Nano)
	job.UpdatedAt = job.CreatedAt
	if job.ExpiresAt == 0 {
		job.ExpiresAt = now.Add(jobTTL).Unix()
	}

	reqJSON, err := marshalJSON(job.Request)
	if err != nil {
		return err
	}

	expiresAt := time.Unix(job.ExpiresAt, 0).UTC()
	if _, execErr := s.db.Exec(ctx, `
		INSERT INTO turn_jobs (
			job_id, status, session_id, channel,
			request, result, error_message,
			created_at, updated_at, expires_at
		)
		VALUES ($1,$2,$3,$4,$5,NULL,'',$6,$6,$7)
	`, job.JobID, job.Status, job.SessionID, string(job.Channel), reqJSON, now, expiresAt); execErr != nil {
		return fmt.Errorf("conversation: failed to persist job: %w", execErr)
	}
	return nil
}

// MarkCompleted stores the turn result and flips the job to completed.
func (s *PGJobStore) MarkCompleted(ctx context.Context, jobID string, result *TurnResult) error {
	if jobID == "" {
		return errors.New("conversation: jobID required")
	}
	resultJSON, err := marshalJSON(result)
	if err != nil {
		return err
	}

	tag, execErr := s.db.Exec(ctx, `
		UPDATE turn_jobs
		SET status = $2,
		    result = $3,
		    error_message = '',
		    updated_at = $4
		WHERE job_id = $1
	`, jobID, JobStatusCompleted, resultJSON, time.Now().UTC())
	if execErr != nil {
		return fmt.Errorf("conversation: failed to update job: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// MarkFailed records the error message and flips the job to failed.
func (s *PGJobStore) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	if jobID == "" {
		return errors.New("conversation: jobID required")
	}

	tag, execErr := s.db.Exec(ctx, `
		UPDATE turn_jobs
		SET status = $2,
		    result = NULL,
		    error_message = $3,
		    updated_at = $4
		WHERE job_id = $1
	`, jobID, JobStatusFailed, errMsg, time.Now().UTC())
	if execErr != nil {
		return fmt.Errorf("conversation: failed to update job: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// GetJob loads a job by id. Expired jobs read as not found.
func (s *PGJobStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	if jobID == "" {
		return nil, errors.New("conversation: jobID required")
	}

	var (
		requestJSON []byte
		resultJSON  []byte
		createdAt   time.Time
		updatedAt   time.Time
		expiresAt   pgtype.Timestamptz
		status      string
		sessionID   string
		channel     string
		errMsg      string
	)

	row := s.db.QueryRow(ctx, `
		SELECT job_id, status, session_id, channel,
		       request, result, error_message,
		       created_at, updated_at, expires_at
		FROM turn_jobs
		WHERE job_id = $1
	`, jobID)

	if err := row.Scan(&jobID, &status, &sessionID, &channel,
		&requestJSON, &resultJSON, &errMsg,
		&createdAt, &updatedAt, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("conversation: failed to fetch job: %w", err)
	}

	job := &JobRecord{
		JobID:        jobID,
		Status:       JobStatus(status),
		SessionID:    sessionID,
		Channel:      Channel(channel),
		ErrorMessage: errMsg,
		CreatedAt:    createdAt.Format(time.RFC3339Nano),
		UpdatedAt:    updatedAt.Format(time.RFC3339Nano),
	}
	if expiresAt.Valid {
		if expiresAt.Time.Before(time.Now().UTC()) {
			return nil, ErrJobNotFound
		}
		job.ExpiresAt = expiresAt.Time.Unix()
	}

	if len(requestJSON) > 0 {
		var req TurnRequest
		if err := json.Unmarshal(requestJSON, &req); err != nil {
			return nil, fmt.Errorf("conversation: failed to decode job request: %w", err)
		}
		job.Request = &req
	}
	if len(resultJSON) > 0 {
		var res TurnResult
		if err := json.Unmarshal(resultJSON, &res); err != nil {
			return nil, fmt.Errorf("conversation: failed to decode job result: %w", err)
		}
		job.Result = &res
	}

	return job, nil
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to encode json: %w", err)
	}
	return data, nil
}
