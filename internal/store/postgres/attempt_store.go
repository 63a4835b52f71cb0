package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/provex-backend/internal/model"
	"github.com/stemsi/provex-backend/internal/store"
)

const attemptColumns = `id, exam_id, user_id, session_token, started_at, end_time, status,
	answers, score, total_marks, percentage, passed, time_taken_seconds, submitted_at,
	camera_video_url, screen_video_url`

// AttemptStore is the pgx-backed authoritative attempt store.
type AttemptStore struct {
	pool *pgxpool.Pool
}

// NewAttemptStore creates a new AttemptStore.
func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(
		&a.ID, &a.ExamID, &a.UserID, &a.SessionToken, &a.StartedAt, &a.EndTime, &a.Status,
		&a.Answers, &a.Score, &a.TotalMarks, &a.Percentage, &a.Passed, &a.TimeTakenSeconds,
		&a.SubmittedAt, &a.Recordings.CameraVideoURL, &a.Recordings.ScreenVideoURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if a.Answers == nil {
		a.Answers = map[string]string{}
	}
	return a, nil
}

// Get retrieves an attempt by ID.
func (r *AttemptStore) Get(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
}

// GetActive retrieves the single active attempt for an exam-user combination.
func (r *AttemptStore) GetActive(ctx context.Context, examID, userID uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE exam_id = $1 AND user_id = $2 AND status = 'active'`, examID, userID))
}

// Create inserts a new active attempt. The partial unique index on
// (exam_id, user_id) WHERE status = 'active' resolves concurrent starts:
// the loser gets no row back and maps to store.ErrConflict.
func (r *AttemptStore) Create(ctx context.Context, a *model.Attempt) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO attempts (id, exam_id, user_id, session_token, started_at, end_time, status, answers, total_marks)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (exam_id, user_id) WHERE status = 'active' DO NOTHING
		 RETURNING id`,
		a.ID, a.ExamID, a.UserID, a.SessionToken, a.StartedAt, a.EndTime, a.Status, a.Answers, a.TotalMarks,
	).Scan(&a.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrConflict
	}
	return err
}

// Reinsert restores a full attempt row from the mirror (self-heal path).
func (r *AttemptStore) Reinsert(ctx context.Context, a *model.Attempt) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempts (`+attemptColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (id) DO NOTHING`,
		a.ID, a.ExamID, a.UserID, a.SessionToken, a.StartedAt, a.EndTime, a.Status,
		a.Answers, a.Score, a.TotalMarks, a.Percentage, a.Passed, a.TimeTakenSeconds,
		a.SubmittedAt, a.Recordings.CameraVideoURL, a.Recordings.ScreenVideoURL,
	)
	return err
}

// CountTerminal counts submitted and expired attempts for the quota gate.
func (r *AttemptStore) CountTerminal(ctx context.Context, examID, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts
		 WHERE exam_id = $1 AND user_id = $2 AND status IN ('submitted', 'expired')`,
		examID, userID,
	).Scan(&n)
	return n, err
}

// ExpireOthers defensively expires stale active attempts other than keep.
func (r *AttemptStore) ExpireOthers(ctx context.Context, examID, userID, keep uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts SET status = 'expired'
		 WHERE exam_id = $1 AND user_id = $2 AND status = 'active' AND id <> $3`,
		examID, userID, keep)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// UpsertAnswer writes a single answer key, last write wins.
func (r *AttemptStore) UpsertAnswer(ctx context.Context, attemptID uuid.UUID, questionID, answer string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET answers = jsonb_set(COALESCE(answers, '{}'::jsonb), ARRAY[$2], to_jsonb($3::text), true)
		 WHERE id = $1`,
		attemptID, questionID, answer)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// MarkExpired transitions an active attempt to expired.
func (r *AttemptStore) MarkExpired(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts SET status = 'expired' WHERE id = $1 AND status = 'active'`, id)
	return err
}

// Finalize persists the scored submission. Guarded on status so a terminal
// attempt can never be rewritten.
func (r *AttemptStore) Finalize(ctx context.Context, a *model.Attempt) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = 'submitted', answers = $2, score = $3, total_marks = $4,
		     percentage = $5, passed = $6, time_taken_seconds = $7, submitted_at = $8
		 WHERE id = $1 AND status = 'active'`,
		a.ID, a.Answers, a.Score, a.TotalMarks, a.Percentage, a.Passed, a.TimeTakenSeconds, a.SubmittedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}
	return nil
}

// SetRecordingURL sets or clears a recording reference.
func (r *AttemptStore) SetRecordingURL(ctx context.Context, id uuid.UUID, kind model.RecordingKind, url *string) error {
	column := "screen_video_url"
	if kind == model.RecordingCamera {
		column = "camera_video_url"
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts SET `+column+` = $2 WHERE id = $1`, id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListByExam retrieves all attempts for an exam, newest first.
func (r *AttemptStore) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE exam_id = $1 ORDER BY started_at DESC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

// ExpireOverdue is the sweep backstop for attempts nobody touches again.
func (r *AttemptStore) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts SET status = 'expired' WHERE status = 'active' AND end_time < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
