package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/provex-backend/internal/model"
	"github.com/stemsi/provex-backend/internal/store"
)

// ExamStore is the pgx-backed exam reader plus mirror writer.
type ExamStore struct {
	pool *pgxpool.Pool
}

// NewExamStore creates a new ExamStore.
func NewExamStore(pool *pgxpool.Pool) *ExamStore {
	return &ExamStore{pool: pool}
}

// Get retrieves an exam by ID.
func (r *ExamStore) Get(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, duration_minutes, total_marks, max_attempts, passing_percentage,
		        start_date, end_date, category_id, randomize_questions,
		        question_group_ids, subject_ids, created_at, updated_at
		 FROM exams WHERE id = $1`, id,
	).Scan(
		&e.ID, &e.Title, &e.DurationMinutes, &e.TotalMarks, &e.MaxAttempts, &e.PassingPercentage,
		&e.StartDate, &e.EndDate, &e.CategoryID, &e.RandomizeQuestions,
		&e.QuestionGroupIDs, &e.SubjectIDs, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// AttemptFromMirror reads one attempt out of the exam-embedded read model.
func (r *ExamStore) AttemptFromMirror(ctx context.Context, examID, attemptID uuid.UUID) (*model.Attempt, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(attempts_mirror, '[]'::jsonb) FROM exams WHERE id = $1`, examID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	var attempts []model.Attempt
	if err := json.Unmarshal(raw, &attempts); err != nil {
		return nil, fmt.Errorf("decode attempts mirror: %w", err)
	}

	for i := range attempts {
		if attempts[i].ID == attemptID {
			return &attempts[i], nil
		}
	}
	return nil, store.ErrNotFound
}

// WriteAttemptsMirror replaces the embedded read model wholesale. Callers
// treat failures as log-only; the standalone store stays authoritative.
func (r *ExamStore) WriteAttemptsMirror(ctx context.Context, examID uuid.UUID, attempts []model.Attempt) error {
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	raw, err := json.Marshal(attempts)
	if err != nil {
		return fmt.Errorf("encode attempts mirror: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET attempts_mirror = $2, updated_at = NOW() WHERE id = $1`, examID, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
