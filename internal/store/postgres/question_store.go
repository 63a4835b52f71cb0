package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/provex-backend/internal/model"
)

// QuestionStore is the pgx-backed question bank.
type QuestionStore struct {
	pool *pgxpool.Pool
}

// NewQuestionStore creates a new QuestionStore.
func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

const questionColumns = `id, group_id, subject_id, text, qtype, options, marks, correct_answer, active`

func collectQuestions(rows pgx.Rows) ([]model.Question, error) {
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.GroupID, &q.SubjectID, &q.Text, &q.Type, &q.Options, &q.Marks, &q.CorrectAnswer, &q.Active); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListByGroups retrieves all active questions assigned to the given groups.
func (r *QuestionStore) ListByGroups(ctx context.Context, groupIDs []uuid.UUID) ([]model.Question, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions
		 WHERE group_id = ANY($1) AND active
		 ORDER BY created_at`, groupIDs)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// GetByIDs resolves specific questions by primary key.
func (r *QuestionStore) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// SampleBySubjects returns up to perSubject random active questions per
// subject. Fallback path when an exam has no assigned question groups.
func (r *QuestionStore) SampleBySubjects(ctx context.Context, subjectIDs []uuid.UUID, perSubject int) ([]model.Question, error) {
	var questions []model.Question
	for _, sid := range subjectIDs {
		rows, err := r.pool.Query(ctx,
			`SELECT `+questionColumns+` FROM questions
			 WHERE subject_id = $1 AND active
			 ORDER BY random() LIMIT $2`, sid, perSubject)
		if err != nil {
			return nil, err
		}
		batch, err := collectQuestions(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, batch...)
	}
	return questions, nil
}
