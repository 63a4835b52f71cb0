// Package store defines the narrow persistence interfaces the services
// consume. PostgreSQL implementations live in store/postgres; in-memory
// implementations for tests live in store/memstore.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/provex-backend/internal/model"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a unique constraint rejects a write,
	// e.g. a second active attempt for the same (exam, user).
	ErrConflict = errors.New("store: conflict")
)

// AttemptStore is the authoritative attempt persistence.
type AttemptStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Attempt, error)

	// GetActive returns the single active attempt for (exam, user), or
	// ErrNotFound.
	GetActive(ctx context.Context, examID, userID uuid.UUID) (*model.Attempt, error)

	// Create inserts a new attempt. Returns ErrConflict when an active
	// attempt already exists for the same (exam, user).
	Create(ctx context.Context, a *model.Attempt) error

	// Reinsert restores a full attempt row, used to self-heal the
	// authoritative store from the mirror.
	Reinsert(ctx context.Context, a *model.Attempt) error

	CountTerminal(ctx context.Context, examID, userID uuid.UUID) (int, error)

	// ExpireOthers marks any active attempt for (exam, user) other than
	// keep as expired. Returns the number of rows touched.
	ExpireOthers(ctx context.Context, examID, userID, keep uuid.UUID) (int, error)

	// UpsertAnswer writes answers[questionID] = answer, last write wins.
	UpsertAnswer(ctx context.Context, attemptID uuid.UUID, questionID, answer string) error

	// MarkExpired transitions an active attempt to expired. Terminal
	// attempts are left untouched.
	MarkExpired(ctx context.Context, id uuid.UUID) error

	// Finalize persists the scored, submitted attempt. Only active
	// attempts may be finalized.
	Finalize(ctx context.Context, a *model.Attempt) error

	SetRecordingURL(ctx context.Context, id uuid.UUID, kind model.RecordingKind, url *string) error

	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Attempt, error)

	// ExpireOverdue marks every active attempt whose end_time has passed
	// as expired. Used by the sweep backstop.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// ExamStore resolves exams and maintains the denormalized attempts mirror.
type ExamStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Exam, error)

	// AttemptFromMirror reads an attempt from the exam-embedded read
	// model. Fallback path only; the standalone store is authoritative.
	AttemptFromMirror(ctx context.Context, examID, attemptID uuid.UUID) (*model.Attempt, error)

	// WriteAttemptsMirror replaces the exam's embedded attempts read
	// model wholesale.
	WriteAttemptsMirror(ctx context.Context, examID uuid.UUID, attempts []model.Attempt) error
}

// QuestionBank supplies active questions. Implementations must populate
// CorrectAnswer for server-side scoring; sanitization happens at the view
// layer.
type QuestionBank interface {
	ListByGroups(ctx context.Context, groupIDs []uuid.UUID) ([]model.Question, error)

	// GetByIDs resolves specific questions, used at scoring time so the
	// score is computed against exactly the questions answered.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error)

	// SampleBySubjects returns up to perSubject active questions for each
	// subject, used when an exam has no assigned question groups.
	SampleBySubjects(ctx context.Context, subjectIDs []uuid.UUID, perSubject int) ([]model.Question, error)
}

// UserDirectory supplies the eligibility data the session gate needs.
type UserDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}
