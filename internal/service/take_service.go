package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/provex-backend/internal/model"
	"github.com/stemsi/provex-backend/internal/store"
)

// fallbackQuestionsPerSubject bounds the subject sample when an exam has
// no assigned question groups.
const fallbackQuestionsPerSubject = 20

// TakePayload is everything the take screen needs to render an attempt.
type TakePayload struct {
	Attempt              *model.Attempt       `json:"attempt"`
	Exam                 model.ExamView       `json:"exam"`
	Questions            []model.QuestionView `json:"questions"`
	TimeRemainingSeconds int                  `json:"time_remaining_seconds"`
}

// TakeService assembles the sanitized take payload for an active attempt.
// Loading is read-only: it never expires or otherwise mutates the attempt.
type TakeService struct {
	attempts  store.AttemptStore
	exams     store.ExamStore
	questions store.QuestionBank
	logger    zerolog.Logger
	now       func() time.Time
}

// NewTakeService creates a new TakeService.
func NewTakeService(attempts store.AttemptStore, exams store.ExamStore, questions store.QuestionBank, logger zerolog.Logger) *TakeService {
	return &TakeService{
		attempts:  attempts,
		exams:     exams,
		questions: questions,
		logger:    logger.With().Str("component", "take_service").Logger(),
		now:       time.Now,
	}
}

// Load resolves the attempt, its exam and the question set. Owners must
// present the attempt's session token; elevated roles get read-only
// access without one.
func (s *TakeService) Load(ctx context.Context, caller Identity, attemptID uuid.UUID, sessionToken string) (*TakePayload, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("lookup attempt: %w", err)
	}

	switch {
	case caller.UserID == attempt.UserID:
		if sessionToken != attempt.SessionToken {
			return nil, ErrSessionTokenMismatch
		}
	case caller.Role.Elevated():
		// Read-only monitoring access, no token required.
	default:
		return nil, ErrNotOwner
	}

	if attempt.Status.Terminal() {
		return nil, ErrAttemptTerminal
	}

	exam, err := s.exams.Get(ctx, attempt.ExamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("lookup exam: %w", err)
	}

	questions, err := s.resolveQuestions(ctx, exam)
	if err != nil {
		return nil, err
	}

	views := make([]model.QuestionView, len(questions))
	for i := range questions {
		views[i] = questions[i].View()
	}
	if exam.RandomizeQuestions {
		rand.Shuffle(len(views), func(i, j int) { views[i], views[j] = views[j], views[i] })
	}

	return &TakePayload{
		Attempt:              attempt,
		Exam:                 exam.View(),
		Questions:            views,
		TimeRemainingSeconds: int(attempt.TimeRemaining(s.now()).Seconds()),
	}, nil
}

// resolveQuestions prefers the exam's assigned question groups and falls
// back to a bounded per-subject sample when none resolve.
func (s *TakeService) resolveQuestions(ctx context.Context, exam *model.Exam) ([]model.Question, error) {
	if len(exam.QuestionGroupIDs) > 0 {
		questions, err := s.questions.ListByGroups(ctx, exam.QuestionGroupIDs)
		if err != nil {
			return nil, fmt.Errorf("list questions by groups: %w", err)
		}
		if len(questions) > 0 {
			return questions, nil
		}
		s.logger.Warn().Str("exam_id", exam.ID.String()).Msg("question groups resolved empty, sampling subjects")
	}

	questions, err := s.questions.SampleBySubjects(ctx, exam.SubjectIDs, fallbackQuestionsPerSubject)
	if err != nil {
		return nil, fmt.Errorf("sample questions by subjects: %w", err)
	}
	return questions, nil
}
