package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/provex-backend/internal/model"
	"github.com/stemsi/provex-backend/internal/store"
)

// ScoringService finalizes attempts. The server recomputes the score from
// the question bank whenever the exam record is resolvable; client-supplied
// results are accepted only as a degraded fallback.
type ScoringService struct {
	attempts  store.AttemptStore
	exams     store.ExamStore
	questions store.QuestionBank
	mirror    MirrorEnqueuer
	notifier  Notifier
	logger    zerolog.Logger
	now       func() time.Time
}

// NewScoringService creates a new ScoringService.
func NewScoringService(
	attempts store.AttemptStore,
	exams store.ExamStore,
	questions store.QuestionBank,
	mirror MirrorEnqueuer,
	notifier Notifier,
	logger zerolog.Logger,
) *ScoringService {
	return &ScoringService{
		attempts:  attempts,
		exams:     exams,
		questions: questions,
		mirror:    mirror,
		notifier:  notifier,
		logger:    logger.With().Str("component", "scoring_service").Logger(),
		now:       time.Now,
	}
}

// Submit finalizes an attempt. Submitting an already-terminal attempt is
// idempotent and returns the stored result unchanged.
func (s *ScoringService) Submit(ctx context.Context, caller Identity, attemptID uuid.UUID, req model.SubmitRequest) (*model.Attempt, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("lookup attempt: %w", err)
	}

	if caller.UserID != attempt.UserID && !caller.Role.Elevated() {
		return nil, ErrNotOwner
	}
	if attempt.Status.Terminal() {
		return attempt, nil
	}
	if req.SessionToken != attempt.SessionToken {
		return nil, ErrSessionTokenMismatch
	}

	now := s.now()
	if attempt.OverdueAt(now) {
		s.expire(ctx, attempt)
		return nil, ErrTimeExpired
	}

	// Final answers override autosaved ones per question key.
	for questionID, answer := range req.Answers {
		attempt.Answers[questionID] = answer
	}

	s.score(ctx, attempt, req)

	attempt.TimeTakenSeconds = req.TimeTakenSeconds
	if attempt.TimeTakenSeconds <= 0 {
		attempt.TimeTakenSeconds = int(now.Sub(attempt.StartedAt).Seconds())
	}
	submittedAt := now
	attempt.SubmittedAt = &submittedAt
	attempt.Status = model.AttemptStatusSubmitted

	if err := s.attempts.Finalize(ctx, attempt); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Another submit won the race; return its result.
			return s.attempts.Get(ctx, attemptID)
		}
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}

	s.refreshMirror(ctx, attempt.ExamID)
	s.notifier.ExamSubmitted(ctx, attempt)

	return attempt, nil
}

// score fills the attempt's score, total, percentage and passed fields.
// Server-side recompute is authoritative; the client hints apply only when
// the exam record cannot be resolved.
func (s *ScoringService) score(ctx context.Context, attempt *model.Attempt, req model.SubmitRequest) {
	exam, err := s.exams.Get(ctx, attempt.ExamID)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("attempt_id", attempt.ID.String()).
			Str("exam_id", attempt.ExamID.String()).
			Msg("exam unresolved at scoring time, using client result")
		s.scoreFromClient(attempt, req)
		return
	}

	// Score against exactly the questions answered, so subject-sampled
	// exams grade deterministically regardless of what a fresh sample
	// would return.
	ids := make([]uuid.UUID, 0, len(attempt.Answers))
	for raw := range attempt.Answers {
		if id, perr := uuid.Parse(raw); perr == nil {
			ids = append(ids, id)
		}
	}

	questions, err := s.questions.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("attempt_id", attempt.ID.String()).
			Msg("question bank unresolved at scoring time, using client result")
		s.scoreFromClient(attempt, req)
		return
	}

	var score float64
	for i := range questions {
		q := &questions[i]
		answer, ok := attempt.Answers[q.ID.String()]
		if !ok {
			continue
		}
		if answersMatch(answer, q.CorrectAnswer) {
			score += q.Marks
		}
	}

	attempt.Score = score
	attempt.TotalMarks = exam.TotalMarks
	attempt.Percentage = percentage(score, exam.TotalMarks)
	attempt.Passed = attempt.Percentage >= exam.PassingPercentage
}

func (s *ScoringService) scoreFromClient(attempt *model.Attempt, req model.SubmitRequest) {
	if req.ClientScore != nil {
		attempt.Score = *req.ClientScore
	}
	attempt.Percentage = percentage(attempt.Score, attempt.TotalMarks)
	if req.ClientPassed != nil {
		attempt.Passed = *req.ClientPassed
	} else {
		attempt.Passed = attempt.Percentage >= model.DefaultPassingPercentage
	}
}

func (s *ScoringService) expire(ctx context.Context, a *model.Attempt) {
	if err := s.attempts.MarkExpired(ctx, a.ID); err != nil {
		s.logger.Error().Err(err).Str("attempt_id", a.ID.String()).Msg("mark expired failed")
		return
	}
	a.Status = model.AttemptStatusExpired
	s.refreshMirror(ctx, a.ExamID)
	s.notifier.ExamExpired(ctx, a)
}

func (s *ScoringService) refreshMirror(ctx context.Context, examID uuid.UUID) {
	if err := s.mirror.Enqueue(ctx, examID); err != nil {
		s.logger.Warn().Err(err).Str("exam_id", examID.String()).Msg("mirror refresh enqueue failed")
	}
}

// answersMatch compares a submitted answer against the key, ignoring
// case and surrounding whitespace.
func answersMatch(given, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(correct))
}

func percentage(score, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return score / total * 100
}
