package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/provex-backend/internal/model"
	"github.com/stemsi/provex-backend/internal/store"
)

// AutosaveService persists individual answers against a live attempt.
// Writes are last-write-wins per question key.
type AutosaveService struct {
	attempts store.AttemptStore
	exams    store.ExamStore
	mirror   MirrorEnqueuer
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

// NewAutosaveService creates a new AutosaveService.
func NewAutosaveService(attempts store.AttemptStore, exams store.ExamStore, mirror MirrorEnqueuer, notifier Notifier, logger zerolog.Logger) *AutosaveService {
	return &AutosaveService{
		attempts: attempts,
		exams:    exams,
		mirror:   mirror,
		notifier: notifier,
		logger:   logger.With().Str("component", "autosave_service").Logger(),
		now:      time.Now,
	}
}

// Save writes one answer. Expiry is enforced lazily here: an overdue
// attempt is expired on the spot and the save rejected with ErrTimeExpired.
func (s *AutosaveService) Save(ctx context.Context, caller Identity, attemptID uuid.UUID, req model.SaveAnswerRequest) (time.Time, error) {
	attempt, err := s.resolveAttempt(ctx, attemptID, req.ExamID)
	if err != nil {
		return time.Time{}, err
	}

	if caller.UserID != attempt.UserID && !caller.Role.Elevated() {
		return time.Time{}, ErrNotOwner
	}
	if req.SessionToken != attempt.SessionToken {
		return time.Time{}, ErrSessionTokenMismatch
	}
	if attempt.Status.Terminal() {
		return time.Time{}, ErrAttemptTerminal
	}

	now := s.now()
	if attempt.OverdueAt(now) {
		s.expire(ctx, attempt)
		return time.Time{}, ErrTimeExpired
	}

	if err := s.attempts.UpsertAnswer(ctx, attemptID, req.QuestionID, req.Answer); err != nil {
		return time.Time{}, fmt.Errorf("save answer: %w", err)
	}

	s.refreshMirror(ctx, attempt.ExamID)
	return now, nil
}

// resolveAttempt reads the authoritative row, falling back to the exam's
// embedded mirror when the row is missing. A mirror hit reinserts the row
// so the authoritative store heals itself.
func (s *AutosaveService) resolveAttempt(ctx context.Context, attemptID, examID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err == nil {
		return attempt, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup attempt: %w", err)
	}

	mirrored, merr := s.exams.AttemptFromMirror(ctx, examID, attemptID)
	if merr != nil {
		if errors.Is(merr, store.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("lookup attempt mirror: %w", merr)
	}

	s.logger.Warn().
		Str("attempt_id", attemptID.String()).
		Str("exam_id", examID.String()).
		Msg("attempt row missing, healing from mirror")

	if rerr := s.attempts.Reinsert(ctx, mirrored); rerr != nil {
		s.logger.Error().Err(rerr).Str("attempt_id", attemptID.String()).Msg("mirror reinsert failed")
	}
	return mirrored, nil
}

func (s *AutosaveService) expire(ctx context.Context, a *model.Attempt) {
	if err := s.attempts.MarkExpired(ctx, a.ID); err != nil {
		s.logger.Error().Err(err).Str("attempt_id", a.ID.String()).Msg("mark expired failed")
		return
	}
	a.Status = model.AttemptStatusExpired
	s.refreshMirror(ctx, a.ExamID)
	s.notifier.ExamExpired(ctx, a)
}

func (s *AutosaveService) refreshMirror(ctx context.Context, examID uuid.UUID) {
	if err := s.mirror.Enqueue(ctx, examID); err != nil {
		s.logger.Warn().Err(err).Str("exam_id", examID.String()).Msg("mirror refresh enqueue failed")
	}
}
