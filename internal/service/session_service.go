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

// SessionService owns the attempt lifecycle gate: eligibility checks,
// the single-active-attempt invariant and session token issuance.
type SessionService struct {
	attempts store.AttemptStore
	exams    store.ExamStore
	users    store.UserDirectory
	mirror   MirrorEnqueuer
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	attempts store.AttemptStore,
	exams store.ExamStore,
	users store.UserDirectory,
	mirror MirrorEnqueuer,
	notifier Notifier,
	logger zerolog.Logger,
) *SessionService {
	return &SessionService{
		attempts: attempts,
		exams:    exams,
		users:    users,
		mirror:   mirror,
		notifier: notifier,
		logger:   logger.With().Str("component", "session_service").Logger(),
		now:      time.Now,
	}
}

// StartResult carries the attempt plus whether it was resumed rather
// than freshly created.
type StartResult struct {
	Attempt *model.Attempt
	Resumed bool
}

// Start begins a new attempt or resumes the caller's existing active one.
// Resume is idempotent: repeated starts return the same attempt and
// session token without consuming quota.
func (s *SessionService) Start(ctx context.Context, caller Identity, examID uuid.UUID, req model.StartSessionRequest) (*StartResult, error) {
	if caller.UserID != req.UserID && !caller.Role.Elevated() {
		return nil, ErrNotOwner
	}

	exam, err := s.exams.Get(ctx, examID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("lookup exam: %w", err)
	}

	now := s.now()
	if !exam.ActiveAt(now) {
		return nil, ErrExamNotActive
	}

	user, err := s.users.Get(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user.CategoryID != exam.CategoryID {
		return nil, ErrCategoryMismatch
	}

	// Resume path: an existing active attempt that still has time left
	// is returned as-is. An overdue one is expired first, then the start
	// falls through to the quota gate.
	if existing, err := s.attempts.GetActive(ctx, examID, req.UserID); err == nil {
		if !existing.OverdueAt(now) {
			return &StartResult{Attempt: existing, Resumed: true}, nil
		}
		s.expire(ctx, existing)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup active attempt: %w", err)
	}

	if exam.MaxAttempts != model.UnlimitedAttempts {
		used, err := s.attempts.CountTerminal(ctx, examID, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("count attempts: %w", err)
		}
		if used >= exam.MaxAttempts {
			return nil, ErrAttemptsExhausted
		}
	}

	attempt := &model.Attempt{
		ID:           uuid.New(),
		ExamID:       examID,
		UserID:       req.UserID,
		SessionToken: uuid.NewString(),
		StartedAt:    now,
		EndTime:      now.Add(exam.Duration()),
		Status:       model.AttemptStatusActive,
		Answers:      map[string]string{},
		TotalMarks:   exam.TotalMarks,
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost a concurrent start race. The winner's attempt is the
			// one to resume.
			winner, gerr := s.attempts.GetActive(ctx, examID, req.UserID)
			if gerr != nil {
				return nil, fmt.Errorf("resolve concurrent start: %w", gerr)
			}
			return &StartResult{Attempt: winner, Resumed: true}, nil
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	// Mirror-healed rows can slip past the unique index, so sweep any
	// other active attempt for this (exam, user).
	if n, err := s.attempts.ExpireOthers(ctx, examID, req.UserID, attempt.ID); err != nil {
		s.logger.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("expire stale attempts failed")
	} else if n > 0 {
		s.logger.Info().Int("expired", n).Str("attempt_id", attempt.ID.String()).Msg("expired stale active attempts")
	}

	if req.VerificationID != nil {
		s.logger.Info().
			Str("attempt_id", attempt.ID.String()).
			Str("verification_id", *req.VerificationID).
			Msg("identity verification recorded")
	}

	s.refreshMirror(ctx, examID)
	s.notifier.ExamStarted(ctx, attempt)

	return &StartResult{Attempt: attempt, Resumed: false}, nil
}

// expire transitions an overdue active attempt and fans out the
// side effects. Failures are logged, never returned: expiry is lazy and
// the sweep worker will retry.
func (s *SessionService) expire(ctx context.Context, a *model.Attempt) {
	if err := s.attempts.MarkExpired(ctx, a.ID); err != nil {
		s.logger.Error().Err(err).Str("attempt_id", a.ID.String()).Msg("mark expired failed")
		return
	}
	a.Status = model.AttemptStatusExpired
	s.refreshMirror(ctx, a.ExamID)
	s.notifier.ExamExpired(ctx, a)
}

func (s *SessionService) refreshMirror(ctx context.Context, examID uuid.UUID) {
	if err := s.mirror.Enqueue(ctx, examID); err != nil {
		s.logger.Warn().Err(err).Str("exam_id", examID.String()).Msg("mirror refresh enqueue failed")
	}
}
