package service

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/provex-backend/internal/model"
)

// Notifier receives attempt lifecycle transitions. Delivery is best
// effort; services never fail a request over a notifier error.
type Notifier interface {
	ExamStarted(ctx context.Context, a *model.Attempt)
	ExamSubmitted(ctx context.Context, a *model.Attempt)
	ExamExpired(ctx context.Context, a *model.Attempt)
}

// LogNotifier writes lifecycle transitions to the structured log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "lifecycle").Logger()}
}

func (n *LogNotifier) event(name string, a *model.Attempt) {
	n.logger.Info().
		Str("event", name).
		Str("attempt_id", a.ID.String()).
		Str("exam_id", a.ExamID.String()).
		Str("user_id", a.UserID.String()).
		Msg("attempt lifecycle event")
}

func (n *LogNotifier) ExamStarted(ctx context.Context, a *model.Attempt) { n.event("exam_started", a) }

func (n *LogNotifier) ExamSubmitted(ctx context.Context, a *model.Attempt) {
	n.event("exam_submitted", a)
}

func (n *LogNotifier) ExamExpired(ctx context.Context, a *model.Attempt) { n.event("exam_expired", a) }

// MultiNotifier fans a lifecycle event out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) ExamStarted(ctx context.Context, a *model.Attempt) {
	for _, n := range m {
		n.ExamStarted(ctx, a)
	}
}

func (m MultiNotifier) ExamSubmitted(ctx context.Context, a *model.Attempt) {
	for _, n := range m {
		n.ExamSubmitted(ctx, a)
	}
}

func (m MultiNotifier) ExamExpired(ctx context.Context, a *model.Attempt) {
	for _, n := range m {
		n.ExamExpired(ctx, a)
	}
}
