package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/provex-backend/internal/store"
)

// ExpiryWorker periodically expires overdue attempts. Lazy expiry on
// mutating calls handles attempts that clients keep touching; this sweep
// catches the ones that go silent.
type ExpiryWorker struct {
	attempts store.AttemptStore
	interval time.Duration
	log      zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(attempts store.AttemptStore, interval time.Duration, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		attempts: attempts,
		interval: interval,
		log:      log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	n, err := w.attempts.ExpireOverdue(ctx, time.Now())
	if err != nil {
		w.log.Error().Err(err).Msg("Expiry sweep error")
		return
	}
	if n > 0 {
		w.log.Info().Int64("expired", n).Msg("Expired overdue attempts")
	}
}
