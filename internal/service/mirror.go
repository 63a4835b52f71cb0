package service

import (
	"context"

	"github.com/google/uuid"
)

// MirrorEnqueuer schedules an asynchronous refresh of an exam's embedded
// attempts read model. Enqueue failures are log-only at call sites; the
// authoritative store has already been written by then.
type MirrorEnqueuer interface {
	Enqueue(ctx context.Context, examID uuid.UUID) error
}

// NoopMirror discards refresh requests. Used in tests.
type NoopMirror struct{}

func (NoopMirror) Enqueue(ctx context.Context, examID uuid.UUID) error { return nil }
