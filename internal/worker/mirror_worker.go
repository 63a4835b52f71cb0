package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/provex-backend/internal/config"
	"github.com/stemsi/provex-backend/internal/store"
)

// MirrorQueue schedules exam mirror refreshes through Redis. It is the
// service-side half of the mirror pipeline; MirrorWorker consumes it.
type MirrorQueue struct {
	rdb *redis.Client
}

// NewMirrorQueue creates a new MirrorQueue.
func NewMirrorQueue(rdb *redis.Client) *MirrorQueue {
	return &MirrorQueue{rdb: rdb}
}

// Enqueue pushes an exam ID onto the refresh queue.
func (q *MirrorQueue) Enqueue(ctx context.Context, examID uuid.UUID) error {
	return q.rdb.RPush(ctx, config.WorkerKey.MirrorSyncQueue, examID.String()).Err()
}

// MirrorWorker consumes mirror_sync_queue and rewrites the exam-embedded
// attempts read model from the authoritative attempts store.
type MirrorWorker struct {
	rdb      *redis.Client
	attempts store.AttemptStore
	exams    store.ExamStore
	log      zerolog.Logger
}

// NewMirrorWorker creates a new MirrorWorker.
func NewMirrorWorker(rdb *redis.Client, attempts store.AttemptStore, exams store.ExamStore, log zerolog.Logger) *MirrorWorker {
	return &MirrorWorker{
		rdb:      rdb,
		attempts: attempts,
		exams:    exams,
		log:      log.With().Str("component", "mirror_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *MirrorWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *MirrorWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.MirrorSyncQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	if err := w.refresh(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Str("exam_id", result[1]).Msg("Mirror refresh error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.MirrorSyncQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *MirrorWorker) refresh(ctx context.Context, rawExamID string) error {
	examID, err := uuid.Parse(rawExamID)
	if err != nil {
		// Malformed item, do not retry.
		w.log.Warn().Str("exam_id", rawExamID).Msg("Discarding malformed queue item")
		return nil
	}

	attempts, err := w.attempts.ListByExam(ctx, examID)
	if err != nil {
		return err
	}

	if err := w.exams.WriteAttemptsMirror(ctx, examID, attempts); err != nil {
		if err == store.ErrNotFound {
			// Exam deleted since enqueue, nothing to mirror.
			return nil
		}
		return err
	}
	return nil
}

// drain processes all remaining items in the queue before shutdown.
func (w *MirrorWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.MirrorSyncQueue).Result()
		if err != nil {
			break
		}
		if err := w.refresh(ctx, result); err != nil {
			w.log.Error().Err(err).Str("exam_id", result).Msg("Drain refresh error")
			continue
		}
		drained++
	}
	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained mirror refreshes")
	}
}
