package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/provex-backend/internal/config"
	"github.com/stemsi/provex-backend/internal/model"
	"github.com/stemsi/provex-backend/internal/store"
)

// SnapshotService stores live proctoring frames in Redis. Each attempt
// holds at most one frame under a short TTL; a per-exam sorted set indexes
// which attempts currently have one. Nothing here touches durable storage.
type SnapshotService struct {
	rdb      *redis.Client
	attempts store.AttemptStore
	ttl      time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewSnapshotService creates a new SnapshotService.
func NewSnapshotService(rdb *redis.Client, attempts store.AttemptStore, ttl time.Duration, logger zerolog.Logger) *SnapshotService {
	return &SnapshotService{
		rdb:      rdb,
		attempts: attempts,
		ttl:      ttl,
		logger:   logger.With().Str("component", "snapshot_service").Logger(),
		now:      time.Now,
	}
}

// Post replaces the attempt's live frame and notifies monitor subscribers.
func (s *SnapshotService) Post(ctx context.Context, caller Identity, attemptID uuid.UUID, req model.SnapshotRequest) error {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("lookup attempt: %w", err)
	}

	if caller.UserID != attempt.UserID && !caller.Role.Elevated() {
		return ErrNotOwner
	}
	if req.SessionToken != attempt.SessionToken {
		return ErrSessionTokenMismatch
	}
	if attempt.Status.Terminal() {
		return ErrAttemptTerminal
	}

	now := s.now()
	snap := model.Snapshot{
		AttemptID:  attemptID,
		ExamID:     attempt.ExamID,
		UserID:     attempt.UserID,
		Image:      req.Image,
		CapturedAt: req.CapturedAt,
		ReceivedAt: now,
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	examID := attempt.ExamID.String()
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.AttemptSnapshotKey(attemptID.String()), raw, s.ttl)
	pipe.ZAdd(ctx, config.CacheKey.ExamSnapshotIndexKey(examID), redis.Z{
		Score:  float64(now.Unix()),
		Member: attemptID.String(),
	})
	// Reap index entries older than the TTL while we are here.
	cutoff := strconv.FormatInt(now.Add(-s.ttl).Unix(), 10)
	pipe.ZRemRangeByScore(ctx, config.CacheKey.ExamSnapshotIndexKey(examID), "-inf", cutoff)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}

	event, err := json.Marshal(model.MonitorEvent{
		Type:       "snapshot",
		AttemptID:  attemptID,
		ExamID:     attempt.ExamID,
		UserID:     attempt.UserID,
		CapturedAt: req.CapturedAt,
	})
	if err == nil {
		if perr := s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID), event).Err(); perr != nil {
			s.logger.Warn().Err(perr).Str("exam_id", examID).Msg("monitor publish failed")
		}
	}

	return nil
}

// GetByAttempt returns the attempt's current frame, or ErrSnapshotNotFound
// when none exists or the TTL has lapsed.
func (s *SnapshotService) GetByAttempt(ctx context.Context, attemptID uuid.UUID) (*model.Snapshot, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.AttemptSnapshotKey(attemptID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// GetByExam returns every fresh frame for the exam, one per attempt.
func (s *SnapshotService) GetByExam(ctx context.Context, examID uuid.UUID) ([]model.Snapshot, error) {
	now := s.now()
	min := strconv.FormatInt(now.Add(-s.ttl).Unix(), 10)

	ids, err := s.rdb.ZRangeByScore(ctx, config.CacheKey.ExamSnapshotIndexKey(examID.String()), &redis.ZRangeBy{
		Min: min,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read snapshot index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = config.CacheKey.AttemptSnapshotKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}

	var snaps []model.Snapshot
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // Key expired between index read and fetch.
		}
		var snap model.Snapshot
		if err := json.Unmarshal([]byte(str), &snap); err != nil {
			s.logger.Warn().Err(err).Msg("discarding undecodable snapshot")
			continue
		}
		snaps = append(snaps, snap)
	}
	return freshOnly(snaps, now, s.ttl), nil
}

// freshOnly drops frames whose receipt time is outside the TTL window.
// The Redis key TTL already expires frames; this guards the race where an
// index entry outlives its key by a moment.
func freshOnly(snaps []model.Snapshot, now time.Time, ttl time.Duration) []model.Snapshot {
	out := snaps[:0]
	for _, s := range snaps {
		if now.Sub(s.ReceivedAt) <= ttl {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
