package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/provex-backend/internal/model"
	"github.com/stemsi/provex-backend/internal/store"
)

// RecordingUpload describes an incoming recording blob.
type RecordingUpload struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

// RecordingService attaches durable camera and screen recordings to
// attempts. Uploads are accepted even after an attempt goes terminal:
// clients flush their final chunks after submitting.
type RecordingService struct {
	attempts store.AttemptStore
	media    MediaStorage
	mirror   MirrorEnqueuer
	maxBytes int64
	logger   zerolog.Logger
}

// NewRecordingService creates a new RecordingService.
func NewRecordingService(attempts store.AttemptStore, media MediaStorage, mirror MirrorEnqueuer, maxBytes int64, logger zerolog.Logger) *RecordingService {
	return &RecordingService{
		attempts: attempts,
		media:    media,
		mirror:   mirror,
		maxBytes: maxBytes,
		logger:   logger.With().Str("component", "recording_service").Logger(),
	}
}

// Upload stores a recording and points the attempt at it. Re-uploading a
// kind replaces the reference and removes the superseded blob.
func (s *RecordingService) Upload(ctx context.Context, caller Identity, attemptID uuid.UUID, sessionToken string, kind model.RecordingKind, up RecordingUpload) (string, error) {
	if up.Size > s.maxBytes {
		return "", ErrFileTooLarge
	}
	ext, err := RecordingExt(up.ContentType)
	if err != nil {
		return "", err
	}

	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrAttemptNotFound
		}
		return "", fmt.Errorf("lookup attempt: %w", err)
	}

	switch {
	case caller.UserID == attempt.UserID:
		if sessionToken != attempt.SessionToken {
			return "", ErrSessionTokenMismatch
		}
	case caller.Role.Elevated():
	default:
		return "", ErrNotOwner
	}

	url, err := s.media.Save(ctx, ext, up.Body)
	if err != nil {
		return "", fmt.Errorf("store recording: %w", err)
	}

	old := attempt.Recordings.URL(kind)
	if err := s.attempts.SetRecordingURL(ctx, attemptID, kind, &url); err != nil {
		if derr := s.media.Delete(ctx, url); derr != nil {
			s.logger.Warn().Err(derr).Str("url", url).Msg("orphaned recording cleanup failed")
		}
		return "", fmt.Errorf("attach recording: %w", err)
	}

	if old != nil && *old != url {
		if derr := s.media.Delete(ctx, *old); derr != nil {
			s.logger.Warn().Err(derr).Str("url", *old).Msg("superseded recording cleanup failed")
		}
	}

	s.refreshMirror(ctx, attempt.ExamID)
	return url, nil
}

// Delete detaches a recording. Deleting a kind that has no recording is a
// no-op; a failing blob removal still clears the reference.
func (s *RecordingService) Delete(ctx context.Context, attemptID uuid.UUID, kind model.RecordingKind) error {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("lookup attempt: %w", err)
	}

	url := attempt.Recordings.URL(kind)
	if url == nil {
		return nil
	}

	if derr := s.media.Delete(ctx, *url); derr != nil {
		s.logger.Warn().Err(derr).Str("url", *url).Msg("recording blob removal failed, clearing reference anyway")
	}

	if err := s.attempts.SetRecordingURL(ctx, attemptID, kind, nil); err != nil {
		return fmt.Errorf("detach recording: %w", err)
	}

	s.refreshMirror(ctx, attempt.ExamID)
	return nil
}

func (s *RecordingService) refreshMirror(ctx context.Context, examID uuid.UUID) {
	if err := s.mirror.Enqueue(ctx, examID); err != nil {
		s.logger.Warn().Err(err).Str("exam_id", examID.String()).Msg("mirror refresh enqueue failed")
	}
}
