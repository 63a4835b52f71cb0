package service

import "errors"

// Sentinel errors returned by the session, take, autosave, scoring,
// recording and snapshot services. Handlers map these onto response
// error codes.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrExamNotFound         = errors.New("exam not found")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrSnapshotNotFound     = errors.New("snapshot not found")
	ErrExamNotActive        = errors.New("exam is not open")
	ErrCategoryMismatch     = errors.New("user category does not match exam")
	ErrAttemptsExhausted    = errors.New("attempt quota exhausted")
	ErrAttemptTerminal      = errors.New("attempt already finalized")
	ErrSessionTokenMismatch = errors.New("session token mismatch")
	ErrTimeExpired          = errors.New("attempt time window elapsed")
	ErrNotOwner             = errors.New("caller does not own this attempt")
	ErrFileTooLarge         = errors.New("file exceeds size limit")
	ErrUnsupportedFile      = errors.New("unsupported file type")
)
