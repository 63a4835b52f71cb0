package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt states. Transitions are monotonic:
// active → submitted, active → expired. Terminal states are immutable.
type AttemptStatus string

const (
	AttemptStatusActive    AttemptStatus = "active"
	AttemptStatusSubmitted AttemptStatus = "submitted"
	AttemptStatusExpired   AttemptStatus = "expired"
)

// Terminal reports whether no further transition is permitted.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusSubmitted || s == AttemptStatusExpired
}

// RecordingKind distinguishes camera and screen captures.
type RecordingKind string

const (
	RecordingCamera RecordingKind = "camera"
	RecordingScreen RecordingKind = "screen"
)

var ErrUnknownRecordingKind = errors.New("unknown recording kind")

// ParseRecordingKind validates a recording kind from a route param.
func ParseRecordingKind(s string) (RecordingKind, error) {
	switch RecordingKind(s) {
	case RecordingCamera, RecordingScreen:
		return RecordingKind(s), nil
	}
	return "", ErrUnknownRecordingKind
}

// Recordings holds durable media references attached to an attempt.
type Recordings struct {
	CameraVideoURL *string `json:"camera_video,omitempty"`
	ScreenVideoURL *string `json:"screen_video,omitempty"`
}

// URL returns the stored reference for the given kind.
func (r *Recordings) URL(kind RecordingKind) *string {
	if kind == RecordingCamera {
		return r.CameraVideoURL
	}
	return r.ScreenVideoURL
}

// SetURL replaces the stored reference for the given kind.
func (r *Recordings) SetURL(kind RecordingKind, url *string) {
	if kind == RecordingCamera {
		r.CameraVideoURL = url
		return
	}
	r.ScreenVideoURL = url
}

// Attempt represents one instance of a user taking an exam, bounded by a
// session token and a time window. The standalone attempts table is the
// authoritative store; the exam-embedded mirror is a read model only.
type Attempt struct {
	ID               uuid.UUID         `json:"id"`
	ExamID           uuid.UUID         `json:"exam_id"`
	UserID           uuid.UUID         `json:"user_id"`
	SessionToken     string            `json:"session_token,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	EndTime          time.Time         `json:"end_time"`
	Status           AttemptStatus     `json:"status"`
	Answers          map[string]string `json:"answers"`
	Score            float64           `json:"score"`
	TotalMarks       float64           `json:"total_marks"`
	Percentage       float64           `json:"percentage"`
	Passed           bool              `json:"passed"`
	TimeTakenSeconds int               `json:"time_taken_seconds"`
	SubmittedAt      *time.Time        `json:"submitted_at,omitempty"`
	Recordings       Recordings        `json:"recordings"`
}

// OverdueAt reports whether the attempt's time window has elapsed.
func (a *Attempt) OverdueAt(now time.Time) bool {
	return now.After(a.EndTime)
}

// TimeRemaining returns the remaining window, clamped at zero.
func (a *Attempt) TimeRemaining(now time.Time) time.Duration {
	remaining := a.EndTime.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ─── Request payloads ───────────────────────────────────────────────

// StartSessionRequest starts (or resumes) an attempt for a user.
type StartSessionRequest struct {
	UserID         uuid.UUID `json:"user_id" binding:"required"`
	VerificationID *string   `json:"verification_id" binding:"omitempty,max=128"`
}

// SaveAnswerRequest persists one answer against a live attempt.
type SaveAnswerRequest struct {
	ExamID       uuid.UUID `json:"exam_id" binding:"required"`
	QuestionID   string    `json:"question_id" binding:"required,uuid"`
	Answer       string    `json:"answer" binding:"required"`
	SessionToken string    `json:"session_token" binding:"required"`
}

// SubmitRequest finalizes an attempt. Client-supplied score and pass values
// are advisory only; the server recomputes whenever exam data is available.
type SubmitRequest struct {
	SessionToken     string            `json:"session_token" binding:"required"`
	Answers          map[string]string `json:"answers" binding:"omitempty"`
	TimeTakenSeconds int               `json:"time_taken_seconds" binding:"omitempty,min=0"`
	ClientScore      *float64          `json:"client_score" binding:"omitempty"`
	ClientPassed     *bool             `json:"client_passed" binding:"omitempty"`
}

// SnapshotRequest posts an ephemeral live proctoring frame.
type SnapshotRequest struct {
	SessionToken string    `json:"session_token" binding:"required"`
	Image        string    `json:"image" binding:"required"`
	CapturedAt   time.Time `json:"captured_at" binding:"required"`
}
