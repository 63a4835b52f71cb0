package model

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is an ephemeral live proctoring frame. Snapshots live only in
// Redis under a short TTL and are never written to durable storage.
type Snapshot struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	ExamID     uuid.UUID `json:"exam_id"`
	UserID     uuid.UUID `json:"user_id"`
	Image      string    `json:"image"`
	CapturedAt time.Time `json:"captured_at"`
	ReceivedAt time.Time `json:"received_at"`
}

// MonitorEvent is published on the per-exam monitor channel whenever a
// fresh snapshot arrives, so SSE subscribers can refresh.
type MonitorEvent struct {
	Type       string    `json:"type"`
	AttemptID  uuid.UUID `json:"attempt_id"`
	ExamID     uuid.UUID `json:"exam_id"`
	UserID     uuid.UUID `json:"user_id"`
	CapturedAt time.Time `json:"captured_at"`
}
