package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	// UnlimitedAttempts disables the per-user attempt quota.
	UnlimitedAttempts = -1

	// DefaultPassingPercentage applies when the exam record cannot be
	// resolved at scoring time.
	DefaultPassingPercentage = 40.0
)

// Exam represents an exam entity as the session subsystem sees it.
type Exam struct {
	ID                 uuid.UUID   `json:"id"`
	Title              string      `json:"title"`
	DurationMinutes    int         `json:"duration_minutes"`
	TotalMarks         float64     `json:"total_marks"`
	MaxAttempts        int         `json:"max_attempts"`
	PassingPercentage  float64     `json:"passing_percentage"`
	StartDate          time.Time   `json:"start_date"`
	EndDate            time.Time   `json:"end_date"`
	CategoryID         uuid.UUID   `json:"category_id"`
	RandomizeQuestions bool        `json:"randomize_questions"`
	QuestionGroupIDs   []uuid.UUID `json:"question_group_ids,omitempty"`
	SubjectIDs         []uuid.UUID `json:"subject_ids,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// ActiveAt reports whether the exam window is open at the given instant.
func (e *Exam) ActiveAt(now time.Time) bool {
	return !now.Before(e.StartDate) && !now.After(e.EndDate)
}

// Duration returns the exam duration as a time.Duration.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// ExamView is the sanitized exam projection served to the take flow.
type ExamView struct {
	ID                 uuid.UUID `json:"id"`
	Title              string    `json:"title"`
	DurationMinutes    int       `json:"duration_minutes"`
	TotalMarks         float64   `json:"total_marks"`
	PassingPercentage  float64   `json:"passing_percentage"`
	RandomizeQuestions bool      `json:"randomize_questions"`
}

// View returns the take-flow projection of the exam.
func (e *Exam) View() ExamView {
	return ExamView{
		ID:                 e.ID,
		Title:              e.Title,
		DurationMinutes:    e.DurationMinutes,
		TotalMarks:         e.TotalMarks,
		PassingPercentage:  e.PassingPercentage,
		RandomizeQuestions: e.RandomizeQuestions,
	}
}
