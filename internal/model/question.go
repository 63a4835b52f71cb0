package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Question is the internal question record. CorrectAnswer never leaves the
// process: the json tag drops it and the take flow serves QuestionView only.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	GroupID       *uuid.UUID      `json:"group_id,omitempty"`
	SubjectID     *uuid.UUID      `json:"subject_id,omitempty"`
	Text          string          `json:"text"`
	Type          string          `json:"type"`
	Options       json.RawMessage `json:"options"`
	Marks         float64         `json:"marks"`
	CorrectAnswer string          `json:"-"`
	Active        bool            `json:"active"`
}

// QuestionView is the answer-key-stripped projection served to students.
type QuestionView struct {
	ID      uuid.UUID       `json:"id"`
	Text    string          `json:"text"`
	Type    string          `json:"type"`
	Options json.RawMessage `json:"options"`
	Marks   float64         `json:"marks"`
}

// View strips the correct-answer field from a question.
func (q *Question) View() QuestionView {
	return QuestionView{
		ID:      q.ID,
		Text:    q.Text,
		Type:    q.Type,
		Options: q.Options,
		Marks:   q.Marks,
	}
}
