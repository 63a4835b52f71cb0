package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/provex-backend/internal/model"
	"github.com/stemsi/provex-backend/internal/store/memstore"
)

// testNow is the frozen wall clock used across service tests.
var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// fixture seeds a memstore with one open exam, its question group and two
// users: a student in the exam's category and a proctor.
type fixture struct {
	mem      *memstore.Store
	exam     model.Exam
	student  model.User
	proctor  model.User
	outsider model.User
	qIDs     []uuid.UUID
}

func newFixture() *fixture {
	mem := memstore.New()
	category := uuid.New()
	groupID := uuid.New()

	exam := model.Exam{
		ID:                uuid.New(),
		Title:             "Midterm",
		DurationMinutes:   60,
		TotalMarks:        40,
		MaxAttempts:       2,
		PassingPercentage: 45,
		StartDate:         testNow.Add(-time.Hour),
		EndDate:           testNow.Add(6 * time.Hour),
		CategoryID:        category,
		QuestionGroupIDs:  []uuid.UUID{groupID},
		CreatedAt:         testNow.Add(-24 * time.Hour),
		UpdatedAt:         testNow.Add(-24 * time.Hour),
	}
	mem.AddExam(exam)

	marks := []float64{10, 8, 10, 12}
	answers := []string{"a", "b", "c", "d"}
	var qIDs []uuid.UUID
	for i := range marks {
		q := model.Question{
			ID:            uuid.New(),
			GroupID:       &groupID,
			Text:          "question",
			Type:          "multiple_choice",
			Options:       json.RawMessage(`["a","b","c","d"]`),
			Marks:         marks[i],
			CorrectAnswer: answers[i],
			Active:        true,
		}
		mem.AddQuestion(q)
		qIDs = append(qIDs, q.ID)
	}

	student := model.User{ID: uuid.New(), Name: "Student", Email: "student@test.local", CategoryID: category, Role: model.RoleStudent}
	proctor := model.User{ID: uuid.New(), Name: "Proctor", Email: "proctor@test.local", CategoryID: category, Role: model.RoleProctor}
	outsider := model.User{ID: uuid.New(), Name: "Outsider", Email: "outsider@test.local", CategoryID: uuid.New(), Role: model.RoleStudent}
	mem.AddUser(student)
	mem.AddUser(proctor)
	mem.AddUser(outsider)

	return &fixture{mem: mem, exam: exam, student: student, proctor: proctor, outsider: outsider, qIDs: qIDs}
}

func (f *fixture) identity(u model.User) Identity {
	return Identity{UserID: u.ID, CategoryID: u.CategoryID, Role: u.Role}
}

func (f *fixture) sessionService() *SessionService {
	svc := NewSessionService(f.mem, f.mem.Exams(), f.mem.Users(), NoopMirror{}, NewLogNotifier(zerolog.Nop()), zerolog.Nop())
	svc.now = fixedClock(testNow)
	return svc
}

func (f *fixture) takeService() *TakeService {
	svc := NewTakeService(f.mem, f.mem.Exams(), f.mem, zerolog.Nop())
	svc.now = fixedClock(testNow)
	return svc
}

func (f *fixture) autosaveService() *AutosaveService {
	svc := NewAutosaveService(f.mem, f.mem.Exams(), NoopMirror{}, NewLogNotifier(zerolog.Nop()), zerolog.Nop())
	svc.now = fixedClock(testNow)
	return svc
}

func (f *fixture) scoringService() *ScoringService {
	svc := NewScoringService(f.mem, f.mem.Exams(), f.mem, NoopMirror{}, NewLogNotifier(zerolog.Nop()), zerolog.Nop())
	svc.now = fixedClock(testNow)
	return svc
}

// startAttempt seeds an active attempt directly into the store.
func (f *fixture) startAttempt(user model.User, startedAt time.Time) *model.Attempt {
	a := &model.Attempt{
		ID:           uuid.New(),
		ExamID:       f.exam.ID,
		UserID:       user.ID,
		SessionToken: uuid.NewString(),
		StartedAt:    startedAt,
		EndTime:      startedAt.Add(f.exam.Duration()),
		Status:       model.AttemptStatusActive,
		Answers:      map[string]string{},
		TotalMarks:   f.exam.TotalMarks,
	}
	if err := f.mem.Create(context.Background(), a); err != nil {
		panic(err)
	}
	return a
}
