// Package memstore provides in-memory implementations of the store
// interfaces for tests. Not safe for production use.
package memstore

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/provex-backend/internal/model"
	"github.com/stemsi/provex-backend/internal/store"
)

// Store implements every store interface against process-local maps.
type Store struct {
	mu        sync.Mutex
	attempts  map[uuid.UUID]*model.Attempt
	exams     map[uuid.UUID]*model.Exam
	mirrors   map[uuid.UUID][]model.Attempt
	questions []model.Question
	users     map[uuid.UUID]*model.User
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		attempts: make(map[uuid.UUID]*model.Attempt),
		exams:    make(map[uuid.UUID]*model.Exam),
		mirrors:  make(map[uuid.UUID][]model.Attempt),
		users:    make(map[uuid.UUID]*model.User),
	}
}

// ─── Seed helpers ───────────────────────────────────────────────────

// AddExam seeds an exam.
func (s *Store) AddExam(e model.Exam) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exams[e.ID] = &e
}

// AddUser seeds a user.
func (s *Store) AddUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

// AddQuestion seeds a question.
func (s *Store) AddQuestion(q model.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = append(s.questions, q)
}

// Mirror returns a copy of the exam's mirror contents.
func (s *Store) Mirror(examID uuid.UUID) []model.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Attempt(nil), s.mirrors[examID]...)
}

// DropAttempt removes an attempt from the authoritative map, simulating
// row loss so the mirror fallback path can be exercised.
func (s *Store) DropAttempt(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, id)
}

func copyAttempt(a *model.Attempt) *model.Attempt {
	out := *a
	out.Answers = make(map[string]string, len(a.Answers))
	for k, v := range a.Answers {
		out.Answers[k] = v
	}
	return &out
}

// ─── store.AttemptStore ─────────────────────────────────────────────

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyAttempt(a), nil
}

func (s *Store) GetActive(ctx context.Context, examID, userID uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.ExamID == examID && a.UserID == userID && a.Status == model.AttemptStatusActive {
			return copyAttempt(a), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) Create(ctx context.Context, a *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.attempts {
		if existing.ExamID == a.ExamID && existing.UserID == a.UserID && existing.Status == model.AttemptStatusActive {
			return store.ErrConflict
		}
	}
	s.attempts[a.ID] = copyAttempt(a)
	return nil
}

func (s *Store) Reinsert(ctx context.Context, a *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[a.ID]; ok {
		return nil
	}
	s.attempts[a.ID] = copyAttempt(a)
	return nil
}

func (s *Store) CountTerminal(ctx context.Context, examID, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.attempts {
		if a.ExamID == examID && a.UserID == userID && a.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

func (s *Store) ExpireOthers(ctx context.Context, examID, userID, keep uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.attempts {
		if a.ExamID == examID && a.UserID == userID && a.Status == model.AttemptStatusActive && a.ID != keep {
			a.Status = model.AttemptStatusExpired
			n++
		}
	}
	return n, nil
}

func (s *Store) UpsertAnswer(ctx context.Context, attemptID uuid.UUID, questionID, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptID]
	if !ok {
		return store.ErrNotFound
	}
	if a.Answers == nil {
		a.Answers = make(map[string]string)
	}
	a.Answers[questionID] = answer
	return nil
}

func (s *Store) MarkExpired(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return store.ErrNotFound
	}
	if a.Status == model.AttemptStatusActive {
		a.Status = model.AttemptStatusExpired
	}
	return nil
}

func (s *Store) Finalize(ctx context.Context, in *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[in.ID]
	if !ok {
		return store.ErrNotFound
	}
	if a.Status != model.AttemptStatusActive {
		return store.ErrConflict
	}
	updated := copyAttempt(in)
	updated.Status = model.AttemptStatusSubmitted
	updated.Recordings = a.Recordings
	s.attempts[in.ID] = updated
	return nil
}

func (s *Store) SetRecordingURL(ctx context.Context, id uuid.UUID, kind model.RecordingKind, url *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Recordings.SetURL(kind, url)
	return nil
}

func (s *Store) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Attempt
	for _, a := range s.attempts {
		if a.ExamID == examID {
			out = append(out, *copyAttempt(a))
		}
	}
	return out, nil
}

func (s *Store) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.attempts {
		if a.Status == model.AttemptStatusActive && now.After(a.EndTime) {
			a.Status = model.AttemptStatusExpired
			n++
		}
	}
	return n, nil
}

// ─── store.ExamStore ────────────────────────────────────────────────

func (s *Store) GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exams[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *e
	return &out, nil
}

func (s *Store) AttemptFromMirror(ctx context.Context, examID, attemptID uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.mirrors[examID] {
		if s.mirrors[examID][i].ID == attemptID {
			return copyAttempt(&s.mirrors[examID][i]), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) WriteAttemptsMirror(ctx context.Context, examID uuid.UUID, attempts []model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exams[examID]; !ok {
		return store.ErrNotFound
	}
	s.mirrors[examID] = append([]model.Attempt(nil), attempts...)
	return nil
}

// ─── store.QuestionBank ─────────────────────────────────────────────

func (s *Store) ListByGroups(ctx context.Context, groupIDs []uuid.UUID) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Question
	for _, q := range s.questions {
		if !q.Active {
			continue
		}
		for _, gid := range groupIDs {
			if q.GroupID != nil && *q.GroupID == gid {
				out = append(out, q)
				break
			}
		}
	}
	return out, nil
}

func (s *Store) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Question
	for _, q := range s.questions {
		for _, id := range ids {
			if q.ID == id {
				out = append(out, q)
				break
			}
		}
	}
	return out, nil
}

func (s *Store) SampleBySubjects(ctx context.Context, subjectIDs []uuid.UUID, perSubject int) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Question
	for _, sid := range subjectIDs {
		var pool []model.Question
		for _, q := range s.questions {
			if q.Active && q.SubjectID != nil && *q.SubjectID == sid {
				pool = append(pool, q)
			}
		}
		rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		if len(pool) > perSubject {
			pool = pool[:perSubject]
		}
		out = append(out, pool...)
	}
	return out, nil
}

// ─── store.UserDirectory ────────────────────────────────────────────

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

// ─── Interface views ────────────────────────────────────────────────
//
// Get means different things to different store interfaces, so the exam
// and user views are exposed through thin adapters.

type examView struct{ s *Store }

func (v examView) Get(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return v.s.GetExam(ctx, id)
}

func (v examView) AttemptFromMirror(ctx context.Context, examID, attemptID uuid.UUID) (*model.Attempt, error) {
	return v.s.AttemptFromMirror(ctx, examID, attemptID)
}

func (v examView) WriteAttemptsMirror(ctx context.Context, examID uuid.UUID, attempts []model.Attempt) error {
	return v.s.WriteAttemptsMirror(ctx, examID, attempts)
}

// Exams returns the store.ExamStore view of the Store.
func (s *Store) Exams() store.ExamStore { return examView{s} }

type userView struct{ s *Store }

func (v userView) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return v.s.GetUser(ctx, id)
}

func (v userView) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return v.s.GetByEmail(ctx, email)
}

// Users returns the store.UserDirectory view of the Store.
func (s *Store) Users() store.UserDirectory { return userView{s} }
