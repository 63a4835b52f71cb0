package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stemsi/provex-backend/internal/model"
)

func TestStartCreatesAttempt(t *testing.T) {
	f := newFixture()
	svc := f.sessionService()

	result, err := svc.Start(context.Background(), f.identity(f.student), f.exam.ID,
		model.StartSessionRequest{UserID: f.student.ID})

	require.NoError(t, err)
	assert.False(t, result.Resumed)
	assert.NotEmpty(t, result.Attempt.SessionToken)
	assert.Equal(t, model.AttemptStatusActive, result.Attempt.Status)
	assert.Equal(t, testNow, result.Attempt.StartedAt)
	assert.Equal(t, testNow.Add(time.Hour), result.Attempt.EndTime)
	assert.Equal(t, f.exam.TotalMarks, result.Attempt.TotalMarks)
}

func TestStartResumesExistingAttempt(t *testing.T) {
	f := newFixture()
	svc := f.sessionService()
	req := model.StartSessionRequest{UserID: f.student.ID}

	first, err := svc.Start(context.Background(), f.identity(f.student), f.exam.ID, req)
	require.NoError(t, err)

	second, err := svc.Start(context.Background(), f.identity(f.student), f.exam.ID, req)
	require.NoError(t, err)

	assert.True(t, second.Resumed)
	assert.Equal(t, first.Attempt.ID, second.Attempt.ID)
	assert.Equal(t, first.Attempt.SessionToken, second.Attempt.SessionToken)
}

func TestStartExamNotFound(t *testing.T) {
	f := newFixture()
	svc := f.sessionService()

	_, err := svc.Start(context.Background(), f.identity(f.student), f.student.ID,
		model.StartSessionRequest{UserID: f.student.ID})

	assert.ErrorIs(t, err, ErrExamNotFound)
}

func TestStartOutsideExamWindow(t *testing.T) {
	f := newFixture()
	svc := f.sessionService()

	svc.now = fixedClock(f.exam.StartDate.Add(-time.Minute))
	_, err := svc.Start(context.Background(), f.identity(f.student), f.exam.ID,
		model.StartSessionRequest{UserID: f.student.ID})
	assert.ErrorIs(t, err, ErrExamNotActive)

	svc.now = fixedClock(f.exam.EndDate.Add(time.Minute))
	_, err = svc.Start(context.Background(), f.identity(f.student), f.exam.ID,
		model.StartSessionRequest{UserID: f.student.ID})
	assert.ErrorIs(t, err, ErrExamNotActive)
}

func TestStartCategoryMismatch(t *testing.T) {
	f := newFixture()
	svc := f.sessionService()

	_, err := svc.Start(context.Background(), f.identity(f.outsider), f.exam.ID,
		model.StartSessionRequest{UserID: f.outsider.ID})

	assert.ErrorIs(t, err, ErrCategoryMismatch)
}

func TestStartForAnotherUser(t *testing.T) {
	f := newFixture()
	svc := f.sessionService()
	req := model.StartSessionRequest{UserID: f.student.ID}

	// A student cannot start on someone else's behalf.
	_, err := svc.Start(context.Background(), f.identity(f.outsider), f.exam.ID, req)
	assert.ErrorIs(t, err, ErrNotOwner)

	// A proctor can.
	result, err := svc.Start(context.Background(), f.identity(f.proctor), f.exam.ID, req)
	require.NoError(t, err)
	assert.Equal(t, f.student.ID, result.Attempt.UserID)
}

func TestStartQuotaExhausted(t *testing.T) {
	f := newFixture()
	svc := f.sessionService()

	// MaxAttempts is 2; two terminal attempts use the quota up.
	for i := 0; i < 2; i++ {
		a := f.startAttempt(f.student, testNow.Add(-3*time.Hour))
		require.NoError(t, f.mem.MarkExpired(context.Background(), a.ID))
	}

	_, err := svc.Start(context.Background(), f.identity(f.student), f.exam.ID,
		model.StartSessionRequest{UserID: f.student.ID})

	assert.ErrorIs(t, err, ErrAttemptsExhausted)
}

func TestStartUnlimitedAttempts(t *testing.T) {
	f := newFixture()
	f.exam.MaxAttempts = model.UnlimitedAttempts
	f.mem.AddExam(f.exam)
	svc := f.sessionService()

	for i := 0; i < 5; i++ {
		a := f.startAttempt(f.student, testNow.Add(-3*time.Hour))
		require.NoError(t, f.mem.MarkExpired(context.Background(), a.ID))
	}

	_, err := svc.Start(context.Background(), f.identity(f.student), f.exam.ID,
		model.StartSessionRequest{UserID: f.student.ID})

	assert.NoError(t, err)
}

func TestStartExpiresOverdueActiveAttempt(t *testing.T) {
	f := newFixture()
	svc := f.sessionService()

	// An active attempt whose window lapsed two hours ago.
	stale := f.startAttempt(f.student, testNow.Add(-3*time.Hour))

	result, err := svc.Start(context.Background(), f.identity(f.student), f.exam.ID,
		model.StartSessionRequest{UserID: f.student.ID})

	require.NoError(t, err)
	assert.False(t, result.Resumed)
	assert.NotEqual(t, stale.ID, result.Attempt.ID)

	old, err := f.mem.Get(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusExpired, old.Status)
}

func TestStartConcurrentSingleWinner(t *testing.T) {
	f := newFixture()
	svc := f.sessionService()
	req := model.StartSessionRequest{UserID: f.student.ID}

	const n = 16
	results := make([]*StartResult, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			result, err := svc.Start(context.Background(), f.identity(f.student), f.exam.ID, req)
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, results[0].Attempt.ID, results[i].Attempt.ID)
		assert.Equal(t, results[0].Attempt.SessionToken, results[i].Attempt.SessionToken)
	}
}
