// Package e2e exercises the full HTTP stack, from login through submit,
// against in-memory stores.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stemsi/provex-backend/internal/config"
	"github.com/stemsi/provex-backend/internal/handler"
	"github.com/stemsi/provex-backend/internal/model"
	"github.com/stemsi/provex-backend/internal/relay"
	"github.com/stemsi/provex-backend/internal/router"
	"github.com/stemsi/provex-backend/internal/service"
	"github.com/stemsi/provex-backend/internal/store/memstore"
	"github.com/stemsi/provex-backend/internal/validator"
)

type app struct {
	router   *gin.Engine
	mem      *memstore.Store
	exam     model.Exam
	student  model.User
	password string
	qID      uuid.UUID
}

func newApp(t *testing.T) *app {
	t.Helper()
	validator.Setup()

	cfg := &config.Config{
		ServerPort:         "0",
		GinMode:            gin.TestMode,
		JWTSecret:          "e2e-secret",
		JWTExpiry:          time.Hour,
		BcryptCost:         4,
		RecordingDir:       t.TempDir(),
		MaxRecordingBytes:  1 << 20,
		SnapshotTTL:        2 * time.Minute,
		SnapshotRatePerMin: 30,
	}

	mem := memstore.New()
	category := uuid.New()
	groupID := uuid.New()
	now := time.Now()

	exam := model.Exam{
		ID:                uuid.New(),
		Title:             "E2E Exam",
		DurationMinutes:   30,
		TotalMarks:        10,
		MaxAttempts:       1,
		PassingPercentage: 50,
		StartDate:         now.Add(-time.Hour),
		EndDate:           now.Add(time.Hour),
		CategoryID:        category,
		QuestionGroupIDs:  []uuid.UUID{groupID},
	}
	mem.AddExam(exam)

	question := model.Question{
		ID:            uuid.New(),
		GroupID:       &groupID,
		Text:          "2+2?",
		Type:          "multiple_choice",
		Marks:         10,
		CorrectAnswer: "4",
		Active:        true,
	}
	mem.AddQuestion(question)

	log := zerolog.Nop()
	authService := service.NewAuthService(cfg, mem.Users())

	password := "s3cret-pass"
	hash, err := authService.HashPassword(password)
	require.NoError(t, err)
	student := model.User{
		ID:           uuid.New(),
		Name:         "Student",
		Email:        "student@e2e.local",
		PasswordHash: hash,
		CategoryID:   category,
		Role:         model.RoleStudent,
	}
	mem.AddUser(student)

	mediaStorage, err := service.NewDiskMediaStorage(cfg.RecordingDir)
	require.NoError(t, err)

	notifier := service.NewLogNotifier(log)
	sessionService := service.NewSessionService(mem, mem.Exams(), mem.Users(), service.NoopMirror{}, notifier, log)
	takeService := service.NewTakeService(mem, mem.Exams(), mem, log)
	autosaveService := service.NewAutosaveService(mem, mem.Exams(), service.NoopMirror{}, notifier, log)
	scoringService := service.NewScoringService(mem, mem.Exams(), mem, service.NoopMirror{}, notifier, log)
	recordingService := service.NewRecordingService(mem, mediaStorage, service.NoopMirror{}, cfg.MaxRecordingBytes, log)
	snapshotService := service.NewSnapshotService(nil, mem, cfg.SnapshotTTL, log)

	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Session: handler.NewSessionHandler(sessionService),
		Attempt: handler.NewAttemptHandler(takeService, autosaveService, scoringService),
		Proctor: handler.NewProctorHandler(nil, recordingService, snapshotService, log),
		Relay:   handler.NewRelayHandler(relay.NewRegistry(log), mem, log, nil),
	}

	return &app{
		router:   router.SetupRouter(authService, handlers, cfg),
		mem:      mem,
		exam:     exam,
		student:  student,
		password: password,
		qID:      question.ID,
	}
}

func (a *app) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}

func TestFullAttemptFlow(t *testing.T) {
	a := newApp(t)

	// Health check first.
	w := a.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Login.
	w = a.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    a.student.Email,
		"password": a.password,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string `json:"token"`
	}
	decodeData(t, w, &login)
	require.NotEmpty(t, login.Token)

	// Start an attempt.
	w = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/exams/%s/attempts", a.exam.ID), login.Token, gin.H{
		"user_id": a.student.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var started struct {
		Attempt model.Attempt `json:"attempt"`
		Resumed bool          `json:"resumed"`
	}
	decodeData(t, w, &started)
	require.False(t, started.Resumed)
	require.NotEmpty(t, started.Attempt.SessionToken)

	// Starting again resumes.
	w = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/exams/%s/attempts", a.exam.ID), login.Token, gin.H{
		"user_id": a.student.ID,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Load the take payload.
	w = a.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/attempts/%s?session_token=%s", started.Attempt.ID, started.Attempt.SessionToken),
		login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "correct_answer")

	// Autosave an answer.
	w = a.do(t, http.MethodPut,
		fmt.Sprintf("/api/v1/attempts/%s/answers", started.Attempt.ID), login.Token, gin.H{
			"exam_id":       a.exam.ID,
			"question_id":   a.qID.String(),
			"answer":        "4",
			"session_token": started.Attempt.SessionToken,
		})
	require.Equal(t, http.StatusOK, w.Code)

	// Submit. The autosaved answer carries over.
	w = a.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/attempts/%s/submit", started.Attempt.ID), login.Token, gin.H{
			"session_token": started.Attempt.SessionToken,
		})
	require.Equal(t, http.StatusOK, w.Code)
	var submitted struct {
		Attempt model.Attempt `json:"attempt"`
	}
	decodeData(t, w, &submitted)
	assert.Equal(t, model.AttemptStatusSubmitted, submitted.Attempt.Status)
	assert.Equal(t, 10.0, submitted.Attempt.Score)
	assert.Equal(t, 100.0, submitted.Attempt.Percentage)
	assert.True(t, submitted.Attempt.Passed)

	// A new start after the quota is spent fails.
	w = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/exams/%s/attempts", a.exam.ID), login.Token, gin.H{
		"user_id": a.student.ID,
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ATTEMPTS_EXHAUSTED")
}

func TestAuthRequired(t *testing.T) {
	a := newApp(t)

	w := a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/exams/%s/attempts", a.exam.ID), "", gin.H{
		"user_id": a.student.ID,
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBadCredentials(t *testing.T) {
	a := newApp(t)

	w := a.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    a.student.Email,
		"password": "wrong-password",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_CREDENTIALS")
}
