package handler

import (
	"bytes"
	"context"
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
	"github.com/stemsi/provex-backend/internal/middleware"
	"github.com/stemsi/provex-backend/internal/model"
	"github.com/stemsi/provex-backend/internal/service"
	"github.com/stemsi/provex-backend/internal/store/memstore"
	"github.com/stemsi/provex-backend/internal/validator"
)

// Services in these tests run on the real clock, so the fixture anchors
// its windows around now.
var handlerTestNow = time.Now()

type env struct {
	router  *gin.Engine
	mem     *memstore.Store
	exam    model.Exam
	student model.User
	attempt *model.Attempt
}

// newEnv wires the take routes against memstore-backed services, with a
// stub auth middleware that injects the given caller's claims.
func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Setup()

	mem := memstore.New()
	category := uuid.New()
	groupID := uuid.New()

	exam := model.Exam{
		ID:                uuid.New(),
		Title:             "Finals",
		DurationMinutes:   60,
		TotalMarks:        10,
		MaxAttempts:       1,
		PassingPercentage: 50,
		StartDate:         handlerTestNow.Add(-time.Hour),
		EndDate:           handlerTestNow.Add(time.Hour),
		CategoryID:        category,
		QuestionGroupIDs:  []uuid.UUID{groupID},
	}
	mem.AddExam(exam)

	question := model.Question{
		ID:            uuid.New(),
		GroupID:       &groupID,
		Text:          "q",
		Type:          "multiple_choice",
		Marks:         10,
		CorrectAnswer: "a",
		Active:        true,
	}
	mem.AddQuestion(question)

	student := model.User{ID: uuid.New(), Name: "Student", Email: "s@test.local", CategoryID: category, Role: model.RoleStudent}
	mem.AddUser(student)

	attempt := &model.Attempt{
		ID:           uuid.New(),
		ExamID:       exam.ID,
		UserID:       student.ID,
		SessionToken: uuid.NewString(),
		StartedAt:    handlerTestNow.Add(-10 * time.Minute),
		EndTime:      handlerTestNow.Add(50 * time.Minute),
		Status:       model.AttemptStatusActive,
		Answers:      map[string]string{},
		TotalMarks:   exam.TotalMarks,
	}
	require.NoError(t, mem.Create(context.Background(), attempt))

	log := zerolog.Nop()
	notifier := service.NewLogNotifier(log)
	takeService := service.NewTakeService(mem, mem.Exams(), mem, log)
	autosaveService := service.NewAutosaveService(mem, mem.Exams(), service.NoopMirror{}, notifier, log)
	scoringService := service.NewScoringService(mem, mem.Exams(), mem, service.NoopMirror{}, notifier, log)
	h := NewAttemptHandler(takeService, autosaveService, scoringService)

	claims := &service.Claims{UserID: student.ID, CategoryID: student.CategoryID, Role: student.Role}

	router := gin.New()
	api := router.Group("/api/v1", func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, claims)
	})
	api.GET("/attempts/:attempt_id", h.Load)
	api.PUT("/attempts/:attempt_id/answers", h.SaveAnswer)
	api.POST("/attempts/:attempt_id/submit", h.Submit)

	return &env{router: router, mem: mem, exam: exam, student: student, attempt: attempt}
}

func (e *env) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestLoadAttemptEndpoint(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/attempts/%s?session_token=%s", e.attempt.ID, e.attempt.SessionToken), nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			Exam      model.ExamView       `json:"exam"`
			Questions []model.QuestionView `json:"questions"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Finals", resp.Data.Exam.Title)
	assert.Len(t, resp.Data.Questions, 1)
	// The raw body must never leak the answer key.
	assert.NotContains(t, w.Body.String(), "correct_answer")
}

func TestLoadAttemptTokenMismatchEndpoint(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/attempts/%s?session_token=bogus", e.attempt.ID), nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "SESSION_TOKEN_MISMATCH")
}

func TestSaveAnswerEndpointValidation(t *testing.T) {
	e := newEnv(t)

	// question_id must be a UUID.
	w := e.do(t, http.MethodPut,
		fmt.Sprintf("/api/v1/attempts/%s/answers", e.attempt.ID), gin.H{
			"exam_id":       e.exam.ID,
			"question_id":   "not-a-uuid",
			"answer":        "a",
			"session_token": e.attempt.SessionToken,
		})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestSubmitEndpoint(t *testing.T) {
	e := newEnv(t)
	questionID := ""
	{
		// Fetch the question ID through the take payload.
		w := e.do(t, http.MethodGet,
			fmt.Sprintf("/api/v1/attempts/%s?session_token=%s", e.attempt.ID, e.attempt.SessionToken), nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data struct {
				Questions []model.QuestionView `json:"questions"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		questionID = resp.Data.Questions[0].ID.String()
	}

	w := e.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/attempts/%s/submit", e.attempt.ID), gin.H{
			"session_token": e.attempt.SessionToken,
			"answers":       gin.H{questionID: "a"},
		})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			Attempt model.Attempt `json:"attempt"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.AttemptStatusSubmitted, resp.Data.Attempt.Status)
	assert.Equal(t, 10.0, resp.Data.Attempt.Score)
	assert.True(t, resp.Data.Attempt.Passed)
}
