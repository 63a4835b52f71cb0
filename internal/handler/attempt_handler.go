package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/provex-backend/internal/middleware"
	"github.com/stemsi/provex-backend/internal/model"
	"github.com/stemsi/provex-backend/internal/response"
	"github.com/stemsi/provex-backend/internal/service"
	"github.com/stemsi/provex-backend/internal/validator"
)

// sessionTokenHeader carries the attempt session token on read requests
// that have no JSON body.
const sessionTokenHeader = "X-Session-Token"

// AttemptHandler handles the take flow: load, autosave and submit.
type AttemptHandler struct {
	takeService     *service.TakeService
	autosaveService *service.AutosaveService
	scoringService  *service.ScoringService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(
	takeService *service.TakeService,
	autosaveService *service.AutosaveService,
	scoringService *service.ScoringService,
) *AttemptHandler {
	return &AttemptHandler{
		takeService:     takeService,
		autosaveService: autosaveService,
		scoringService:  scoringService,
	}
}

// Load godoc
// GET /api/v1/attempts/:attempt_id
// Returns the sanitized take payload: attempt, exam view, questions with
// the answer key stripped, and remaining time.
func (h *AttemptHandler) Load(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sessionToken := c.GetHeader(sessionTokenHeader)
	if sessionToken == "" {
		sessionToken = c.Query("session_token")
	}

	payload, err := h.takeService.Load(c.Request.Context(), claims.Identity(), attemptID, sessionToken)
	if err != nil {
		h.failTake(c, err)
		return
	}

	response.Success(c, http.StatusOK, payload)
}

// SaveAnswer godoc
// PUT /api/v1/attempts/:attempt_id/answers
// Autosaves a single answer, last write wins per question.
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	savedAt, err := h.autosaveService.Save(c.Request.Context(), claims.Identity(), attemptID, req)
	if err != nil {
		h.failTake(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"saved_at": savedAt})
}

// Submit godoc
// POST /api/v1/attempts/:attempt_id/submit
// Finalizes the attempt with a server-side score. Resubmitting a
// finalized attempt returns the stored result unchanged.
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.scoringService.Submit(c.Request.Context(), claims.Identity(), attemptID, req)
	if err != nil {
		h.failTake(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// failTake maps the take-flow sentinels shared by load, autosave and
// submit onto response codes.
func (h *AttemptHandler) failTake(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
	case errors.Is(err, service.ErrNotOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotAttemptOwner)
	case errors.Is(err, service.ErrSessionTokenMismatch):
		response.Fail(c, http.StatusForbidden, response.ErrSessionTokenMismatch)
	case errors.Is(err, service.ErrAttemptTerminal):
		response.Fail(c, http.StatusConflict, response.ErrAttemptTerminal)
	case errors.Is(err, service.ErrTimeExpired):
		response.Fail(c, http.StatusConflict, response.ErrTimeExpired)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
