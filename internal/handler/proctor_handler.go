package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/provex-backend/internal/config"
	"github.com/stemsi/provex-backend/internal/middleware"
	"github.com/stemsi/provex-backend/internal/model"
	"github.com/stemsi/provex-backend/internal/response"
	"github.com/stemsi/provex-backend/internal/service"
	"github.com/stemsi/provex-backend/internal/validator"
)

const keepAliveInterval = 30 * time.Second

// ProctorHandler handles recording uploads, live snapshots and the
// proctor monitor feed.
type ProctorHandler struct {
	rdb              *redis.Client
	recordingService *service.RecordingService
	snapshotService  *service.SnapshotService
	log              zerolog.Logger
}

// NewProctorHandler creates a new ProctorHandler.
func NewProctorHandler(
	rdb *redis.Client,
	recordingService *service.RecordingService,
	snapshotService *service.SnapshotService,
	log zerolog.Logger,
) *ProctorHandler {
	return &ProctorHandler{
		rdb:              rdb,
		recordingService: recordingService,
		snapshotService:  snapshotService,
		log:              log.With().Str("component", "proctor_handler").Logger(),
	}
}

// UploadRecording godoc
// POST /api/v1/attempts/:attempt_id/recordings/:kind
// Accepts a multipart camera or screen recording and binds it to the attempt.
func (h *ProctorHandler) UploadRecording(c *gin.Context) {
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

	kind, err := model.ParseRecordingKind(c.Param("kind"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRecordingKind)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	defer file.Close()

	url, err := h.recordingService.Upload(
		c.Request.Context(),
		claims.Identity(),
		attemptID,
		c.PostForm("session_token"),
		kind,
		service.RecordingUpload{
			ContentType: fileHeader.Header.Get("Content-Type"),
			Size:        fileHeader.Size,
			Body:        file,
		},
	)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFileTooLarge):
			response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
		case errors.Is(err, service.ErrUnsupportedFile):
			response.Fail(c, http.StatusUnsupportedMediaType, response.ErrUnsupportedFile)
		case errors.Is(err, service.ErrAttemptNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
		case errors.Is(err, service.ErrNotOwner):
			response.Fail(c, http.StatusForbidden, response.ErrNotAttemptOwner)
		case errors.Is(err, service.ErrSessionTokenMismatch):
			response.Fail(c, http.StatusForbidden, response.ErrSessionTokenMismatch)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"url": url, "kind": kind})
}

// DeleteRecording godoc
// DELETE /api/v1/proctor/attempts/:attempt_id/recordings/:kind
// Detaches a recording. Deleting an absent recording is a no-op.
func (h *ProctorHandler) DeleteRecording(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	kind, err := model.ParseRecordingKind(c.Param("kind"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRecordingKind)
		return
	}

	if err := h.recordingService.Delete(c.Request.Context(), attemptID, kind); err != nil {
		if errors.Is(err, service.ErrAttemptNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// PostSnapshot godoc
// POST /api/v1/attempts/:attempt_id/snapshot
// Replaces the attempt's ephemeral live frame.
func (h *ProctorHandler) PostSnapshot(c *gin.Context) {
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

	var req model.SnapshotRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.snapshotService.Post(c.Request.Context(), claims.Identity(), attemptID, req); err != nil {
		switch {
		case errors.Is(err, service.ErrAttemptNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
		case errors.Is(err, service.ErrNotOwner):
			response.Fail(c, http.StatusForbidden, response.ErrNotAttemptOwner)
		case errors.Is(err, service.ErrSessionTokenMismatch):
			response.Fail(c, http.StatusForbidden, response.ErrSessionTokenMismatch)
		case errors.Is(err, service.ErrAttemptTerminal):
			response.Fail(c, http.StatusConflict, response.ErrAttemptTerminal)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{})
}

// GetSnapshot godoc
// GET /api/v1/proctor/attempts/:attempt_id/snapshot
// Returns the attempt's current live frame, if fresh.
func (h *ProctorHandler) GetSnapshot(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	snap, err := h.snapshotService.GetByAttempt(c.Request.Context(), attemptID)
	if err != nil {
		if errors.Is(err, service.ErrSnapshotNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrSnapshotNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"snapshot": snap})
}

// GetExamSnapshots godoc
// GET /api/v1/proctor/exams/:exam_id/snapshots
// Returns every fresh frame for the exam, one per attempt.
func (h *ProctorHandler) GetExamSnapshots(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	snaps, err := h.snapshotService.GetByExam(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if snaps == nil {
		snaps = []model.Snapshot{}
	}

	response.Success(c, http.StatusOK, gin.H{"snapshots": snaps})
}

// MonitorSSE godoc
// GET /api/v1/proctor/exams/:exam_id/monitor
// Streams monitor events for an exam over Server-Sent Events.
func (h *ProctorHandler) MonitorSSE(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	channelName := config.CacheKey.ExamMonitorChannel(examID.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	h.log.Info().Str("exam_id", examID.String()).Msg("Proctor attached to monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Proctor detached from monitor SSE")
			return

		case msg := <-ch:
			// Forward raw JSON directly, no deserialization needed.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}
