package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/provex-backend/internal/middleware"
	"github.com/stemsi/provex-backend/internal/model"
	"github.com/stemsi/provex-backend/internal/relay"
	"github.com/stemsi/provex-backend/internal/store"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// RelayHandler handles the live-stream signaling socket. The attempt
// taker joins as publisher; elevated roles join as subscribers.
type RelayHandler struct {
	registry *relay.Registry
	attempts store.AttemptStore
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewRelayHandler creates a new RelayHandler.
func NewRelayHandler(registry *relay.Registry, attempts store.AttemptStore, log zerolog.Logger, allowedOrigins []string) *RelayHandler {
	return &RelayHandler{
		registry: registry,
		attempts: attempts,
		log:      log.With().Str("component", "relay_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// Signal godoc
// WS /ws/v1/attempts/:attempt_id/signal
// Upgrades to WebSocket and relays SDP/ICE frames for the attempt's
// proctoring stream. Media never passes through the server.
func (h *RelayHandler) Signal(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	attempt, err := h.attempts.Get(c.Request.Context(), attemptID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "attempt not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	isPublisher := claims.UserID == attempt.UserID
	switch {
	case isPublisher:
		// Publishers must hold a live attempt and its session token.
		if attempt.Status != model.AttemptStatusActive {
			c.JSON(http.StatusConflict, gin.H{"error": "attempt is not active"})
			return
		}
		if c.Query("session_token") != attempt.SessionToken {
			c.JSON(http.StatusForbidden, gin.H{"error": "session token mismatch"})
			return
		}
	case claims.Role.Elevated():
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	peer := relay.NewWSPeer(claims.UserID.String(), conn)
	room := h.registry.Room(attemptID.String())

	if isPublisher {
		room.JoinPublisher(peer)
	} else {
		room.JoinSubscriber(peer)
	}

	h.log.Info().
		Str("attempt_id", attemptID.String()).
		Str("peer", peer.ID()).
		Bool("publisher", isPublisher).
		Msg("Peer joined signaling room")

	defer func() {
		if room.Leave(peer) {
			h.registry.Release(attemptID.String())
		}
		peer.Close()
		h.log.Info().
			Str("attempt_id", attemptID.String()).
			Str("peer", peer.ID()).
			Msg("Peer left signaling room")
	}()

	for {
		msg, err := peer.Read()
		if err != nil {
			return
		}
		room.Route(peer, msg)
	}
}
