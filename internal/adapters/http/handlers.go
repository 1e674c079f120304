package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/Rana-X/nora/internal/app"
	"github.com/Rana-X/nora/internal/app/credentials"
	"github.com/Rana-X/nora/internal/app/layout"
	"github.com/Rana-X/nora/internal/auth"
	"github.com/Rana-X/nora/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type TokenRequest struct {
	RoomName        string `json:"roomName" binding:"required"`
	ParticipantName string `json:"participantName" binding:"required"`
}

type MicrophoneRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type handlers struct {
	deps Deps
}

func clientID(c *gin.Context) app.ClientID {
	return app.ClientID(c.GetString("client_token"))
}

func handleHealth(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"sessions": deps.Registry.Len(),
			"issuer":   deps.Issuer.Configured(),
		})
	}
}

func (h *handlers) issueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.deps.Metrics.TokenIssueFailed("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing roomName or participantName"})
		return
	}

	creds, err := h.deps.Issuer.Issue(req.RoomName, req.ParticipantName)
	switch {
	case errors.Is(err, auth.ErrNotConfigured):
		log.Error().Str("module", "adapters.http").Msg("livekit credentials missing")
		h.deps.Metrics.TokenIssueFailed("not_configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server misconfigured"})
		return
	case err != nil && isValidation(err):
		h.deps.Metrics.TokenIssueFailed("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Error().Err(err).Str("module", "adapters.http").Msg("issue token")
		h.deps.Metrics.TokenIssueFailed("sign")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	h.deps.Metrics.TokenIssued()
	c.JSON(http.StatusOK, creds)
}

func (h *handlers) startSession(c *gin.Context) {
	id := clientID(c)
	if !h.deps.Registry.Allow(id) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many session starts, slow down"})
		return
	}

	var view layout.View
	_, err := h.deps.Flow.Start(c.Request.Context(), func(_ context.Context, creds domain.SessionCredentials) error {
		view = h.deps.Registry.Start(id, creds).View()
		return nil
	})
	if err != nil {
		status := http.StatusBadGateway
		if isValidation(err) {
			status = http.StatusBadRequest
		}
		msg := "Failed to get credentials"
		var ie *credentials.IssuanceError
		if errors.As(err, &ie) && ie.Message != "" {
			msg = ie.Message
		}
		log.Warn().Err(err).Str("module", "adapters.http").Str("sid", string(id)).Msg("start session")
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusAccepted, view)
}

func (h *handlers) getSession(c *gin.Context) {
	o, ok := h.deps.Registry.Get(clientID(c))
	if !ok {
		c.JSON(http.StatusOK, layout.Compose(layout.Inputs{}))
		return
	}
	c.JSON(http.StatusOK, o.View())
}

func (h *handlers) leaveSession(c *gin.Context) {
	if !h.deps.Registry.Leave(clientID(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) setMicrophone(c *gin.Context) {
	var req MicrophoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing enabled"})
		return
	}
	o, ok := h.deps.Registry.Get(clientID(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}
	if err := o.SetMicrophoneEnabled(*req.Enabled); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"microphoneEnabled": *req.Enabled})
}

func isValidation(err error) bool {
	return errors.Is(err, domain.ErrRoomNameEmpty) ||
		errors.Is(err, domain.ErrRoomNameTooLong) ||
		errors.Is(err, domain.ErrParticipantEmpty) ||
		errors.Is(err, domain.ErrParticipantTooLong)
}
