package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/session"
	"go.uber.org/zap"
)

type sessionRequestPayload struct {
	Role     string `json:"role"`
	Unit     string `json:"ulp"`
	Officer1 string `json:"petugas1"`
	Officer2 string `json:"petugas2"`
}

type sessionResponsePayload struct {
	AccessToken string          `json:"access_token"`
	ExpiresIn   int64           `json:"expires_in"`
	TokenType   string          `json:"token_type"`
	Session     session.Session `json:"session"`
}

func (h *httpHandler) handleOpenSession(c *gin.Context) {
	var request sessionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	requested, err := session.Session{
		Role:     session.Role(request.Role),
		Unit:     request.Unit,
		Officer1: request.Officer1,
		Officer2: request.Officer2,
	}.Normalize()
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !requested.IsAdmin() {
		unit, ok := h.master.Catalog()[requested.Unit]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_unit"})
			return
		}
		if requested.Role == session.RoleUser &&
			(!containsName(unit.Officers, requested.Officer1) || !containsName(unit.Officers, requested.Officer2)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_officer"})
			return
		}
	}

	token, expiresIn, issued, err := h.sessions.Issue(requested)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, token, int(expiresIn), "/", "", false, true)
	c.JSON(http.StatusOK, sessionResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		Session:     issued,
	})
}

func containsName(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}
