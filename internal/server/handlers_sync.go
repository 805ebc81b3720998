package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/syncer"
)

type offlinePayload struct {
	Offline *bool `json:"offline"`
}

func (h *httpHandler) handleRefresh(c *gin.Context) {
	state, err := h.sync.Refresh(c.Request.Context())
	if err != nil {
		if errors.Is(err, syncer.ErrOffline) {
			c.JSON(http.StatusConflict, gin.H{"error": "offline", "pending_ids": state.PendingIDs})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pending_ids": state.PendingIDs,
		"total":       len(state.Reports),
		"stats":       state.Stats,
	})
}

func (h *httpHandler) handleGetOffline(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"offline": h.sync.Offline()})
}

func (h *httpHandler) handleSetOffline(c *gin.Context) {
	var request offlinePayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Offline == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.sync.SetOffline(c.Request.Context(), *request.Offline); err != nil {
		h.respondError(c, err)
		return
	}
	if !*request.Offline {
		h.sync.RequestRefresh()
	}
	c.JSON(http.StatusOK, gin.H{"offline": h.sync.Offline()})
}

// handleEvents streams notifications, badge counts and sync warnings as server-sent events, scoped to
// the session's unit.
func (h *httpHandler) handleEvents(c *gin.Context) {
	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, currentSession(c).Scope())
	defer cleanup()

	heartbeat := time.NewTicker(realtimeHeartbeatInterval)
	defer heartbeat.Stop()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent(realtimeEventHeartbeat, RealtimeMessage{Timestamp: h.clock().UTC()})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, message)
			return true
		case <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, RealtimeMessage{Timestamp: h.clock().UTC()})
			return true
		}
	})
}
