package handlers

import (
	"io"
	"time"

	"spa_engine/internal/models"

	"github.com/gin-gonic/gin"
)

const msgStateUpdate = "state_update"

// stateUpdate is the frame pushed to SSE and WebSocket subscribers.
type stateUpdate struct {
	Type    string          `json:"type"`
	Payload models.SpaState `json:"payload"`
}

// @Summary      Live state stream
// @Description  Server-sent events; every frame is {"type":"state_update","payload":<state>}. An open stream keeps the spa connection active.
// @Tags         spa
// @Produce      text/event-stream
// @Success      200
// @Router       /events [get]
func (h *Handler) streamEvents(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	h.services.NoteStateRequest()
	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	first := true
	c.Stream(func(w io.Writer) bool {
		if !first {
			select {
			case <-c.Request.Context().Done():
				return false
			case <-ticker.C:
			}
		}
		first = false
		c.SSEvent("", stateUpdate{Type: msgStateUpdate, Payload: h.services.GetState()})
		return true
	})
	if h.log != nil {
		h.log.Debugw("sse_client_gone", "remote", c.ClientIP())
	}
}
