package handlers

import (
	"net/http"
	"time"

	"spa_engine/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errInvalidBodyPref = "invalid body: "
)

// HealthResponse documents the /health payload.
type HealthResponse struct {
	Status     string      `json:"status" example:"ok"`
	Version    string      `json:"version" example:"1.0.0"`
	UptimeS    int64       `json:"uptime_s" example:"3600"`
	Connection models.Meta `json:"connection"`
}

// @Summary      Health check
// @Description  Process status plus the spa connection metadata. Does not count as client activity.
// @Tags         system
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	st := h.services.Snapshot()
	c.JSON(http.StatusOK, HealthResponse{
		Status:     statusOK,
		Version:    h.version,
		UptimeS:    int64(time.Since(h.started).Seconds()),
		Connection: st.Meta,
	})
}

// @Summary      Current spa state
// @Description  Returns the latest state document. Counts as client activity and wakes an idle connection.
// @Tags         spa
// @Produce      json
// @Success      200  {object}  models.SpaState
// @Router       /spa/state [get]
func (h *Handler) getState(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.GetState())
}

// @Summary      Send a command
// @Description  Supported types: light.toggle {on?}, pump.cycle {id?}, temp.set {setpoint_f}. Domain failures return 200 with ok=false.
// @Tags         spa
// @Accept       json
// @Produce      json
// @Param        command  body      models.Command  true  "Command envelope"
// @Success      200      {object}  models.CommandResult
// @Failure      400      {object}  map[string]string
// @Router       /spa/command [post]
func (h *Handler) postCommand(c *gin.Context) {
	var cmd models.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	res := h.services.Command(c.Request.Context(), cmd)
	if !res.OK && h.log != nil {
		h.log.Infow("command_rejected", "type", cmd.Type, "error", res.Error)
	}
	c.JSON(http.StatusOK, res)
}
