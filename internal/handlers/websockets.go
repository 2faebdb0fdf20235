package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"spa_engine/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 2 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000
	commandTimeout   = 15 * time.Second

	msgCommandResult = "command_result"
	msgError         = "error"
)

// wsEnvelope is every frame the server writes.
type wsEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Summary      Live state over WebSocket
// @Description  Pushes {"type":"state_update","payload":<state>} every interval. Clients may send command envelopes; each is answered with a command_result frame.
// @Tags         spa
// @Param        interval     query  string  false  "Push period, e.g. 500ms (max 10s)"
// @Param        interval_ms  query  int     false  "Push period in milliseconds (max 10000)"
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The reader executes commands; only this goroutine writes.
	done := make(chan struct{})
	replies := make(chan wsEnvelope, 4)
	go h.startReader(ctx, conn, replies, done)

	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	if err := h.sendState(conn); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case env := <-replies:
			if err := writeEnvelope(conn, env); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case <-ticker.C:
			if err := h.sendState(conn); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultInterval
}

// startReader decodes inbound command envelopes until the connection
// closes and queues one reply per frame.
func (h *Handler) startReader(ctx context.Context, conn *websocket.Conn, replies chan<- wsEnvelope, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}

		var reply wsEnvelope
		var cmd models.Command
		if err := json.Unmarshal(data, &cmd); err != nil || cmd.Type == "" {
			reply = wsEnvelope{Type: msgError, Error: "invalid command frame"}
		} else {
			cctx, cancel := context.WithTimeout(ctx, commandTimeout)
			res := h.services.Command(cctx, cmd)
			cancel()
			reply = wsEnvelope{Type: msgCommandResult, Payload: res}
		}

		select {
		case replies <- reply:
		case <-ctx.Done():
			return
		}
	}
}

// sendState writes the current state with a write deadline.
func (h *Handler) sendState(conn *websocket.Conn) error {
	return writeEnvelope(conn, wsEnvelope{Type: msgStateUpdate, Payload: h.services.GetState()})
}

func writeEnvelope(conn *websocket.Conn, env wsEnvelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}
