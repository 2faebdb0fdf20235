package handlers

import (
	"net/http"
	"strings"
	"time"

	"spa_engine/internal/logger"
	"spa_engine/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const defaultStreamInterval = 2 * time.Second

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services       *service.Service
	log            *logger.Logger
	version        string
	started        time.Time
	corsOrigins    []string
	metrics        http.Handler
	streamInterval time.Duration
}

// Option customizes a Handler.
type Option func(*Handler)

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option { return func(h *Handler) { h.version = v } }

// WithCORSOrigins sets the allowed browser origins from a comma separated
// list. "*" allows any origin.
func WithCORSOrigins(list string) Option {
	return func(h *Handler) { h.corsOrigins = splitOrigins(list) }
}

// WithMetrics exposes the given handler on /metrics.
func WithMetrics(m http.Handler) Option { return func(h *Handler) { h.metrics = m } }

// WithStreamInterval sets the SSE push period.
func WithStreamInterval(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.streamInterval = d
		}
	}
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{
		services:       services,
		log:            log,
		version:        "dev",
		started:        time.Now(),
		corsOrigins:    []string{"*"},
		streamInterval: defaultStreamInterval,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.corsMiddleware)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)

	h.registerSpaRoutes(router)
	h.registerLogRoutes(router)

	router.GET("/events", h.streamEvents)
	router.GET("/ws", h.wsConnect)

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}
	return router
}

func (h *Handler) registerSpaRoutes(r *gin.Engine) {
	spa := r.Group("/spa")
	{
		spa.GET("/state", h.getState)
		// Body example: {"type":"temp.set","payload":{"setpoint_f":102}}
		spa.POST("/command", h.postCommand)
	}
}

func (h *Handler) registerLogRoutes(r *gin.Engine) {
	logs := r.Group("/logs")
	{
		logs.GET("", h.getLogs)
		logs.GET("/tail", h.getLogTail)
	}
}

func splitOrigins(list string) []string {
	var out []string
	for _, o := range strings.Split(list, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
