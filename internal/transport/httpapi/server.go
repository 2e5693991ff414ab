// Package httpapi exposes the engine's command surface over HTTP.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/engine"
	"solana-sniper/internal/ledger"
	"solana-sniper/internal/observability"
)

// Options configures the HTTP API.
type Options struct {
	Clock          func() time.Time // for time held; default time.Now
	MetricsHandler http.Handler     // default observability.Handler()
	Logger         *zap.Logger
}

// Server routes HTTP requests to an Engine.
type Server struct {
	engine  *engine.Engine
	clock   func() time.Time
	logger  *zap.Logger
	router  *gin.Engine
	started time.Time
}

// New builds the router. Callers choose the gin mode.
func New(e *engine.Engine, opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MetricsHandler == nil {
		opts.MetricsHandler = observability.Handler()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		engine:  e,
		clock:   opts.Clock,
		logger:  opts.Logger,
		router:  gin.New(),
		started: opts.Clock(),
	}

	r := s.router
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	r.GET("/status", s.handleStatus)

	r.POST("/engine/start", s.handleStart)
	r.POST("/engine/stop", s.handleStop)
	r.POST("/engine/reset", s.handleReset)

	r.GET("/config", s.handleGetConfig)
	r.PATCH("/config", s.handlePatchConfig)

	r.GET("/positions", s.handlePositions)
	r.POST("/positions/:id/close", s.handleClose)

	r.GET("/discoveries", s.handleDiscoveries)
	r.POST("/discoveries", s.handleInjectDiscovery)

	r.GET("/trades", s.handleTrades)
	r.GET("/stats", s.handleStats)
	r.GET("/faults", s.handleFaults)

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps engine errors to status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrNotRunning),
		errors.Is(err, engine.ErrAlreadyRunning),
		errors.Is(err, engine.ErrRunning):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrInvalidOutcome),
		errors.Is(err, engine.ErrInvalidCandidate),
		errors.Is(err, domain.ErrInvalidConfig):
		status = http.StatusBadRequest
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

// queryInt reads a positive integer query parameter, def when absent.
func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
