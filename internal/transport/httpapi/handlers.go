package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/engine"
	"solana-sniper/internal/strategy"
)

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status        engine.Status `json:"status"`
	SessionID     string        `json:"session_id,omitempty"`
	Uptime        string        `json:"uptime"`
	OpenPositions int           `json:"open_positions"`
	TotalTrades   int           `json:"total_trades"`
	Faults        int           `json:"faults"`
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status:        s.engine.Status(),
		SessionID:     s.engine.SessionID(),
		Uptime:        s.clock().Sub(s.started).Truncate(time.Second).String(),
		OpenPositions: len(s.engine.ListOpen()),
		TotalTrades:   s.engine.Stats().TotalTrades(),
		Faults:        len(s.engine.Faults()),
	})
}

func (s *Server) handleStart(c *gin.Context) {
	sessionID, err := s.engine.Start()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": engine.StatusRunning, "session_id": sessionID})
}

func (s *Server) handleStop(c *gin.Context) {
	if err := s.engine.Stop(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": engine.StatusIdle})
}

func (s *Server) handleReset(c *gin.Context) {
	if err := s.engine.Reset(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": engine.StatusIdle, "reset": true})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Config())
}

func (s *Server) handlePatchConfig(c *gin.Context) {
	var patch domain.ConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid config patch: "+err.Error())
		return
	}
	cfg, err := s.engine.UpdateConfig(patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// PositionView is an open position with its derived figures.
type PositionView struct {
	domain.Position
	Change       decimal.Decimal `json:"change"`
	HeldSeconds  int64           `json:"held_seconds"`
	ProfitTarget decimal.Decimal `json:"profit_target"`
	StopLoss     decimal.Decimal `json:"stop_loss"`
}

func (s *Server) handlePositions(c *gin.Context) {
	now := s.clock()
	cfg := s.engine.Config()
	open := s.engine.ListOpen()

	views := make([]PositionView, 0, len(open))
	for _, p := range open {
		target, stop := strategy.Thresholds(p, cfg)
		views = append(views, PositionView{
			Position:     p,
			Change:       p.Change(),
			HeldSeconds:  int64(p.Held(now) / time.Second),
			ProfitTarget: target,
			StopLoss:     stop,
		})
	}
	c.JSON(http.StatusOK, views)
}

type closeRequest struct {
	Outcome domain.Outcome `json:"outcome"`
}

func (s *Server) handleClose(c *gin.Context) {
	var req closeRequest
	// An empty body derives the outcome.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid close request: "+err.Error())
		return
	}

	t, err := s.engine.ManualClose(c.Request.Context(), c.Param("id"), req.Outcome)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleDiscoveries(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.ListRecentDiscoveries())
}

// handleInjectDiscovery feeds an operator-supplied candidate through the
// same path as feed discoveries.
func (s *Server) handleInjectDiscovery(c *gin.Context) {
	var cand domain.TokenCandidate
	if err := c.ShouldBindJSON(&cand); err != nil {
		badRequest(c, "invalid candidate: "+err.Error())
		return
	}
	if cand.Source == "" {
		cand.Source = domain.SourceManual
	}

	p, err := s.engine.HandleDiscovery(c.Request.Context(), &cand)
	if err != nil {
		writeError(c, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusOK, gin.H{"accepted": false})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"accepted": true, "position": p})
}

func (s *Server) handleTrades(c *gin.Context) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		badRequest(c, "page must be a positive integer")
		return
	}
	pageSize, ok := queryInt(c, "page_size", 0)
	if !ok {
		badRequest(c, "page_size must be a positive integer")
		return
	}
	c.JSON(http.StatusOK, s.engine.History(page, pageSize))
}

// StatsResponse adds derived figures to domain.Stats.
type StatsResponse struct {
	domain.Stats
	TotalTrades int     `json:"total_trades"`
	WinRate     float64 `json:"win_rate"`
}

func (s *Server) handleStats(c *gin.Context) {
	st := s.engine.Stats()
	c.JSON(http.StatusOK, StatsResponse{
		Stats:       st,
		TotalTrades: st.TotalTrades(),
		WinRate:     st.WinRate(),
	})
}

func (s *Server) handleFaults(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Faults())
}
