package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"wager-core/internal/balance"
	"wager-core/internal/candles"
	"wager-core/internal/engine"
	"wager-core/internal/risk"
	"wager-core/internal/trade"
)

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// respondEngineError maps engine and domain errors to HTTP responses.
func respondEngineError(c *gin.Context, err error) {
	var ioe *trade.InvalidOrderError
	switch {
	case errors.As(err, &ioe), errors.Is(err, trade.ErrInvalidOrder):
		respondError(c, http.StatusBadRequest, "INVALID_ORDER", err.Error())
	case errors.Is(err, engine.ErrUnknownSymbol):
		respondError(c, http.StatusNotFound, "UNKNOWN_SYMBOL", err.Error())
	case errors.Is(err, candles.ErrUnknownTimeframe):
		respondError(c, http.StatusBadRequest, "INVALID_TIMEFRAME", err.Error())
	case errors.Is(err, balance.ErrInsufficientBalance):
		respondError(c, http.StatusBadRequest, "INSUFFICIENT_BALANCE", err.Error())
	case errors.Is(err, risk.ErrLimitReached):
		respondError(c, http.StatusForbidden, "RISK_LIMIT", err.Error())
	case errors.Is(err, engine.ErrTradeNotFound):
		respondError(c, http.StatusNotFound, "TRADE_NOT_FOUND", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

// timeframeParam reads ?timeframe=, defaulting to the active one.
func (s *Server) timeframeParam(c *gin.Context) (candles.Timeframe, bool) {
	raw := strings.TrimSpace(c.Query("timeframe"))
	if raw == "" {
		raw = s.Engine.GetSystemStatus(c.Request.Context()).Active.Timeframe
	}
	tf, err := candles.ParseTimeframe(raw)
	if err != nil {
		respondEngineError(c, err)
		return 0, false
	}
	return tf, true
}

func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		respondError(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

// --- System ---

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.GetSystemStatus(c.Request.Context()))
}

func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		respondError(c, http.StatusServiceUnavailable, "METRICS_UNAVAILABLE", "metrics not configured")
		return
	}
	if s.Bus != nil {
		s.Metrics.SetBusDropped(s.Bus.Dropped())
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

func (s *Server) getBalance(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.GetBalance(c.Request.Context()))
}

func (s *Server) getRisk(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.RiskMetrics(c.Request.Context()))
}

func (s *Server) getPnL(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.UnrealizedPnL(c.Request.Context()))
}

// --- Market ---

type setActiveRequest struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

func (s *Server) setActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if strings.TrimSpace(req.Symbol) == "" && strings.TrimSpace(req.Timeframe) == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "symbol or timeframe required")
		return
	}
	am, err := s.Engine.SetActive(c.Request.Context(), req.Symbol, req.Timeframe)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, am)
}

func (s *Server) getPrice(c *gin.Context) {
	p, err := s.Engine.CurrentPrice(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) getTicks(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	ticks, err := s.Engine.Ticks(c.Request.Context(), c.Param("symbol"), limit)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticks)
}

func (s *Server) getCandles(c *gin.Context) {
	tf, ok := s.timeframeParam(c)
	if !ok {
		return
	}
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	cs, err := s.Engine.Candles(c.Request.Context(), c.Param("symbol"), tf, limit)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    strings.ToUpper(c.Param("symbol")),
		"timeframe": tf.String(),
		"candles":   cs,
	})
}

func (s *Server) getTrend(c *gin.Context) {
	tf, ok := s.timeframeParam(c)
	if !ok {
		return
	}
	a, err := s.Engine.Trend(c.Request.Context(), c.Param("symbol"), tf)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    strings.ToUpper(c.Param("symbol")),
		"timeframe": tf.String(),
		"analysis":  a,
	})
}

func (s *Server) getQuote(c *gin.Context) {
	q, err := s.Engine.Quote(c.Request.Context(), c.Query("symbol"), c.DefaultQuery("direction", "higher"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// --- Trades ---

func (s *Server) placeTrade(c *gin.Context) {
	var req engine.PlaceTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	t, err := s.Engine.PlaceTrade(c.Request.Context(), req)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) getActiveTrades(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.ActiveTrades(c.Request.Context()))
}

func (s *Server) getTradeHistory(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.TradeHistory(c.Request.Context()))
}

func (s *Server) cancelTrade(c *gin.Context) {
	ct, err := s.Engine.CancelTrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, ct)
}
