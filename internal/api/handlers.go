package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"macro-trading-bot/internal/bot"
	"macro-trading-bot/internal/database"
	"macro-trading-bot/internal/signal"

	"github.com/gin-gonic/gin"
)

// AlertHandler runs the alert pipeline for one validated webhook delivery
type AlertHandler interface {
	HandleAlert(ctx context.Context, alert signal.Alert) (bot.Outcome, error)
}

// StatusAPI is the read-only view backing the status endpoints.
// *database.Repository satisfies it.
type StatusAPI interface {
	HealthCheck(ctx context.Context) error
	GetMacroState(ctx context.Context) (*database.MacroState, error)
	CountTrades(ctx context.Context, paper bool) (int64, error)
	GetRecentTrades(ctx context.Context, limit int) ([]*database.TradeRecord, error)
}

// webhookPayload is the alert format the charting source posts. The shared
// secret travels in the payload body, not a header.
type webhookPayload struct {
	Secret       string  `json:"secret"`
	StrategyName string  `json:"strategy_name" binding:"required"`
	Symbol       string  `json:"symbol" binding:"required"`
	Direction    string  `json:"direction"`
	Price        float64 `json:"price"`
}

// handleWebhook ingests one alert. A malformed payload or a bad secret is
// rejected; past that point the delivery is always acknowledged with 200,
// whatever the pipeline decides. Processing failures go to the operator
// channel, never back to the charting source, which would otherwise retry
// and double-fire.
func (s *Server) handleWebhook(c *gin.Context) {
	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if subtle.ConstantTimeCompare([]byte(payload.Secret), []byte(s.config.WebhookSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid secret"})
		return
	}

	alert := signal.Alert{
		StrategyName: payload.StrategyName,
		Symbol:       payload.Symbol,
		Direction:    payload.Direction,
		Price:        payload.Price,
		ReceivedAt:   time.Now().UTC(),
	}

	outcome, _ := s.engine.HandleAlert(c.Request.Context(), alert)
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"outcome": string(outcome),
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.statusAPI.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

// handleStatus returns the current macro state and trade counts
func (s *Server) handleStatus(c *gin.Context) {
	state, err := s.statusAPI.GetMacroState(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "macro state unavailable"})
		return
	}

	mode := "live"
	if s.config.PaperTrading {
		mode = "paper"
	}

	resp := gin.H{
		"mode":              mode,
		"market_state":      state.MarketState,
		"asset_states":      state.AssetStates,
		"leverage":          state.Leverage,
		"macro_coefficient": state.MacroCoefficient,
		"manual_override":   state.ManualOverride,
		"updated_at":        state.UpdatedAt,
	}
	if state.LastMajorSignalName != nil {
		resp["last_major_signal"] = *state.LastMajorSignalName
	}
	if state.LastMajorSignalAt != nil {
		resp["last_major_signal_at"] = *state.LastMajorSignalAt
	}
	if paper, err := s.statusAPI.CountTrades(c.Request.Context(), true); err == nil {
		resp["paper_trades"] = paper
	}
	if live, err := s.statusAPI.CountTrades(c.Request.Context(), false); err == nil {
		resp["live_trades"] = live
	}

	c.JSON(http.StatusOK, resp)
}

// handleRecentTrades returns the most recent trade records
func (s *Server) handleRecentTrades(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	trades, err := s.statusAPI.GetRecentTrades(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trades"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trades": trades,
		"count":  len(trades),
	})
}
