package signal

import (
	"context"
	"errors"
	"strings"
	"time"

	"macro-trading-bot/config"
	"macro-trading-bot/internal/database"
	"macro-trading-bot/internal/logging"
)

// ErrInvalidDirection is returned for tactical alerts whose normalized
// direction is neither LONG nor SHORT.
var ErrInvalidDirection = errors.New("invalid direction")

// Alert is the raw payload received from the charting source, after the
// transport layer has verified the shared secret.
type Alert struct {
	StrategyName string    `json:"strategy_name"`
	Symbol       string    `json:"symbol"`
	Price        float64   `json:"price"`
	Direction    string    `json:"direction"`
	ReceivedAt   time.Time `json:"received_at"`
}

// Classified is an alert after normalization and tiering. Macro is set only
// for state-setting alerts and carries the asset/direction the allowlisted
// strategy identifier encodes.
type Classified struct {
	Alert
	Direction string              `json:"direction"` // Normalized: LONG, SHORT, or the raw token
	Tier      string              `json:"tier"`
	Macro     *config.MacroSignal `json:"macro,omitempty"`
}

// AlertLogger appends classified alerts to the audit log
type AlertLogger interface {
	InsertAlertLog(ctx context.Context, entry *database.AlertLogEntry) error
}

// Classifier normalizes and tiers incoming alerts
type Classifier struct {
	repo   AlertLogger
	macros map[string]config.MacroSignal
	logger *logging.Logger
}

// NewClassifier creates a classifier with the given state-setting allowlist
func NewClassifier(signals []config.MacroSignal, repo AlertLogger, logger *logging.Logger) *Classifier {
	macros := make(map[string]config.MacroSignal, len(signals))
	for _, s := range signals {
		macros[s.Name] = s
	}
	return &Classifier{
		repo:   repo,
		macros: macros,
		logger: logger.WithComponent("classifier"),
	}
}

// NormalizeDirection maps case-insensitive buy/sell tokens to LONG/SHORT.
// Any other literal passes through unchanged.
func NormalizeDirection(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy":
		return database.DirectionLong
	case "sell":
		return database.DirectionShort
	default:
		return raw
	}
}

// Classify normalizes the alert direction, assigns a tier, and appends the
// alert to the audit log. The log entry is written regardless of outcome;
// a failed append is logged and does not block the alert. A tactical alert
// with an unrecognized direction returns the classified alert together with
// ErrInvalidDirection. On a state-setting alert the direction is advisory
// text only and never blocks the transition.
func (c *Classifier) Classify(ctx context.Context, alert Alert) (*Classified, error) {
	classified := &Classified{
		Alert:     alert,
		Direction: NormalizeDirection(alert.Direction),
		Tier:      database.TierTactical,
	}
	if macro, ok := c.macros[alert.StrategyName]; ok {
		classified.Tier = database.TierStateSetting
		classified.Macro = &macro
	}

	entry := &database.AlertLogEntry{
		StrategyName: alert.StrategyName,
		Symbol:       alert.Symbol,
		Direction:    classified.Direction,
		Tier:         classified.Tier,
		ReceivedAt:   alert.ReceivedAt,
	}
	if err := c.repo.InsertAlertLog(ctx, entry); err != nil {
		c.logger.Error("Failed to append alert log", "strategy", alert.StrategyName, "error", err)
	}

	if classified.Tier == database.TierTactical && !IsCanonicalDirection(classified.Direction) {
		return classified, ErrInvalidDirection
	}
	return classified, nil
}

// IsCanonicalDirection reports whether d is one of the two canonical tokens
func IsCanonicalDirection(d string) bool {
	return d == database.DirectionLong || d == database.DirectionShort
}
