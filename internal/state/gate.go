package state

import (
	"context"

	"macro-trading-bot/internal/database"
	"macro-trading-bot/internal/logging"
)

// Gate reads and toggles the manual override flag on the macro state. While
// the flag is set, state-setting alerts are rejected and tactical alerts are
// dropped; alert logging still happens upstream.
type Gate struct {
	store  Store
	logger *logging.Logger
}

// NewGate creates an override gate
func NewGate(store Store, logger *logging.Logger) *Gate {
	return &Gate{store: store, logger: logger.WithComponent("override-gate")}
}

// IsPaused reads the manual override flag
func (g *Gate) IsPaused(ctx context.Context) (bool, error) {
	state, err := g.store.GetMacroState(ctx)
	if err != nil {
		return false, err
	}
	return state.ManualOverride, nil
}

// Pause sets the manual override flag
func (g *Gate) Pause(ctx context.Context) error {
	return g.set(ctx, true)
}

// Resume clears the manual override flag
func (g *Gate) Resume(ctx context.Context) error {
	return g.set(ctx, false)
}

func (g *Gate) set(ctx context.Context, paused bool) error {
	_, err := mutateState(ctx, g.store, func(s *database.MacroState) bool {
		if s.ManualOverride == paused {
			return false
		}
		s.ManualOverride = paused
		return true
	})
	if err != nil {
		g.logger.Error("Failed to update manual override", "paused", paused, "error", err)
		return err
	}
	g.logger.Info("Manual override updated", "paused", paused)
	return nil
}
