package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"macro-trading-bot/config"
	"macro-trading-bot/internal/database"
	"macro-trading-bot/internal/logging"
)

var (
	// ErrStateConflict means the conditional update lost the race after one
	// retry. The mutation is abandoned and prior state is left intact.
	ErrStateConflict = errors.New("macro state update conflict")

	// ErrStateUnavailable means the state row could not be read
	ErrStateUnavailable = errors.New("macro state unavailable")
)

// Store is the conditional-update view of the macro state row
type Store interface {
	GetMacroState(ctx context.Context) (*database.MacroState, error)
	UpdateMacroState(ctx context.Context, expectedVersion int64, state *database.MacroState) error
}

// Notifier reports state transitions to the operator channel
type Notifier interface {
	SendStateChange(marketState, signalName string)
	SendSweepReset(previousState string, elapsed time.Duration)
}

// Config holds state machine tuning
type Config struct {
	BullExpiryHours int
	BearExpiryHours int
	BullLeverage    int
	BaseLeverage    int
}

// Machine applies state-setting signals to the shared macro state and expires
// stale trends. All writes go through the versioned conditional-update path;
// the row is shared with the webhook handler and operator commands, so a
// plain read-modify-write would lose updates.
type Machine struct {
	store  Store
	notify Notifier
	cfg    Config
	logger *logging.Logger
	now    func() time.Time
}

// NewMachine creates a macro state machine
func NewMachine(store Store, notify Notifier, cfg Config, logger *logging.Logger) *Machine {
	return &Machine{
		store:  store,
		notify: notify,
		cfg:    cfg,
		logger: logger.WithComponent("state-machine"),
		now:    time.Now,
	}
}

// Apply handles a state-setting signal: sets the per-asset state the strategy
// identifier encodes, recomputes the derived market state and leverage, and
// persists the whole patch atomically. One read-modify-write retry on version
// conflict, then ErrStateConflict.
func (m *Machine) Apply(ctx context.Context, macro config.MacroSignal) (*database.MacroState, error) {
	state, err := m.mutate(ctx, func(s *database.MacroState) bool {
		s.AssetStates[macro.Asset] = macro.Direction
		s.MarketState = deriveMarketState(s.AssetStates)
		s.Leverage = m.leverageFor(s.MarketState)
		name := macro.Name
		at := m.now()
		s.LastMajorSignalName = &name
		s.LastMajorSignalAt = &at
		return true
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Macro state transition",
		"signal", macro.Name, "asset", macro.Asset, "direction", macro.Direction,
		"market_state", state.MarketState, "leverage", state.Leverage)
	m.notify.SendStateChange(state.MarketState, macro.Name)
	return state, nil
}

// SweepExpiry resets a stale trend back to NEUTRAL. A NEUTRAL state or a
// missing signal timestamp makes the sweep a no-op, so running it twice in a
// row changes nothing.
func (m *Machine) SweepExpiry(ctx context.Context) error {
	var previous string
	var elapsed time.Duration
	_, err := m.mutate(ctx, func(s *database.MacroState) bool {
		if s.MarketState == database.MarketNeutral || s.LastMajorSignalAt == nil {
			return false
		}
		elapsed = m.now().Sub(*s.LastMajorSignalAt)
		threshold := time.Duration(m.cfg.BullExpiryHours) * time.Hour
		if s.MarketState == database.MarketBear {
			threshold = time.Duration(m.cfg.BearExpiryHours) * time.Hour
		}
		if elapsed <= threshold {
			return false
		}

		previous = s.MarketState
		s.MarketState = database.MarketNeutral
		for asset := range s.AssetStates {
			s.AssetStates[asset] = database.AssetNone
		}
		s.Leverage = m.cfg.BaseLeverage
		name := "timeout-reset"
		at := m.now()
		s.LastMajorSignalName = &name
		s.LastMajorSignalAt = &at
		return true
	})
	if err != nil {
		return err
	}
	if previous == "" {
		return nil
	}

	m.logger.Info("Macro state expired", "previous_state", previous, "elapsed", elapsed.String())
	m.notify.SendSweepReset(previous, elapsed)
	return nil
}

// RunSweeper drives the expiry sweep on a fixed interval until ctx is done
func (m *Machine) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.SweepExpiry(ctx); err != nil {
				m.logger.Error("Expiry sweep failed", "error", err)
			}
		}
	}
}

// mutate runs a read-modify-conditional-write cycle with one retry. fn
// returns false to skip the write entirely.
func (m *Machine) mutate(ctx context.Context, fn func(*database.MacroState) bool) (*database.MacroState, error) {
	return mutateState(ctx, m.store, fn)
}

func (m *Machine) leverageFor(marketState string) int {
	if marketState == database.MarketBull {
		return m.cfg.BullLeverage
	}
	return m.cfg.BaseLeverage
}

// deriveMarketState recomputes the market trend from per-asset states. SHORT
// takes priority over LONG when assets disagree.
func deriveMarketState(assetStates map[string]string) string {
	anyLong := false
	for _, s := range assetStates {
		switch s {
		case database.DirectionShort:
			return database.MarketBear
		case database.DirectionLong:
			anyLong = true
		}
	}
	if anyLong {
		return database.MarketBull
	}
	return database.MarketNeutral
}

// mutateState is the shared conditional-update cycle used by the machine and
// the override gate: read, patch, write keyed on the read version, retry the
// whole cycle once on conflict.
func mutateState(ctx context.Context, store Store, fn func(*database.MacroState) bool) (*database.MacroState, error) {
	for attempt := 0; attempt < 2; attempt++ {
		state, err := store.GetMacroState(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStateUnavailable, err)
		}
		if !fn(state) {
			return state, nil
		}
		err = store.UpdateMacroState(ctx, state.Version, state)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, database.ErrVersionConflict) {
			return nil, err
		}
	}
	return nil, ErrStateConflict
}
