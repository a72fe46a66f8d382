package bot

import (
	"context"
	"errors"

	"macro-trading-bot/internal/database"
	"macro-trading-bot/internal/events"
	"macro-trading-bot/internal/execution"
	"macro-trading-bot/internal/logging"
	"macro-trading-bot/internal/risk"
	"macro-trading-bot/internal/signal"
	"macro-trading-bot/internal/state"
)

// Outcome is the terminal disposition of one processed alert
type Outcome string

const (
	OutcomeStateApplied Outcome = "state_applied"
	OutcomeTraded       Outcome = "traded"
	OutcomeFiltered     Outcome = "filtered"
	OutcomePaused       Outcome = "paused"
	OutcomeRejected     Outcome = "rejected"
	OutcomeFailed       Outcome = "failed"
)

// Notifier reports pipeline outcomes to the operator channel
type Notifier interface {
	SendFiltered(symbol, strategyName, reason string)
	SendError(title, message string)
}

// Engine runs the alert pipeline: classify, gate, then either a macro state
// transition or a sized trade dispatch. One alert in, one outcome out; the
// transport layer has already acknowledged the delivery by the time an alert
// reaches the engine.
type Engine struct {
	classifier *signal.Classifier
	store      state.Store
	machine    *state.Machine
	sizer      *risk.Sizer
	router     *execution.Router
	notify     Notifier
	bus        *events.EventBus
	logger     *logging.Logger
}

// NewEngine creates an alert pipeline engine
func NewEngine(
	classifier *signal.Classifier,
	store state.Store,
	machine *state.Machine,
	sizer *risk.Sizer,
	router *execution.Router,
	notify Notifier,
	bus *events.EventBus,
	logger *logging.Logger,
) *Engine {
	return &Engine{
		classifier: classifier,
		store:      store,
		machine:    machine,
		sizer:      sizer,
		router:     router,
		notify:     notify,
		bus:        bus,
		logger:     logger.WithComponent("engine"),
	}
}

// HandleAlert processes one validated alert end to end. The returned error
// carries diagnostic detail for the caller's log line; every failure has
// already been reported to the operator channel by the time it returns.
func (e *Engine) HandleAlert(ctx context.Context, alert signal.Alert) (Outcome, error) {
	classified, err := e.classifier.Classify(ctx, alert)
	e.bus.PublishAlertReceived(classified.StrategyName, classified.Symbol, classified.Direction, classified.Tier)

	if err != nil {
		if errors.Is(err, signal.ErrInvalidDirection) {
			e.logger.Warn("Alert rejected",
				"strategy", alert.StrategyName, "symbol", alert.Symbol, "direction", alert.Direction)
			return OutcomeRejected, err
		}
		return OutcomeFailed, err
	}

	st, err := e.store.GetMacroState(ctx)
	if err != nil {
		e.logger.Error("Failed to load macro state", "strategy", alert.StrategyName, "error", err)
		e.notify.SendError("Macro state unavailable", err.Error())
		e.bus.PublishError("engine", "macro state read failed", err)
		return OutcomeFailed, err
	}

	if st.ManualOverride {
		e.logger.Info("Alert dropped while paused",
			"strategy", alert.StrategyName, "symbol", alert.Symbol, "tier", classified.Tier)
		e.notify.SendFiltered(alert.Symbol, alert.StrategyName, "manual override active")
		return OutcomePaused, nil
	}

	if classified.Tier == database.TierStateSetting {
		return e.applyStateSetting(ctx, classified)
	}
	return e.dispatchTactical(ctx, classified, st)
}

func (e *Engine) applyStateSetting(ctx context.Context, classified *signal.Classified) (Outcome, error) {
	st, err := e.machine.Apply(ctx, *classified.Macro)
	if err != nil {
		e.logger.Error("Macro state transition failed",
			"signal", classified.Macro.Name, "error", err)
		e.notify.SendError("State transition failed",
			"signal "+classified.Macro.Name+": "+err.Error())
		e.bus.PublishError("engine", "state transition failed", err)
		return OutcomeFailed, err
	}

	e.bus.PublishStateChanged(st.MarketState, classified.Macro.Name, st.Leverage)
	return OutcomeStateApplied, nil
}

func (e *Engine) dispatchTactical(ctx context.Context, classified *signal.Classified, st *database.MacroState) (Outcome, error) {
	ok, reason := risk.FilterDirection(st.MarketState, classified.Direction)
	if !ok {
		e.logger.Info("Tactical signal filtered",
			"strategy", classified.StrategyName, "symbol", classified.Symbol, "reason", reason)
		e.notify.SendFiltered(classified.Symbol, classified.StrategyName, reason)
		e.bus.PublishSignalFiltered(classified.StrategyName, classified.Symbol, reason)
		return OutcomeFiltered, nil
	}

	sizeUSD := e.sizer.OrderSizeUSD(st.MacroCoefficient, classified.Symbol, classified.StrategyName)
	order := execution.Order{
		Symbol:       classified.Symbol,
		Direction:    classified.Direction,
		StrategyName: classified.StrategyName,
		EntryPrice:   classified.Price,
		SizeUSD:      sizeUSD,
		Leverage:     st.Leverage,
	}
	if err := e.router.Dispatch(ctx, order); err != nil {
		// Dispatch already notified the operator; no retry.
		return OutcomeFailed, err
	}

	e.bus.PublishTradeRecorded(classified.Symbol, classified.Direction, sizeUSD, e.router.PaperTrading())
	return OutcomeTraded, nil
}
