package execution

import (
	"context"
	"fmt"

	"macro-trading-bot/internal/database"
	"macro-trading-bot/internal/logging"

	"github.com/google/uuid"
)

// ExchangeClient is the narrow view of the live execution collaborator
type ExchangeClient interface {
	SubmitOrder(ctx context.Context, pair string, sizeUSD float64, leverage int) (string, error)
}

// TradeStore persists trade records
type TradeStore interface {
	CreateTrade(ctx context.Context, trade *database.TradeRecord) error
}

// Notifier reports execution outcomes to the operator channel
type Notifier interface {
	SendTradeRecorded(trade *database.TradeRecord)
	SendExecutionFailure(symbol, direction, reason string)
}

// Order is a sized, gate-approved tactical signal ready for dispatch
type Order struct {
	Symbol       string
	Direction    string
	StrategyName string
	EntryPrice   float64
	SizeUSD      float64
	Leverage     int
}

// Router dispatches sized orders to the paper ledger or the live exchange
// collaborator. The mode is fixed at process start. Orders carry no
// idempotency key, so a retried webhook delivery produces a duplicate trade.
type Router struct {
	paper    bool
	repo     TradeStore
	exchange ExchangeClient
	notify   Notifier
	logger   *logging.Logger
}

// NewRouter creates an execution router
func NewRouter(paper bool, repo TradeStore, exchange ExchangeClient, notify Notifier, logger *logging.Logger) *Router {
	return &Router{
		paper:    paper,
		repo:     repo,
		exchange: exchange,
		notify:   notify,
		logger:   logger.WithComponent("execution"),
	}
}

// PaperTrading reports the configured mode
func (r *Router) PaperTrading() bool {
	return r.paper
}

// Dispatch routes an order according to the configured mode. Failures are
// reported to the operator and never retried; a human decides whether to
// resubmit.
func (r *Router) Dispatch(ctx context.Context, order Order) error {
	if r.paper {
		return r.dispatchPaper(ctx, order)
	}
	return r.dispatchLive(ctx, order)
}

func (r *Router) dispatchPaper(ctx context.Context, order Order) error {
	trade := r.newRecord(order, true, nil)
	if err := r.repo.CreateTrade(ctx, trade); err != nil {
		r.logger.Error("Failed to record paper trade", "symbol", order.Symbol, "error", err)
		r.notify.SendExecutionFailure(order.Symbol, order.Direction, fmt.Sprintf("paper ledger write failed: %v", err))
		return err
	}

	r.logger.Info("Paper trade recorded",
		"symbol", order.Symbol, "direction", order.Direction, "size_usd", order.SizeUSD)
	r.notify.SendTradeRecorded(trade)
	return nil
}

func (r *Router) dispatchLive(ctx context.Context, order Order) error {
	dealID, err := r.exchange.SubmitOrder(ctx, order.Symbol, order.SizeUSD, order.Leverage)
	if err != nil {
		r.logger.Error("Live order rejected",
			"symbol", order.Symbol, "direction", order.Direction, "error", err)
		r.notify.SendExecutionFailure(order.Symbol, order.Direction, err.Error())
		return err
	}

	trade := r.newRecord(order, false, &dealID)
	if err := r.repo.CreateTrade(ctx, trade); err != nil {
		// The order is already live; the record failure is an audit gap, not
		// a reason to unwind the position.
		r.logger.Error("Failed to record live trade", "symbol", order.Symbol, "deal_id", dealID, "error", err)
		r.notify.SendExecutionFailure(order.Symbol, order.Direction, fmt.Sprintf("trade record write failed after fill (deal %s): %v", dealID, err))
		return err
	}

	r.logger.Info("Live trade executed",
		"symbol", order.Symbol, "direction", order.Direction, "size_usd", order.SizeUSD, "deal_id", dealID)
	r.notify.SendTradeRecorded(trade)
	return nil
}

func (r *Router) newRecord(order Order, paper bool, dealID *string) *database.TradeRecord {
	return &database.TradeRecord{
		ID:              uuid.NewString(),
		Symbol:          order.Symbol,
		Direction:       order.Direction,
		EntryPrice:      order.EntryPrice,
		PositionSizeUSD: order.SizeUSD,
		Leverage:        order.Leverage,
		StrategyName:    order.StrategyName,
		Paper:           paper,
		ExternalDealID:  dealID,
	}
}
