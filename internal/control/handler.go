package control

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"macro-trading-bot/internal/database"
	"macro-trading-bot/internal/events"
	"macro-trading-bot/internal/logging"
)

// StateStore reads the shared macro state for status reports
type StateStore interface {
	GetMacroState(ctx context.Context) (*database.MacroState, error)
}

// TradeCounter reports recorded trade counts per mode
type TradeCounter interface {
	CountTrades(ctx context.Context, paper bool) (int64, error)
}

// OverrideGate toggles the manual override flag
type OverrideGate interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// Replier sends a command reply back to a chat
type Replier interface {
	SendText(chatID, text string) error
}

// Config holds control channel configuration
type Config struct {
	OperatorChatID  string
	PanicConfirmTTL time.Duration
	PaperTrading    bool
}

// Handler executes operator commands. Only the configured operator chat is
// authorized; messages from any other chat are logged and dropped without a
// reply.
type Handler struct {
	cfg    Config
	states StateStore
	trades TradeCounter
	gate   OverrideGate
	panics ConfirmStore
	reply  Replier
	bus    *events.EventBus
	logger *logging.Logger
	now    func() time.Time
}

// NewHandler creates a control command handler
func NewHandler(cfg Config, states StateStore, trades TradeCounter, gate OverrideGate, panics ConfirmStore, reply Replier, bus *events.EventBus, logger *logging.Logger) *Handler {
	if cfg.PanicConfirmTTL <= 0 {
		cfg.PanicConfirmTTL = 30 * time.Second
	}
	return &Handler{
		cfg:    cfg,
		states: states,
		trades: trades,
		gate:   gate,
		panics: panics,
		reply:  reply,
		bus:    bus,
		logger: logger.WithComponent("control"),
		now:    time.Now,
	}
}

// HandleMessage processes one chat message. Replies go back to the sending
// chat; a reply failure is logged and otherwise ignored.
func (h *Handler) HandleMessage(ctx context.Context, chatID, text string) {
	if chatID != h.cfg.OperatorChatID {
		h.logger.Warn("Command from unauthorized chat", "chat_id", chatID)
		return
	}

	cmd, err := ParseCommand(text)
	if err != nil {
		h.send(chatID, "Unknown command. Available: /status /pause /resume /panic /confirm_panic")
		return
	}

	h.logger.Info("Operator command", "command", string(cmd))

	switch cmd {
	case CmdStatus:
		h.send(chatID, h.statusReport(ctx))
	case CmdPause:
		h.setPaused(ctx, chatID, true)
	case CmdResume:
		h.setPaused(ctx, chatID, false)
	case CmdPanic:
		h.armPanic(ctx, chatID)
	case CmdConfirmPanic:
		h.confirmPanic(ctx, chatID)
	}
}

func (h *Handler) setPaused(ctx context.Context, chatID string, paused bool) {
	var err error
	if paused {
		err = h.gate.Pause(ctx)
	} else {
		err = h.gate.Resume(ctx)
	}
	if err != nil {
		h.send(chatID, fmt.Sprintf("⚠️ Failed to update override: %v", err))
		return
	}

	h.bus.PublishOverrideToggled(paused)
	if paused {
		h.send(chatID, "⏸ Trading paused. All alerts will be dropped until /resume.")
	} else {
		h.send(chatID, "▶️ Trading resumed.")
	}
}

func (h *Handler) armPanic(ctx context.Context, chatID string) {
	if err := h.panics.Arm(ctx, h.cfg.PanicConfirmTTL); err != nil {
		h.logger.Error("Failed to arm panic confirmation", "error", err)
		h.send(chatID, fmt.Sprintf("⚠️ Failed to arm panic: %v", err))
		return
	}
	h.send(chatID, fmt.Sprintf("🚨 Panic armed. Send /confirm_panic within %.0fs to pause trading.",
		h.cfg.PanicConfirmTTL.Seconds()))
}

func (h *Handler) confirmPanic(ctx context.Context, chatID string) {
	pending, err := h.panics.Confirm(ctx)
	if err != nil {
		h.logger.Error("Failed to read panic confirmation", "error", err)
		h.send(chatID, fmt.Sprintf("⚠️ Failed to confirm panic: %v", err))
		return
	}
	if !pending {
		h.send(chatID, "No pending panic request. Send /panic first.")
		return
	}

	if err := h.gate.Pause(ctx); err != nil {
		h.send(chatID, fmt.Sprintf("⚠️ Panic confirmed but pause failed: %v", err))
		return
	}
	h.bus.PublishOverrideToggled(true)
	h.logger.Warn("Panic executed, trading paused")
	h.send(chatID, "🚨 Panic executed. Trading is paused; review positions manually and /resume when ready.")
}

func (h *Handler) statusReport(ctx context.Context) string {
	st, err := h.states.GetMacroState(ctx)
	if err != nil {
		return fmt.Sprintf("⚠️ Status unavailable: %v", err)
	}

	var b strings.Builder
	mode := "LIVE"
	if h.cfg.PaperTrading {
		mode = "PAPER"
	}
	fmt.Fprintf(&b, "*Macro Trading Bot* (%s)\n\n", mode)
	fmt.Fprintf(&b, "Market: %s | Leverage: %dx\n", st.MarketState, st.Leverage)

	assets := make([]string, 0, len(st.AssetStates))
	for asset := range st.AssetStates {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		fmt.Fprintf(&b, "%s: %s\n", asset, st.AssetStates[asset])
	}

	if st.ManualOverride {
		b.WriteString("Override: PAUSED\n")
	} else {
		b.WriteString("Override: off\n")
	}

	if st.LastMajorSignalName != nil && st.LastMajorSignalAt != nil {
		age := h.now().Sub(*st.LastMajorSignalAt)
		fmt.Fprintf(&b, "Last major signal: %s (%.1fh ago)\n", *st.LastMajorSignalName, age.Hours())
	} else {
		b.WriteString("Last major signal: none\n")
	}

	if paper, err := h.trades.CountTrades(ctx, true); err == nil {
		fmt.Fprintf(&b, "Paper trades: %d\n", paper)
	}
	if live, err := h.trades.CountTrades(ctx, false); err == nil {
		fmt.Fprintf(&b, "Live trades: %d\n", live)
	}
	return b.String()
}

func (h *Handler) send(chatID, text string) {
	if err := h.reply.SendText(chatID, text); err != nil {
		h.logger.Error("Failed to send command reply", "chat_id", chatID, "error", err)
	}
}
