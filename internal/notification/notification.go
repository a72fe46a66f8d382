package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"macro-trading-bot/internal/database"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifyStateChange NotificationType = "state_change"
	NotifySweepReset  NotificationType = "sweep_reset"
	NotifyFiltered    NotificationType = "filtered"
	NotifyTrade       NotificationType = "trade"
	NotifyError       NotificationType = "error"
	NotifyInfo        NotificationType = "info"
)

// Notification represents a notification message
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Symbol    string
	Timestamp time.Time
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager fans a notification out to every enabled provider. Notification is
// best-effort: a provider failure is returned to the caller for logging but
// must never fail the decision that produced it.
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates a new notification manager
func NewManager() *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   true,
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				log.Printf("Notification via %s failed: %v", n.Name(), err)
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendStateChange reports a macro state transition
func (m *Manager) SendStateChange(marketState, signalName string) {
	emoji := "🟡"
	switch marketState {
	case database.MarketBull:
		emoji = "🟢"
	case database.MarketBear:
		emoji = "🔴"
	}
	m.Send(&Notification{
		Type:      NotifyStateChange,
		Title:     fmt.Sprintf("%s Macro state: %s", emoji, marketState),
		Message:   fmt.Sprintf("Triggered by %s", signalName),
		Timestamp: time.Now(),
	})
}

// SendSweepReset reports an automatic expiry reset to NEUTRAL
func (m *Manager) SendSweepReset(previousState string, elapsed time.Duration) {
	m.Send(&Notification{
		Type:      NotifySweepReset,
		Title:     "⏱ Macro state expired",
		Message:   fmt.Sprintf("%s reset to NEUTRAL after %.0fh without a major signal", previousState, elapsed.Hours()),
		Timestamp: time.Now(),
	})
}

// SendFiltered reports a tactical signal dropped by policy. This is a normal
// outcome, notified for auditability.
func (m *Manager) SendFiltered(symbol, strategyName, reason string) {
	m.Send(&Notification{
		Type:      NotifyFiltered,
		Title:     fmt.Sprintf("⛔ Signal filtered: %s", symbol),
		Message:   fmt.Sprintf("%s\nStrategy: %s", reason, strategyName),
		Symbol:    symbol,
		Timestamp: time.Now(),
	})
}

// SendTradeRecorded reports a recorded paper or live trade
func (m *Manager) SendTradeRecorded(trade *database.TradeRecord) {
	mode := "LIVE"
	if trade.Paper {
		mode = "PAPER"
	}
	message := fmt.Sprintf("%s %s @ %.4f\nSize: $%.2f | Leverage: %dx\nStrategy: %s",
		trade.Direction, trade.Symbol, trade.EntryPrice, trade.PositionSizeUSD, trade.Leverage, trade.StrategyName)
	if trade.ExternalDealID != nil {
		message += fmt.Sprintf("\nDeal: %s", *trade.ExternalDealID)
	}
	m.Send(&Notification{
		Type:      NotifyTrade,
		Title:     fmt.Sprintf("📈 %s trade: %s", mode, trade.Symbol),
		Message:   message,
		Symbol:    trade.Symbol,
		Timestamp: time.Now(),
	})
}

// SendExecutionFailure reports a failed order or trade record
func (m *Manager) SendExecutionFailure(symbol, direction, reason string) {
	m.Send(&Notification{
		Type:      NotifyError,
		Title:     fmt.Sprintf("⚠️ Execution failed: %s", symbol),
		Message:   fmt.Sprintf("%s %s\nReason: %s", direction, symbol, reason),
		Symbol:    symbol,
		Timestamp: time.Now(),
	})
}

// SendError sends a generic error notification
func (m *Manager) SendError(title, message string) {
	m.Send(&Notification{
		Type:      NotifyError,
		Title:     fmt.Sprintf("⚠️ %s", title),
		Message:   message,
		Timestamp: time.Now(),
	})
}

// SendInfo sends a plain informational notification
func (m *Manager) SendInfo(title, message string) {
	m.Send(&Notification{
		Type:      NotifyInfo,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(notification *Notification) error {
	if !t.enabled {
		return nil
	}
	return t.SendText(t.chatID, fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message))
}

// SendText sends a raw Markdown message to a chat. Used by the control
// handler for command replies to arbitrary (possibly unauthorized) chats.
func (t *TelegramNotifier) SendText(chatID, text string) error {
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string
	Enabled    bool
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(notification *Notification) error {
	if !d.enabled {
		return nil
	}

	color := 0x00FF00
	if notification.Type == NotifyError {
		color = 0xFF0000
	} else if notification.Type == NotifyFiltered {
		color = 0xFFAA00
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       color,
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}
	if notification.Symbol != "" {
		embed["fields"] = []map[string]interface{}{
			{"name": "Symbol", "value": notification.Symbol, "inline": true},
		}
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}
