package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"macro-trading-bot/internal/logging"
)

// TelegramListener long-polls the Telegram getUpdates API and feeds incoming
// messages to the command handler. Polling uses its own HTTP client with a
// timeout slightly above the long-poll window.
type TelegramListener struct {
	botToken string
	handler  *Handler
	client   *http.Client
	logger   *logging.Logger
	offset   int64
}

const longPollSeconds = 30

// NewTelegramListener creates a control channel listener
func NewTelegramListener(botToken string, handler *Handler, logger *logging.Logger) *TelegramListener {
	return &TelegramListener{
		botToken: botToken,
		handler:  handler,
		client:   &http.Client{Timeout: (longPollSeconds + 10) * time.Second},
		logger:   logger.WithComponent("telegram-listener"),
	}
}

type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

type telegramUpdatesResponse struct {
	OK     bool             `json:"ok"`
	Result []telegramUpdate `json:"result"`
}

// Run polls until ctx is done. Poll failures back off and retry; the control
// channel is supervision, not the hot path.
func (l *TelegramListener) Run(ctx context.Context) {
	l.logger.Info("Telegram control listener started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Telegram control listener stopped")
			return
		default:
		}

		updates, err := l.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			l.logger.Error("Telegram poll failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			l.offset = update.UpdateID + 1
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
			l.handler.HandleMessage(ctx, chatID, update.Message.Text)
		}
	}
}

func (l *TelegramListener) poll(ctx context.Context) ([]telegramUpdate, error) {
	params := url.Values{}
	params.Set("timeout", strconv.Itoa(longPollSeconds))
	params.Set("allowed_updates", `["message"]`)
	if l.offset > 0 {
		params.Set("offset", strconv.FormatInt(l.offset, 10))
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/getUpdates?%s", l.botToken, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	var result telegramUpdatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode updates: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram API rejected getUpdates")
	}
	return result.Result, nil
}
