package execution

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ExchangeConfig holds live execution collaborator configuration
type ExchangeConfig struct {
	BaseURL   string
	APIKey    string
	SecretKey string
	Timeout   time.Duration
}

// HTTPExchangeClient submits orders to the exchange-execution API over HTTP.
// Requests are signed with an HMAC-SHA256 of the body.
type HTTPExchangeClient struct {
	config ExchangeConfig
	client *http.Client
	logger zerolog.Logger
}

// NewHTTPExchangeClient creates an exchange client with a bounded timeout
func NewHTTPExchangeClient(config ExchangeConfig, logger zerolog.Logger) *HTTPExchangeClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPExchangeClient{
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "exchange").Logger(),
	}
}

type submitOrderRequest struct {
	Pair     string  `json:"pair"`
	SizeUSD  float64 `json:"size_usd"`
	Leverage int     `json:"leverage"`
}

type submitOrderResponse struct {
	Accepted bool   `json:"accepted"`
	DealID   string `json:"deal_id"`
	Reason   string `json:"reason"`
}

// SubmitOrder places a market order and returns the exchange deal identifier.
// A timeout, transport error, or rejection is returned as an error; the
// caller never retries.
func (c *HTTPExchangeClient) SubmitOrder(ctx context.Context, pair string, sizeUSD float64, leverage int) (string, error) {
	body, err := json.Marshal(submitOrderRequest{
		Pair:     pair,
		SizeUSD:  sizeUSD,
		Leverage: leverage,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.config.APIKey)
	req.Header.Set("X-SIGNATURE", c.sign(body))

	c.logger.Debug().Str("pair", pair).Float64("size_usd", sizeUSD).Int("leverage", leverage).Msg("submitting order")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("order submission failed: %w", err)
	}
	defer resp.Body.Close()

	var result submitOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode order response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || !result.Accepted {
		reason := result.Reason
		if reason == "" {
			reason = fmt.Sprintf("exchange returned status %d", resp.StatusCode)
		}
		c.logger.Warn().Str("pair", pair).Str("reason", reason).Msg("order rejected")
		return "", fmt.Errorf("order rejected: %s", reason)
	}

	c.logger.Info().Str("pair", pair).Str("deal_id", result.DealID).Msg("order accepted")
	return result.DealID, nil
}

func (c *HTTPExchangeClient) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.config.SecretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
