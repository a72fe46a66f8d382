package vault

import (
	"context"
	"fmt"
	"sync"

	"macro-trading-bot/config"

	"github.com/hashicorp/vault/api"
)

// ExchangeCredentials holds the exchange API key pair stored in Vault
type ExchangeCredentials struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
}

// Client wraps the HashiCorp Vault client. When Vault is disabled the client
// serves credentials from its local cache only, seeded from plain config.
type Client struct {
	client *api.Client
	config config.VaultConfig
	mu     sync.RWMutex
	cached *ExchangeCredentials
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client: client,
		config: cfg,
	}, nil
}

// SeedCredentials primes the local cache, used when Vault is disabled and the
// credentials come from plain configuration.
func (c *Client) SeedCredentials(creds ExchangeCredentials) {
	c.mu.Lock()
	c.cached = &creds
	c.mu.Unlock()
}

// GetExchangeCredentials retrieves the exchange API key pair, reading from
// Vault on first access and serving the cache afterwards.
func (c *Client) GetExchangeCredentials(ctx context.Context) (*ExchangeCredentials, error) {
	c.mu.RLock()
	if c.cached != nil {
		cached := c.cached
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("exchange credentials not found and vault is disabled")
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.config.SecretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read exchange credentials from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("exchange credentials not found")
	}

	// KV v2 nests the payload under "data"
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		data = secret.Data
	}

	creds := &ExchangeCredentials{
		APIKey:    getString(data, "api_key"),
		SecretKey: getString(data, "secret_key"),
	}
	if creds.APIKey == "" || creds.SecretKey == "" {
		return nil, fmt.Errorf("invalid secret format")
	}

	c.mu.Lock()
	c.cached = creds
	c.mu.Unlock()

	return creds, nil
}

// ClearCache clears the cached credentials, forcing a re-read on next access
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
