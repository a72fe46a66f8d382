package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerConfig       ServerConfig       `json:"server"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	VaultConfig        VaultConfig        `json:"vault"`
	WebhookConfig      WebhookConfig      `json:"webhook"`
	TradingConfig      TradingConfig      `json:"trading"`
	MacroConfig        MacroConfig        `json:"macro"`
	ControlConfig      ControlConfig      `json:"control"`
	ExchangeConfig     ExchangeConfig     `json:"exchange"`
	NotificationConfig NotificationConfig `json:"notification"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	ProductionMode  bool   `json:"production_mode"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for the panic confirmation store
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	SecretPath string `json:"secret_path"` // Path to the exchange credential secret
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// WebhookConfig holds alert ingress configuration
type WebhookConfig struct {
	Secret string `json:"secret"` // Shared secret expected in every alert payload
}

// TradingConfig holds position sizing and execution mode configuration
type TradingConfig struct {
	PaperTrading         bool    `json:"paper_trading"`         // Record trades locally instead of calling the exchange
	AccountValueUSD      float64 `json:"account_value_usd"`     // Total tradable capital
	BasePositionFraction float64 `json:"base_position_fraction"`
	MacroCoefficient     float64 `json:"macro_coefficient"`     // Seed value for the macro_state row
	ResonanceCoefficient float64 `json:"resonance_coefficient"` // Fixed confluence multiplier until a real score exists
	BullLeverage         int     `json:"bull_leverage"`
	BaseLeverage         int     `json:"base_leverage"` // Leverage in BEAR and NEUTRAL
}

// MacroSignal maps a state-setting strategy identifier to the asset and
// direction it encodes.
type MacroSignal struct {
	Name      string `json:"name"`
	Asset     string `json:"asset"`
	Direction string `json:"direction"` // LONG or SHORT
}

// MacroConfig holds macro state machine configuration
type MacroConfig struct {
	BullExpiryHours int           `json:"bull_expiry_hours"`
	BearExpiryHours int           `json:"bear_expiry_hours"`
	SweepInterval   time.Duration `json:"sweep_interval"`
	Signals         []MacroSignal `json:"signals"` // Allowlist of state-setting strategies
}

// ControlConfig holds operator control channel configuration
type ControlConfig struct {
	OperatorChatID  string        `json:"operator_chat_id"` // The single authorized operator
	PanicConfirmTTL time.Duration `json:"panic_confirm_ttl"`
}

// ExchangeConfig holds live execution collaborator configuration
type ExchangeConfig struct {
	BaseURL   string `json:"base_url"`
	APIKey    string `json:"api_key"`    // Overridden by Vault when enabled
	SecretKey string `json:"secret_key"` // Overridden by Vault when enabled
	Timeout   int    `json:"timeout"`    // Seconds
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8088)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("SERVER_PRODUCTION", "true") == "true"
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 30)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", "localhost")
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", 5432)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", "macro_bot")
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", "macro_bot")
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", "localhost:6379")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", 0)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", "http://localhost:8200")
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", "secret/data/macro-bot/exchange")
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", "false") == "true"

	// Webhook config
	cfg.WebhookConfig.Secret = getEnvOrDefault("WEBHOOK_SECRET", cfg.WebhookConfig.Secret)

	// Trading config
	cfg.TradingConfig.PaperTrading = getEnvOrDefault("PAPER_TRADING", "true") == "true"
	cfg.TradingConfig.AccountValueUSD = getEnvFloatOrDefault("ACCOUNT_VALUE_USD", 100000)
	cfg.TradingConfig.BasePositionFraction = getEnvFloatOrDefault("BASE_POSITION_FRACTION", 0.1)
	cfg.TradingConfig.MacroCoefficient = getEnvFloatOrDefault("MACRO_COEFFICIENT", 1.0)
	cfg.TradingConfig.ResonanceCoefficient = getEnvFloatOrDefault("RESONANCE_COEFFICIENT", 0.5)
	cfg.TradingConfig.BullLeverage = getEnvIntOrDefault("BULL_LEVERAGE", 3)
	cfg.TradingConfig.BaseLeverage = getEnvIntOrDefault("BASE_LEVERAGE", 1)

	// Macro config
	cfg.MacroConfig.BullExpiryHours = getEnvIntOrDefault("BULL_EXPIRY_HOURS", 168)
	cfg.MacroConfig.BearExpiryHours = getEnvIntOrDefault("BEAR_EXPIRY_HOURS", 72)
	cfg.MacroConfig.SweepInterval = getEnvDurationOrDefault("SWEEP_INTERVAL", time.Hour)
	if v := os.Getenv("MACRO_SIGNALS"); v != "" {
		if signals, err := parseMacroSignals(v); err == nil {
			cfg.MacroConfig.Signals = signals
		}
	}

	// Control config
	cfg.ControlConfig.OperatorChatID = getEnvOrDefault("OPERATOR_CHAT_ID", cfg.ControlConfig.OperatorChatID)
	cfg.ControlConfig.PanicConfirmTTL = getEnvDurationOrDefault("PANIC_CONFIRM_TTL", 30*time.Second)

	// Exchange config
	cfg.ExchangeConfig.BaseURL = getEnvOrDefault("EXCHANGE_BASE_URL", cfg.ExchangeConfig.BaseURL)
	cfg.ExchangeConfig.APIKey = getEnvOrDefault("EXCHANGE_API_KEY", cfg.ExchangeConfig.APIKey)
	cfg.ExchangeConfig.SecretKey = getEnvOrDefault("EXCHANGE_SECRET_KEY", cfg.ExchangeConfig.SecretKey)
	cfg.ExchangeConfig.Timeout = getEnvIntOrDefault("EXCHANGE_TIMEOUT", 10)

	// Notification config
	cfg.NotificationConfig.Enabled = getEnvOrDefault("NOTIFICATIONS_ENABLED", "true") == "true"
	cfg.NotificationConfig.Telegram.Enabled = getEnvOrDefault("TELEGRAM_ENABLED", "false") == "true"
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.Enabled = getEnvOrDefault("DISCORD_ENABLED", "false") == "true"
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"
}

func applyDefaults(cfg *Config) {
	if len(cfg.MacroConfig.Signals) == 0 {
		cfg.MacroConfig.Signals = DefaultMacroSignals()
	}
}

// DefaultMacroSignals returns the built-in allowlist of state-setting
// strategies: one daily-timeframe breakout identifier per tracked asset per
// direction.
func DefaultMacroSignals() []MacroSignal {
	return []MacroSignal{
		{Name: "trend-btc-1d-long", Asset: "BTC", Direction: "LONG"},
		{Name: "trend-btc-1d-short", Asset: "BTC", Direction: "SHORT"},
		{Name: "trend-eth-1d-long", Asset: "ETH", Direction: "LONG"},
		{Name: "trend-eth-1d-short", Asset: "ETH", Direction: "SHORT"},
	}
}

// parseMacroSignals parses the MACRO_SIGNALS env format:
// "name=ASSET/DIRECTION,name=ASSET/DIRECTION,..."
func parseMacroSignals(value string) ([]MacroSignal, error) {
	var signals []MacroSignal
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, target, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid macro signal entry: %q", part)
		}
		asset, direction, ok := strings.Cut(target, "/")
		if !ok {
			return nil, fmt.Errorf("invalid macro signal target: %q", target)
		}
		signals = append(signals, MacroSignal{
			Name:      strings.TrimSpace(name),
			Asset:     strings.ToUpper(strings.TrimSpace(asset)),
			Direction: strings.ToUpper(strings.TrimSpace(direction)),
		})
	}
	if len(signals) == 0 {
		return nil, fmt.Errorf("no macro signals in %q", value)
	}
	return signals, nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Config{
		ServerConfig: ServerConfig{
			Port:            8088,
			Host:            "0.0.0.0",
			ProductionMode:  true,
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "macro_bot",
			Password: "macro_bot_password",
			Database: "macro_bot",
			SSLMode:  "disable",
		},
		WebhookConfig: WebhookConfig{
			Secret: "change_me",
		},
		TradingConfig: TradingConfig{
			PaperTrading:         true,
			AccountValueUSD:      100000,
			BasePositionFraction: 0.1,
			MacroCoefficient:     1.0,
			ResonanceCoefficient: 0.5,
			BullLeverage:         3,
			BaseLeverage:         1,
		},
		MacroConfig: MacroConfig{
			BullExpiryHours: 168,
			BearExpiryHours: 72,
			SweepInterval:   time.Hour,
			Signals:         DefaultMacroSignals(),
		},
		ControlConfig: ControlConfig{
			OperatorChatID:  "",
			PanicConfirmTTL: 30 * time.Second,
		},
		NotificationConfig: NotificationConfig{
			Enabled: true,
			Telegram: TelegramConfig{
				Enabled:  false,
				BotToken: "",
				ChatID:   "",
			},
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
