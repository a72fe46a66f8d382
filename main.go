package main

import (
	"context"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"macro-trading-bot/config"
	"macro-trading-bot/internal/api"
	"macro-trading-bot/internal/bot"
	"macro-trading-bot/internal/control"
	"macro-trading-bot/internal/database"
	"macro-trading-bot/internal/events"
	"macro-trading-bot/internal/execution"
	"macro-trading-bot/internal/logging"
	"macro-trading-bot/internal/notification"
	"macro-trading-bot/internal/risk"
	"macro-trading-bot/internal/signal"
	"macro-trading-bot/internal/state"
	"macro-trading-bot/internal/vault"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	// Initialize event bus
	eventBus := events.NewEventBus()
	logger.Info("Event bus initialized")

	// Initialize notification manager. An empty manager is a valid no-op sink,
	// so downstream components never check for nil.
	notifyManager := notification.NewManager()
	var telegramNotifier *notification.TelegramNotifier
	if cfg.NotificationConfig.Enabled {
		if cfg.NotificationConfig.Telegram.Enabled {
			telegramNotifier = notification.NewTelegramNotifier(notification.TelegramConfig{
				BotToken: cfg.NotificationConfig.Telegram.BotToken,
				ChatID:   cfg.NotificationConfig.Telegram.ChatID,
				Enabled:  cfg.NotificationConfig.Telegram.Enabled,
			})
			notifyManager.AddNotifier(telegramNotifier)
			logger.Info("Telegram notifications enabled")
		}

		if cfg.NotificationConfig.Discord.Enabled {
			discordNotifier := notification.NewDiscordNotifier(notification.DiscordConfig{
				WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
				Enabled:    cfg.NotificationConfig.Discord.Enabled,
			})
			notifyManager.AddNotifier(discordNotifier)
			logger.Info("Discord notifications enabled")
		}
	}

	// Initialize database
	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	repo := database.NewRepository(db)

	// Apply the configured macro coefficient to the state row at boot
	if st, err := repo.GetMacroState(ctx); err != nil {
		log.Fatalf("Failed to read macro state: %v", err)
	} else if st.MacroCoefficient != cfg.TradingConfig.MacroCoefficient {
		st.MacroCoefficient = cfg.TradingConfig.MacroCoefficient
		if err := repo.UpdateMacroState(ctx, st.Version, st); err != nil {
			logger.Warn("Failed to apply configured macro coefficient", "error", err)
		}
	}

	// Macro state machine and override gate
	machine := state.NewMachine(repo, notifyManager, state.Config{
		BullExpiryHours: cfg.MacroConfig.BullExpiryHours,
		BearExpiryHours: cfg.MacroConfig.BearExpiryHours,
		BullLeverage:    cfg.TradingConfig.BullLeverage,
		BaseLeverage:    cfg.TradingConfig.BaseLeverage,
	}, logger)
	gate := state.NewGate(repo, logger)

	// Position sizer with a fixed confluence coefficient
	sizer := risk.NewSizer(&risk.Config{
		AccountValueUSD:      cfg.TradingConfig.AccountValueUSD,
		BasePositionFraction: cfg.TradingConfig.BasePositionFraction,
	}, risk.FixedResonance{Value: cfg.TradingConfig.ResonanceCoefficient}, logger)

	// Exchange credentials come from Vault when enabled, plain config otherwise
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		log.Fatalf("Failed to create vault client: %v", err)
	}
	if !vaultClient.IsEnabled() {
		vaultClient.SeedCredentials(vault.ExchangeCredentials{
			APIKey:    cfg.ExchangeConfig.APIKey,
			SecretKey: cfg.ExchangeConfig.SecretKey,
		})
	}
	creds, err := vaultClient.GetExchangeCredentials(ctx)
	if err != nil {
		if !cfg.TradingConfig.PaperTrading {
			log.Fatalf("Failed to load exchange credentials: %v", err)
		}
		logger.Warn("Exchange credentials unavailable, paper mode continues", "error", err)
		creds = &vault.ExchangeCredentials{}
	}

	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()
	exchangeClient := execution.NewHTTPExchangeClient(execution.ExchangeConfig{
		BaseURL:   cfg.ExchangeConfig.BaseURL,
		APIKey:    creds.APIKey,
		SecretKey: creds.SecretKey,
		Timeout:   time.Duration(cfg.ExchangeConfig.Timeout) * time.Second,
	}, zlog)

	router := execution.NewRouter(cfg.TradingConfig.PaperTrading, repo, exchangeClient, notifyManager, logger)
	classifier := signal.NewClassifier(cfg.MacroConfig.Signals, repo, logger)
	engine := bot.NewEngine(classifier, repo, machine, sizer, router, notifyManager, eventBus, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Background expiry sweep
	go machine.RunSweeper(runCtx, cfg.MacroConfig.SweepInterval)
	logger.Info("Expiry sweeper started", "interval", cfg.MacroConfig.SweepInterval.String())

	// Panic confirmation store: Redis when available, in-memory otherwise
	var confirmStore control.ConfirmStore
	if cfg.RedisConfig.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable, using in-memory panic store", "error", err)
			confirmStore = control.NewMemoryConfirmStore()
		} else {
			confirmStore = control.NewRedisConfirmStore(redisClient)
			logger.Info("Redis panic confirmation store enabled")
		}
	} else {
		confirmStore = control.NewMemoryConfirmStore()
	}

	// Operator control channel
	if telegramNotifier != nil && cfg.ControlConfig.OperatorChatID != "" {
		handler := control.NewHandler(control.Config{
			OperatorChatID:  cfg.ControlConfig.OperatorChatID,
			PanicConfirmTTL: cfg.ControlConfig.PanicConfirmTTL,
			PaperTrading:    cfg.TradingConfig.PaperTrading,
		}, repo, repo, gate, confirmStore, telegramNotifier, eventBus, logger)
		listener := control.NewTelegramListener(cfg.NotificationConfig.Telegram.BotToken, handler, logger)
		go listener.Run(runCtx)
		logger.Info("Operator control channel enabled", "operator_chat_id", cfg.ControlConfig.OperatorChatID)
	} else {
		logger.Warn("Operator control channel disabled")
	}

	// HTTP server
	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: cfg.ServerConfig.ProductionMode,
		WebhookSecret:  cfg.WebhookConfig.Secret,
		PaperTrading:   cfg.TradingConfig.PaperTrading,
	}, engine, repo, eventBus)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	mode := "LIVE"
	if cfg.TradingConfig.PaperTrading {
		mode = "PAPER"
	}
	logger.Info("Macro trading bot started", "mode", mode, "port", cfg.ServerConfig.Port)
	notifyManager.SendInfo("Bot started", "Macro trading bot is up in "+mode+" mode")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}

	log.Println("Shutdown complete")
}
