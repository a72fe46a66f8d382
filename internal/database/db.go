package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Printf("Successfully connected to PostgreSQL database: %s", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	migrations := []string{
		// Single-row macro state table. The version column drives optimistic
		// concurrency: every write is conditional on the version the writer
		// previously read.
		`CREATE TABLE IF NOT EXISTS macro_state (
			id SMALLINT PRIMARY KEY CHECK (id = 1),
			version BIGINT NOT NULL DEFAULT 1,
			market_state VARCHAR(10) NOT NULL DEFAULT 'NEUTRAL',
			asset_states JSONB NOT NULL DEFAULT '{}',
			leverage INT NOT NULL DEFAULT 1,
			macro_coefficient DECIMAL(10, 4) NOT NULL DEFAULT 1.0,
			manual_override BOOLEAN NOT NULL DEFAULT FALSE,
			last_major_signal_name VARCHAR(100),
			last_major_signal_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Append-only alert audit log. Written for every classified alert,
		// never read back by the engine.
		`CREATE TABLE IF NOT EXISTS alert_log (
			id BIGSERIAL PRIMARY KEY,
			strategy_name VARCHAR(100) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			direction VARCHAR(20) NOT NULL,
			tier VARCHAR(20) NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_log_received_at ON alert_log(received_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_log_strategy ON alert_log(strategy_name)`,

		// Trade records, paper and live. Paper rows have a NULL
		// external_deal_id; live rows carry the exchange identifier.
		`CREATE TABLE IF NOT EXISTS trades (
			id UUID PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			direction VARCHAR(10) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			position_size_usd DECIMAL(20, 2) NOT NULL,
			leverage INT NOT NULL DEFAULT 1,
			strategy_name VARCHAR(100) NOT NULL,
			paper BOOLEAN NOT NULL,
			external_deal_id VARCHAR(100),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_created_at ON trades(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_paper ON trades(paper)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
