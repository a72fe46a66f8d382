package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrVersionConflict is returned when a conditional update of the macro state
// row finds a version other than the one the caller read.
var ErrVersionConflict = errors.New("macro state version conflict")

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// MACRO STATE
// ============================================================================

// GetMacroState reads the singleton macro state row, seeding a NEUTRAL row on
// first access.
func (r *Repository) GetMacroState(ctx context.Context) (*MacroState, error) {
	state, err := r.readMacroState(ctx)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Seed the row. ON CONFLICT covers a concurrent seeder.
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO macro_state (id) VALUES (1)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to seed macro state: %w", err)
	}
	return r.readMacroState(ctx)
}

func (r *Repository) readMacroState(ctx context.Context) (*MacroState, error) {
	query := `
		SELECT version, market_state, asset_states, leverage, macro_coefficient,
		       manual_override, last_major_signal_name, last_major_signal_at, updated_at
		FROM macro_state
		WHERE id = 1
	`
	state := &MacroState{}
	var assetStates []byte
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&state.Version, &state.MarketState, &assetStates, &state.Leverage,
		&state.MacroCoefficient, &state.ManualOverride,
		&state.LastMajorSignalName, &state.LastMajorSignalAt, &state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	state.AssetStates = make(map[string]string)
	if len(assetStates) > 0 {
		if err := json.Unmarshal(assetStates, &state.AssetStates); err != nil {
			return nil, fmt.Errorf("failed to decode asset states: %w", err)
		}
	}
	return state, nil
}

// UpdateMacroState persists the full state patch as one atomic conditional
// update keyed on expectedVersion. Returns ErrVersionConflict when another
// writer got there first; the caller re-reads and retries or fails loudly.
func (r *Repository) UpdateMacroState(ctx context.Context, expectedVersion int64, state *MacroState) error {
	assetStates, err := json.Marshal(state.AssetStates)
	if err != nil {
		return fmt.Errorf("failed to encode asset states: %w", err)
	}

	query := `
		UPDATE macro_state
		SET version = version + 1,
		    market_state = $2,
		    asset_states = $3,
		    leverage = $4,
		    macro_coefficient = $5,
		    manual_override = $6,
		    last_major_signal_name = $7,
		    last_major_signal_at = $8,
		    updated_at = NOW()
		WHERE id = 1 AND version = $1
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		expectedVersion, state.MarketState, assetStates, state.Leverage,
		state.MacroCoefficient, state.ManualOverride,
		state.LastMajorSignalName, state.LastMajorSignalAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	state.Version = expectedVersion + 1
	return nil
}

// ============================================================================
// ALERT LOG
// ============================================================================

// InsertAlertLog appends a classified alert to the audit log
func (r *Repository) InsertAlertLog(ctx context.Context, entry *AlertLogEntry) error {
	query := `
		INSERT INTO alert_log (strategy_name, symbol, direction, tier, received_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		entry.StrategyName, entry.Symbol, entry.Direction, entry.Tier, entry.ReceivedAt,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// ============================================================================
// TRADES
// ============================================================================

// CreateTrade inserts a new trade record
func (r *Repository) CreateTrade(ctx context.Context, trade *TradeRecord) error {
	query := `
		INSERT INTO trades (id, symbol, direction, entry_price, position_size_usd, leverage, strategy_name, paper, external_deal_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		trade.ID, trade.Symbol, trade.Direction, trade.EntryPrice, trade.PositionSizeUSD,
		trade.Leverage, trade.StrategyName, trade.Paper, trade.ExternalDealID,
	).Scan(&trade.CreatedAt)
}

// CountTrades returns the number of recorded trades for one mode
func (r *Repository) CountTrades(ctx context.Context, paper bool) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades WHERE paper = $1`, paper).Scan(&count)
	return count, err
}

// GetRecentTrades retrieves the most recent trade records
func (r *Repository) GetRecentTrades(ctx context.Context, limit int) ([]*TradeRecord, error) {
	query := `
		SELECT id, symbol, direction, entry_price, position_size_usd, leverage,
		       strategy_name, paper, external_deal_id, created_at
		FROM trades
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*TradeRecord
	for rows.Next() {
		trade := &TradeRecord{}
		err := rows.Scan(
			&trade.ID, &trade.Symbol, &trade.Direction, &trade.EntryPrice,
			&trade.PositionSizeUSD, &trade.Leverage, &trade.StrategyName,
			&trade.Paper, &trade.ExternalDealID, &trade.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}
