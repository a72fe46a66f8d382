package database

import (
	"time"
)

// Market state constants
const (
	MarketNeutral = "NEUTRAL"
	MarketBull    = "BULL"
	MarketBear    = "BEAR"
)

// Per-asset state and signal direction constants
const (
	AssetNone      = "NONE"
	DirectionLong  = "LONG"
	DirectionShort = "SHORT"
)

// Signal tier constants
const (
	TierStateSetting = "state-setting"
	TierTactical     = "tactical"
)

// MacroState is the single shared market-trend row. MarketState is derived
// from AssetStates on every transition, never stored independently of them.
type MacroState struct {
	Version             int64             `json:"version"`
	MarketState         string            `json:"market_state"`
	AssetStates         map[string]string `json:"asset_states"`
	Leverage            int               `json:"leverage"`
	MacroCoefficient    float64           `json:"macro_coefficient"`
	ManualOverride      bool              `json:"manual_override"`
	LastMajorSignalName *string           `json:"last_major_signal_name,omitempty"`
	LastMajorSignalAt   *time.Time        `json:"last_major_signal_at,omitempty"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// AlertLogEntry is an append-only record of a classified alert
type AlertLogEntry struct {
	ID           int64     `json:"id"`
	StrategyName string    `json:"strategy_name"`
	Symbol       string    `json:"symbol"`
	Direction    string    `json:"direction"`
	Tier         string    `json:"tier"`
	ReceivedAt   time.Time `json:"received_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// TradeRecord represents a recorded order, paper or live. Live records carry
// the exchange-assigned deal identifier; paper records leave it NULL.
type TradeRecord struct {
	ID              string    `json:"id"`
	Symbol          string    `json:"symbol"`
	Direction       string    `json:"direction"`
	EntryPrice      float64   `json:"entry_price"`
	PositionSizeUSD float64   `json:"position_size_usd"`
	Leverage        int       `json:"leverage"`
	StrategyName    string    `json:"strategy_name"`
	Paper           bool      `json:"paper"`
	ExternalDealID  *string   `json:"external_deal_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
