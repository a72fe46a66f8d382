package risk

import (
	"fmt"
	"math"

	"macro-trading-bot/internal/database"
	"macro-trading-bot/internal/logging"
)

// ResonanceProvider supplies the multi-signal confluence multiplier for a
// tactical alert. No real confluence calculation exists yet; the provider is
// an injection point so one can be added without touching the sizing formula.
type ResonanceProvider interface {
	Coefficient(symbol, strategyName string) float64
}

// FixedResonance returns a constant coefficient for every alert
type FixedResonance struct {
	Value float64
}

func (f FixedResonance) Coefficient(symbol, strategyName string) float64 {
	return f.Value
}

// Config holds position sizing configuration
type Config struct {
	AccountValueUSD      float64 // Total tradable capital
	BasePositionFraction float64 // Fraction of capital per tactical signal
}

// Sizer computes order sizes for tactical signals and filters them against
// the macro trend direction.
type Sizer struct {
	config    *Config
	resonance ResonanceProvider
	logger    *logging.Logger
}

// NewSizer creates a position sizer
func NewSizer(config *Config, resonance ResonanceProvider, logger *logging.Logger) *Sizer {
	return &Sizer{
		config:    config,
		resonance: resonance,
		logger:    logger.WithComponent("sizer"),
	}
}

// MarketDirection maps a market state to the only tradable direction, or ""
// when any direction is allowed (NEUTRAL).
func MarketDirection(marketState string) string {
	switch marketState {
	case database.MarketBull:
		return database.DirectionLong
	case database.MarketBear:
		return database.DirectionShort
	default:
		return ""
	}
}

// FilterDirection checks a tactical alert's direction against the macro
// trend. A mismatch is an expected, frequent outcome, not an error; the
// returned reason goes to the operator channel.
func FilterDirection(marketState, direction string) (bool, string) {
	marketDirection := MarketDirection(marketState)
	if marketDirection == "" || marketDirection == direction {
		return true, ""
	}
	return false, fmt.Sprintf("%s signal rejected while market is %s", direction, marketState)
}

// OrderSizeUSD computes the order size for a tactical signal:
// account value * base fraction * macro coefficient * resonance coefficient,
// rounded to 2 decimal places.
func (s *Sizer) OrderSizeUSD(macroCoefficient float64, symbol, strategyName string) float64 {
	resonance := s.resonance.Coefficient(symbol, strategyName)
	size := s.config.AccountValueUSD * s.config.BasePositionFraction * macroCoefficient * resonance
	size = math.Round(size*100) / 100

	s.logger.Debug("Position sized",
		"symbol", symbol, "strategy", strategyName,
		"macro_coefficient", macroCoefficient, "resonance", resonance, "size_usd", size)
	return size
}
