package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TradingConfig.AccountValueUSD != 100000 {
		t.Errorf("Expected account value 100000, got %v", cfg.TradingConfig.AccountValueUSD)
	}
	if cfg.TradingConfig.BasePositionFraction != 0.1 {
		t.Errorf("Expected base fraction 0.1, got %v", cfg.TradingConfig.BasePositionFraction)
	}
	if cfg.TradingConfig.ResonanceCoefficient != 0.5 {
		t.Errorf("Expected resonance 0.5, got %v", cfg.TradingConfig.ResonanceCoefficient)
	}
	if cfg.TradingConfig.BullLeverage != 3 || cfg.TradingConfig.BaseLeverage != 1 {
		t.Errorf("Leverage defaults wrong: bull=%d base=%d",
			cfg.TradingConfig.BullLeverage, cfg.TradingConfig.BaseLeverage)
	}
	if !cfg.TradingConfig.PaperTrading {
		t.Error("Paper trading should default on")
	}
	if cfg.MacroConfig.BullExpiryHours != 168 || cfg.MacroConfig.BearExpiryHours != 72 {
		t.Errorf("Expiry defaults wrong: bull=%d bear=%d",
			cfg.MacroConfig.BullExpiryHours, cfg.MacroConfig.BearExpiryHours)
	}
	if cfg.ControlConfig.PanicConfirmTTL != 30*time.Second {
		t.Errorf("Expected 30s panic TTL, got %v", cfg.ControlConfig.PanicConfirmTTL)
	}
	if len(cfg.MacroConfig.Signals) != 4 {
		t.Errorf("Expected 4 default macro signals, got %d", len(cfg.MacroConfig.Signals))
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ACCOUNT_VALUE_USD", "250000")
	t.Setenv("PAPER_TRADING", "false")
	t.Setenv("BULL_EXPIRY_HOURS", "240")
	t.Setenv("PANIC_CONFIRM_TTL", "45s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TradingConfig.AccountValueUSD != 250000 {
		t.Errorf("Expected 250000, got %v", cfg.TradingConfig.AccountValueUSD)
	}
	if cfg.TradingConfig.PaperTrading {
		t.Error("Expected paper trading off")
	}
	if cfg.MacroConfig.BullExpiryHours != 240 {
		t.Errorf("Expected 240, got %d", cfg.MacroConfig.BullExpiryHours)
	}
	if cfg.ControlConfig.PanicConfirmTTL != 45*time.Second {
		t.Errorf("Expected 45s, got %v", cfg.ControlConfig.PanicConfirmTTL)
	}
}

func TestParseMacroSignals(t *testing.T) {
	signals, err := parseMacroSignals("my-btc-long=BTC/LONG, my-sol-short=sol/short")
	if err != nil {
		t.Fatalf("parseMacroSignals failed: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("Expected 2 signals, got %d", len(signals))
	}
	if signals[0].Name != "my-btc-long" || signals[0].Asset != "BTC" || signals[0].Direction != "LONG" {
		t.Errorf("First signal wrong: %+v", signals[0])
	}
	if signals[1].Asset != "SOL" || signals[1].Direction != "SHORT" {
		t.Errorf("Asset and direction should be uppercased: %+v", signals[1])
	}
}

func TestParseMacroSignalsRejectsBadFormat(t *testing.T) {
	for _, input := range []string{"no-equals", "name=BTC", ""} {
		if _, err := parseMacroSignals(input); err == nil {
			t.Errorf("parseMacroSignals(%q) should fail", input)
		}
	}
}

func TestMacroSignalsEnvOverride(t *testing.T) {
	t.Setenv("MACRO_SIGNALS", "custom-long=BTC/LONG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.MacroConfig.Signals) != 1 {
		t.Fatalf("Expected 1 signal, got %d", len(cfg.MacroConfig.Signals))
	}
	if cfg.MacroConfig.Signals[0].Name != "custom-long" {
		t.Errorf("Wrong signal: %+v", cfg.MacroConfig.Signals[0])
	}
}
