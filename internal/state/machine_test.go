package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"macro-trading-bot/config"
	"macro-trading-bot/internal/database"
	"macro-trading-bot/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: "ERROR", Output: "stderr"})
}

type fakeStore struct {
	state     *database.MacroState
	conflicts int // updates to reject before accepting
	getErr    error
	updates   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		state: &database.MacroState{
			Version:          1,
			MarketState:      database.MarketNeutral,
			AssetStates:      map[string]string{},
			Leverage:         1,
			MacroCoefficient: 1.0,
		},
	}
}

func (s *fakeStore) GetMacroState(ctx context.Context) (*database.MacroState, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return cloneState(s.state), nil
}

func (s *fakeStore) UpdateMacroState(ctx context.Context, expectedVersion int64, state *database.MacroState) error {
	s.updates++
	if s.conflicts > 0 {
		s.conflicts--
		return database.ErrVersionConflict
	}
	if expectedVersion != s.state.Version {
		return database.ErrVersionConflict
	}
	saved := cloneState(state)
	saved.Version = expectedVersion + 1
	s.state = saved
	state.Version = saved.Version
	return nil
}

func cloneState(s *database.MacroState) *database.MacroState {
	clone := *s
	clone.AssetStates = make(map[string]string, len(s.AssetStates))
	for k, v := range s.AssetStates {
		clone.AssetStates[k] = v
	}
	if s.LastMajorSignalName != nil {
		name := *s.LastMajorSignalName
		clone.LastMajorSignalName = &name
	}
	if s.LastMajorSignalAt != nil {
		at := *s.LastMajorSignalAt
		clone.LastMajorSignalAt = &at
	}
	return &clone
}

type fakeNotifier struct {
	stateChanges []string
	sweepResets  []string
}

func (n *fakeNotifier) SendStateChange(marketState, signalName string) {
	n.stateChanges = append(n.stateChanges, marketState+":"+signalName)
}

func (n *fakeNotifier) SendSweepReset(previousState string, elapsed time.Duration) {
	n.sweepResets = append(n.sweepResets, previousState)
}

func testConfig() Config {
	return Config{
		BullExpiryHours: 168,
		BearExpiryHours: 72,
		BullLeverage:    3,
		BaseLeverage:    1,
	}
}

func TestApplyLongSignalEntersBull(t *testing.T) {
	store := newFakeStore()
	notify := &fakeNotifier{}
	m := NewMachine(store, notify, testConfig(), testLogger())

	st, err := m.Apply(context.Background(), config.MacroSignal{
		Name: "trend-btc-1d-long", Asset: "BTC", Direction: "LONG",
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if st.MarketState != database.MarketBull {
		t.Errorf("Expected BULL, got %s", st.MarketState)
	}
	if st.Leverage != 3 {
		t.Errorf("Expected leverage 3, got %d", st.Leverage)
	}
	if st.AssetStates["BTC"] != database.DirectionLong {
		t.Errorf("Expected BTC LONG, got %s", st.AssetStates["BTC"])
	}
	if st.LastMajorSignalName == nil || *st.LastMajorSignalName != "trend-btc-1d-long" {
		t.Error("Last major signal name not recorded")
	}
	if len(notify.stateChanges) != 1 {
		t.Errorf("Expected 1 state change notification, got %d", len(notify.stateChanges))
	}
}

func TestShortBeatsLong(t *testing.T) {
	store := newFakeStore()
	m := NewMachine(store, &fakeNotifier{}, testConfig(), testLogger())
	ctx := context.Background()

	if _, err := m.Apply(ctx, config.MacroSignal{Name: "trend-btc-1d-long", Asset: "BTC", Direction: "LONG"}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	st, err := m.Apply(ctx, config.MacroSignal{Name: "trend-eth-1d-short", Asset: "ETH", Direction: "SHORT"})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if st.MarketState != database.MarketBear {
		t.Errorf("Expected BEAR when any asset is SHORT, got %s", st.MarketState)
	}
	if st.Leverage != 1 {
		t.Errorf("Expected leverage 1 in BEAR, got %d", st.Leverage)
	}
	if st.AssetStates["BTC"] != database.DirectionLong {
		t.Error("BTC state should be preserved")
	}
}

func TestApplyRetriesOnceOnConflict(t *testing.T) {
	store := newFakeStore()
	store.conflicts = 1
	m := NewMachine(store, &fakeNotifier{}, testConfig(), testLogger())

	if _, err := m.Apply(context.Background(), config.MacroSignal{Name: "trend-btc-1d-long", Asset: "BTC", Direction: "LONG"}); err != nil {
		t.Fatalf("Apply should succeed after one retry: %v", err)
	}
	if store.updates != 2 {
		t.Errorf("Expected 2 update attempts, got %d", store.updates)
	}
}

func TestApplyFailsAfterSecondConflict(t *testing.T) {
	store := newFakeStore()
	store.conflicts = 2
	m := NewMachine(store, &fakeNotifier{}, testConfig(), testLogger())

	_, err := m.Apply(context.Background(), config.MacroSignal{Name: "trend-btc-1d-long", Asset: "BTC", Direction: "LONG"})
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("Expected ErrStateConflict, got %v", err)
	}
	if store.updates != 2 {
		t.Errorf("Expected exactly 2 update attempts, got %d", store.updates)
	}
}

func TestApplyWrapsReadError(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	m := NewMachine(store, &fakeNotifier{}, testConfig(), testLogger())

	_, err := m.Apply(context.Background(), config.MacroSignal{Name: "trend-btc-1d-long", Asset: "BTC", Direction: "LONG"})
	if !errors.Is(err, ErrStateUnavailable) {
		t.Fatalf("Expected ErrStateUnavailable, got %v", err)
	}
}

func TestSweepExpiresStaleBull(t *testing.T) {
	store := newFakeStore()
	notify := &fakeNotifier{}
	m := NewMachine(store, notify, testConfig(), testLogger())
	ctx := context.Background()

	if _, err := m.Apply(ctx, config.MacroSignal{Name: "trend-btc-1d-long", Asset: "BTC", Direction: "LONG"}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(169 * time.Hour) }
	if err := m.SweepExpiry(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	st := store.state
	if st.MarketState != database.MarketNeutral {
		t.Errorf("Expected NEUTRAL after expiry, got %s", st.MarketState)
	}
	if st.AssetStates["BTC"] != database.AssetNone {
		t.Errorf("Expected BTC reset to NONE, got %s", st.AssetStates["BTC"])
	}
	if st.Leverage != 1 {
		t.Errorf("Expected leverage 1, got %d", st.Leverage)
	}
	if st.LastMajorSignalName == nil || *st.LastMajorSignalName != "timeout-reset" {
		t.Error("Expected timeout-reset as last signal name")
	}
	if len(notify.sweepResets) != 1 {
		t.Errorf("Expected 1 sweep notification, got %d", len(notify.sweepResets))
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	store := newFakeStore()
	notify := &fakeNotifier{}
	m := NewMachine(store, notify, testConfig(), testLogger())
	ctx := context.Background()

	if _, err := m.Apply(ctx, config.MacroSignal{Name: "trend-btc-1d-long", Asset: "BTC", Direction: "LONG"}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(200 * time.Hour) }
	if err := m.SweepExpiry(ctx); err != nil {
		t.Fatalf("First sweep failed: %v", err)
	}
	version := store.state.Version

	if err := m.SweepExpiry(ctx); err != nil {
		t.Fatalf("Second sweep failed: %v", err)
	}
	if store.state.Version != version {
		t.Error("Second sweep should not write")
	}
	if len(notify.sweepResets) != 1 {
		t.Errorf("Expected 1 sweep notification, got %d", len(notify.sweepResets))
	}
}

func TestSweepKeepsFreshBull(t *testing.T) {
	store := newFakeStore()
	m := NewMachine(store, &fakeNotifier{}, testConfig(), testLogger())
	ctx := context.Background()

	if _, err := m.Apply(ctx, config.MacroSignal{Name: "trend-btc-1d-long", Asset: "BTC", Direction: "LONG"}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(167 * time.Hour) }
	if err := m.SweepExpiry(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if store.state.MarketState != database.MarketBull {
		t.Errorf("BULL should survive below the expiry window, got %s", store.state.MarketState)
	}
}

func TestSweepUsesBearWindow(t *testing.T) {
	store := newFakeStore()
	m := NewMachine(store, &fakeNotifier{}, testConfig(), testLogger())
	ctx := context.Background()

	if _, err := m.Apply(ctx, config.MacroSignal{Name: "trend-btc-1d-short", Asset: "BTC", Direction: "SHORT"}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// 73h is past the 72h BEAR window but well inside the BULL window
	m.now = func() time.Time { return time.Now().Add(73 * time.Hour) }
	if err := m.SweepExpiry(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if store.state.MarketState != database.MarketNeutral {
		t.Errorf("Expected BEAR expired after 73h, got %s", store.state.MarketState)
	}
}

func TestSweepIgnoresNeutral(t *testing.T) {
	store := newFakeStore()
	notify := &fakeNotifier{}
	m := NewMachine(store, notify, testConfig(), testLogger())

	if err := m.SweepExpiry(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if store.updates != 0 {
		t.Error("Sweep of NEUTRAL state should not write")
	}
	if len(notify.sweepResets) != 0 {
		t.Error("Sweep of NEUTRAL state should not notify")
	}
}

func TestDeriveMarketState(t *testing.T) {
	tests := []struct {
		name   string
		states map[string]string
		want   string
	}{
		{"empty", map[string]string{}, database.MarketNeutral},
		{"all none", map[string]string{"BTC": "NONE", "ETH": "NONE"}, database.MarketNeutral},
		{"one long", map[string]string{"BTC": "LONG", "ETH": "NONE"}, database.MarketBull},
		{"one short", map[string]string{"BTC": "NONE", "ETH": "SHORT"}, database.MarketBear},
		{"short beats long", map[string]string{"BTC": "LONG", "ETH": "SHORT"}, database.MarketBear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveMarketState(tt.states); got != tt.want {
				t.Errorf("deriveMarketState(%v) = %s, want %s", tt.states, got, tt.want)
			}
		})
	}
}
