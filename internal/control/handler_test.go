package control

import (
	"context"
	"strings"
	"testing"
	"time"

	"macro-trading-bot/internal/database"
	"macro-trading-bot/internal/events"
	"macro-trading-bot/internal/logging"
)

type fakeStateStore struct {
	state *database.MacroState
}

func (f *fakeStateStore) GetMacroState(ctx context.Context) (*database.MacroState, error) {
	return f.state, nil
}

type fakeTradeCounter struct{}

func (f *fakeTradeCounter) CountTrades(ctx context.Context, paper bool) (int64, error) {
	if paper {
		return 12, nil
	}
	return 3, nil
}

type fakeGate struct {
	paused  bool
	pauses  int
	resumes int
}

func (f *fakeGate) Pause(ctx context.Context) error {
	f.paused = true
	f.pauses++
	return nil
}

func (f *fakeGate) Resume(ctx context.Context) error {
	f.paused = false
	f.resumes++
	return nil
}

type fakeReplier struct {
	replies []string
}

func (f *fakeReplier) SendText(chatID, text string) error {
	f.replies = append(f.replies, text)
	return nil
}

const operatorChat = "1234"

func newTestHandler(t *testing.T) (*Handler, *fakeGate, *fakeReplier, *MemoryConfirmStore) {
	t.Helper()
	logger := logging.New(&logging.Config{Level: "ERROR", Output: "stderr"})
	name := "trend-btc-1d-long"
	at := time.Now().Add(-2 * time.Hour)
	states := &fakeStateStore{state: &database.MacroState{
		Version:             4,
		MarketState:         database.MarketBull,
		AssetStates:         map[string]string{"BTC": "LONG", "ETH": "NONE"},
		Leverage:            3,
		MacroCoefficient:    1.0,
		LastMajorSignalName: &name,
		LastMajorSignalAt:   &at,
	}}
	gate := &fakeGate{}
	reply := &fakeReplier{}
	panics := NewMemoryConfirmStore()

	h := NewHandler(Config{
		OperatorChatID:  operatorChat,
		PanicConfirmTTL: 30 * time.Second,
		PaperTrading:    true,
	}, states, &fakeTradeCounter{}, gate, panics, reply, events.NewEventBus(), logger)
	return h, gate, reply, panics
}

func TestUnauthorizedChatIsIgnored(t *testing.T) {
	h, gate, reply, _ := newTestHandler(t)

	h.HandleMessage(context.Background(), "9999", "/pause")

	if gate.pauses != 0 {
		t.Error("Unauthorized chat must not execute commands")
	}
	if len(reply.replies) != 0 {
		t.Error("Unauthorized chat must get no reply")
	}
}

func TestStatusReport(t *testing.T) {
	h, _, reply, _ := newTestHandler(t)

	h.HandleMessage(context.Background(), operatorChat, "/status")

	if len(reply.replies) != 1 {
		t.Fatalf("Expected 1 reply, got %d", len(reply.replies))
	}
	report := reply.replies[0]
	for _, want := range []string{"PAPER", "BULL", "3x", "BTC: LONG", "trend-btc-1d-long", "Paper trades: 12", "Live trades: 3"} {
		if !strings.Contains(report, want) {
			t.Errorf("Status report missing %q:\n%s", want, report)
		}
	}
}

func TestPauseAndResume(t *testing.T) {
	h, gate, reply, _ := newTestHandler(t)
	ctx := context.Background()

	h.HandleMessage(ctx, operatorChat, "/pause")
	if gate.pauses != 1 || !gate.paused {
		t.Error("Expected gate paused")
	}

	h.HandleMessage(ctx, operatorChat, "/resume")
	if gate.resumes != 1 || gate.paused {
		t.Error("Expected gate resumed")
	}
	if len(reply.replies) != 2 {
		t.Errorf("Expected 2 replies, got %d", len(reply.replies))
	}
}

func TestPanicRequiresConfirmation(t *testing.T) {
	h, gate, reply, _ := newTestHandler(t)
	ctx := context.Background()

	h.HandleMessage(ctx, operatorChat, "/panic")
	if gate.pauses != 0 {
		t.Error("Panic alone must not pause")
	}
	if len(reply.replies) != 1 || !strings.Contains(reply.replies[0], "/confirm_panic") {
		t.Error("Panic should prompt for confirmation")
	}

	h.HandleMessage(ctx, operatorChat, "/confirm_panic")
	if gate.pauses != 1 {
		t.Error("Confirmed panic should pause trading")
	}
}

func TestConfirmWithoutPanicDoesNothing(t *testing.T) {
	h, gate, reply, _ := newTestHandler(t)

	h.HandleMessage(context.Background(), operatorChat, "/confirm_panic")

	if gate.pauses != 0 {
		t.Error("Confirm without a pending panic must not pause")
	}
	if len(reply.replies) != 1 || !strings.Contains(reply.replies[0], "No pending panic") {
		t.Errorf("Expected no-pending reply, got %v", reply.replies)
	}
}

func TestExpiredPanicConfirmation(t *testing.T) {
	h, gate, _, panics := newTestHandler(t)
	ctx := context.Background()
	now := time.Now()
	panics.now = func() time.Time { return now }

	h.HandleMessage(ctx, operatorChat, "/panic")

	panics.now = func() time.Time { return now.Add(31 * time.Second) }
	h.HandleMessage(ctx, operatorChat, "/confirm_panic")

	if gate.pauses != 0 {
		t.Error("Expired confirmation must not pause")
	}
}

func TestUnknownCommandGetsUsageReply(t *testing.T) {
	h, _, reply, _ := newTestHandler(t)

	h.HandleMessage(context.Background(), operatorChat, "/selfdestruct")

	if len(reply.replies) != 1 || !strings.Contains(reply.replies[0], "Unknown command") {
		t.Errorf("Expected usage reply, got %v", reply.replies)
	}
}
