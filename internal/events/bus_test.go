package events

import (
	"testing"
	"time"
)

func TestSubscribeReceivesMatchingEvents(t *testing.T) {
	bus := NewEventBus()
	received := make(chan Event, 1)

	bus.Subscribe(EventStateChanged, func(e Event) {
		received <- e
	})

	bus.PublishStateChanged("BULL", "trend-btc-1d-long", 3)

	select {
	case e := <-received:
		if e.Type != EventStateChanged {
			t.Errorf("Expected STATE_CHANGED, got %s", e.Type)
		}
		if e.Data["market_state"] != "BULL" {
			t.Errorf("Expected BULL, got %v", e.Data["market_state"])
		}
		if e.Timestamp.IsZero() {
			t.Error("Timestamp should be stamped on publish")
		}
	case <-time.After(time.Second):
		t.Fatal("Subscriber never received the event")
	}
}

func TestSubscriberIgnoresOtherTypes(t *testing.T) {
	bus := NewEventBus()
	received := make(chan Event, 1)

	bus.Subscribe(EventTradeRecorded, func(e Event) {
		received <- e
	})

	bus.PublishSignalFiltered("rsi-scalp-5m", "BTCUSDT", "wrong direction")

	select {
	case <-received:
		t.Fatal("Subscriber received an event of the wrong type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewEventBus()
	received := make(chan Event, 4)

	bus.SubscribeAll(func(e Event) {
		received <- e
	})

	bus.PublishAlertReceived("rsi-scalp-5m", "BTCUSDT", "LONG", "tactical")
	bus.PublishTradeRecorded("BTCUSDT", "LONG", 5000, true)
	bus.PublishOverrideToggled(true)

	got := map[EventType]bool{}
	for i := 0; i < 3; i++ {
		select {
		case e := <-received:
			got[e.Type] = true
		case <-time.After(time.Second):
			t.Fatalf("Only received %d of 3 events", i)
		}
	}
	for _, want := range []EventType{EventAlertReceived, EventTradeRecorded, EventOverrideToggled} {
		if !got[want] {
			t.Errorf("Missing event type %s", want)
		}
	}
}
