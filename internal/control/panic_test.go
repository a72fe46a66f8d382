package control

import (
	"context"
	"testing"
	"time"
)

func TestMemoryConfirmWithinWindow(t *testing.T) {
	store := NewMemoryConfirmStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Arm(ctx, 30*time.Second); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}

	store.now = func() time.Time { return now.Add(29 * time.Second) }
	pending, err := store.Confirm(ctx)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if !pending {
		t.Error("Confirmation at 29s should be inside the 30s window")
	}
}

func TestMemoryConfirmExpired(t *testing.T) {
	store := NewMemoryConfirmStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Arm(ctx, 30*time.Second); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}

	store.now = func() time.Time { return now.Add(31 * time.Second) }
	pending, err := store.Confirm(ctx)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if pending {
		t.Error("Confirmation at 31s should be expired")
	}
}

func TestMemoryConfirmIsConsumed(t *testing.T) {
	store := NewMemoryConfirmStore()
	ctx := context.Background()

	if err := store.Arm(ctx, time.Minute); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	if pending, _ := store.Confirm(ctx); !pending {
		t.Fatal("First confirm should succeed")
	}
	if pending, _ := store.Confirm(ctx); pending {
		t.Error("Second confirm should find nothing pending")
	}
}

func TestMemoryConfirmWithoutArm(t *testing.T) {
	store := NewMemoryConfirmStore()

	pending, err := store.Confirm(context.Background())
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if pending {
		t.Error("Confirm without a pending panic should report nothing")
	}
}

func TestMemoryRearmResetsWindow(t *testing.T) {
	store := NewMemoryConfirmStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Arm(ctx, 30*time.Second); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	store.now = func() time.Time { return now.Add(25 * time.Second) }
	if err := store.Arm(ctx, 30*time.Second); err != nil {
		t.Fatalf("Re-arm failed: %v", err)
	}

	store.now = func() time.Time { return now.Add(50 * time.Second) }
	pending, err := store.Confirm(ctx)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if !pending {
		t.Error("Re-arming should restart the window")
	}
}
