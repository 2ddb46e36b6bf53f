package slot

import (
	"context"
	"errors"
	"testing"
)

func TestResolveRoomIdempotent(t *testing.T) {
	svc, store, _, _ := newTestService("room-b1", "room-b2", "room-b3")
	sl := seedSlot(svc, "", 10)

	first, err := svc.ResolveRoom(context.Background(), sl)
	if err != nil {
		t.Fatalf("ResolveRoom: %v", err)
	}
	for i := 0; i < 5; i++ {
		fresh, _ := store.SlotByID(context.Background(), sl.ID)
		got, err := svc.ResolveRoom(context.Background(), fresh)
		if err != nil {
			t.Fatalf("ResolveRoom: %v", err)
		}
		if got != first {
			t.Errorf("resolution %d = %q, want stable %q", i, got, first)
		}
	}
}

func TestResolveRoomKeepsRegisteredAffinity(t *testing.T) {
	svc, _, _, _ := newTestService("room-b1", "room-b2")
	sl := seedSlot(svc, "room-b2", 10)

	got, err := svc.ResolveRoom(context.Background(), sl)
	if err != nil {
		t.Fatalf("ResolveRoom: %v", err)
	}
	if got != "room-b2" {
		t.Errorf("ResolveRoom = %q, want registered room-b2", got)
	}
}

func TestResolveRoomRemapsWhenRoomRemoved(t *testing.T) {
	svc, store, settings, _ := newTestService("room-b1", "room-b2")
	sl := seedSlot(svc, "room-gone", 10)

	got, err := svc.ResolveRoom(context.Background(), sl)
	if err != nil {
		t.Fatalf("ResolveRoom: %v", err)
	}
	if got != "room-b1" && got != "room-b2" {
		t.Fatalf("ResolveRoom = %q, want one of the configured rooms", got)
	}

	// The remap must persist.
	fresh, _ := store.SlotByID(context.Background(), sl.ID)
	if fresh.AffinityRoom != got {
		t.Errorf("persisted affinity = %q, want %q", fresh.AffinityRoom, got)
	}

	// Room order must not change the stable pick.
	settings.rooms = []string{"room-b2", "room-b1"}
	again, err := svc.ResolveRoom(context.Background(), fresh)
	if err != nil {
		t.Fatalf("ResolveRoom: %v", err)
	}
	if again != got {
		t.Errorf("ResolveRoom after reorder = %q, want %q", again, got)
	}
}

func TestResolveRoomNoRooms(t *testing.T) {
	svc, _, _, _ := newTestService()
	sl := seedSlot(svc, "", 10)

	if _, err := svc.ResolveRoom(context.Background(), sl); !errors.Is(err, ErrNoRooms) {
		t.Errorf("ResolveRoom error = %v, want ErrNoRooms", err)
	}
}
