package slot

import (
	"context"
	"log"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// ResolveRoom returns the fulfillment room a slot is sticky to. A slot
// that already carries a valid affinity keeps it; otherwise the room is
// picked by a stable hash of the slot id over the sorted room set and
// persisted, so the same slot maps to the same room across restarts.
func (s *Service) ResolveRoom(ctx context.Context, sl *Slot) (string, error) {
	rooms, err := s.settings.FulfillmentRooms(ctx)
	if err != nil {
		return "", err
	}
	if len(rooms) == 0 {
		return "", ErrNoRooms
	}
	sort.Strings(rooms)

	if sl.AffinityRoom != "" {
		for _, r := range rooms {
			if r == sl.AffinityRoom {
				return r, nil
			}
		}
		log.Printf("slot %s: affinity room %s is no longer configured, remapping", sl.ID, sl.AffinityRoom)
	}

	room := rooms[xxhash.Sum64String(sl.ID)%uint64(len(rooms))]
	if err := s.store.SetAffinityRoom(ctx, sl.ID, room); err != nil {
		return "", err
	}
	sl.AffinityRoom = room
	return room, nil
}
