package slot

import (
	"context"
	"errors"
)

// Allocate selects exactly one open slot, advancing the global
// round-robin cursor over creation order. With gated=true each
// candidate's fulfillment room percentage is rolled and rejected
// candidates are skipped, bounded to a single pass over the open slots.
// Returns the claimed slot and its resolved fulfillment room, or
// ErrNoOpenSlots when the pass finds nothing. The claim closes the
// slot; it stays closed until the work item is reconciled.
func (s *Service) Allocate(ctx context.Context, gated bool) (*Slot, string, error) {
	slots, err := s.store.SlotsInCreationOrder(ctx)
	if err != nil {
		return nil, "", err
	}

	// The cursor is the slot holding the current maximum queue
	// position, open or not. Position 0 means nothing was allocated
	// yet.
	var maxPos int64
	cursorSeq := int64(-1)
	for i := range slots {
		if slots[i].QueuePos > maxPos {
			maxPos = slots[i].QueuePos
			cursorSeq = slots[i].CreationSeq
		}
	}

	var open []*Slot
	for i := range slots {
		if slots[i].Status == StatusOpen {
			open = append(open, &slots[i])
		}
	}
	if len(open) == 0 {
		return nil, "", ErrNoOpenSlots
	}

	// One pass: everything after the cursor in creation order, then
	// wrap to the front.
	candidates := make([]*Slot, 0, len(open))
	for _, sl := range open {
		if sl.CreationSeq > cursorSeq {
			candidates = append(candidates, sl)
		}
	}
	for _, sl := range open {
		if sl.CreationSeq <= cursorSeq {
			candidates = append(candidates, sl)
		}
	}

	var percentages map[string]int
	if gated {
		percentages, err = s.settings.RoomPercentages(ctx)
		if err != nil {
			return nil, "", err
		}
	}

	for _, cand := range candidates {
		room, err := s.ResolveRoom(ctx, cand)
		if err != nil {
			return nil, "", err
		}
		if gated {
			if p, ok := percentages[room]; ok {
				draw := s.randInt(100) + 1
				if draw > p {
					continue
				}
			}
		}
		err = s.store.ClaimSlot(ctx, cand.ID, maxPos+1)
		if errors.Is(err, ErrConflict) {
			// Another handler claimed it between the scan and the
			// check-and-set; move on to the next candidate.
			continue
		}
		if err != nil {
			return nil, "", err
		}
		cand.QueuePos = maxPos + 1
		cand.Status = StatusClosed
		return cand, room, nil
	}
	return nil, "", ErrNoOpenSlots
}

// ResetQueue zeroes every queue position so the cycle restarts from the
// first slot in creation order. Idempotent.
func (s *Service) ResetQueue(ctx context.Context) error {
	return s.store.ResetQueuePositions(ctx)
}

// ReopenAll flips every slot back to open. Idempotent.
func (s *Service) ReopenAll(ctx context.Context) error {
	return s.store.ReopenAllSlots(ctx)
}

// Status reports the queue snapshot shown by admin surfaces.
func (s *Service) Status(ctx context.Context) (*QueueStatus, error) {
	slots, err := s.store.SlotsInCreationOrder(ctx)
	if err != nil {
		return nil, err
	}
	st := &QueueStatus{Total: len(slots), Order: slots}
	for i := range slots {
		switch slots[i].Status {
		case StatusOpen:
			st.Open++
		case StatusClosed:
			st.Closed++
		}
		if slots[i].QueuePos > st.MaxPosition {
			st.MaxPosition = slots[i].QueuePos
			st.Current = &slots[i]
		}
	}
	if st.Current != nil {
		for i := range slots {
			if slots[i].Status == StatusOpen && slots[i].CreationSeq > st.Current.CreationSeq {
				st.Next = &slots[i]
				break
			}
		}
	}
	if st.Next == nil {
		for i := range slots {
			if slots[i].Status == StatusOpen {
				st.Next = &slots[i]
				break
			}
		}
	}
	return st, nil
}
