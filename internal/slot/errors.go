package slot

import "errors"

var (
	// ErrNoOpenSlots is returned by Allocate when no open slot survives
	// a full pass over the queue.
	ErrNoOpenSlots = errors.New("no open slots available")

	// ErrNoRooms is returned when affinity resolution runs against an
	// empty fulfillment room set.
	ErrNoRooms = errors.New("no fulfillment rooms configured")

	// ErrNotFound covers lookups that matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a check-and-set lost a race; the
	// caller may retry with another candidate or give up cleanly.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrUnauthorized is returned for admin-only operations attempted
	// by a non-admin.
	ErrUnauthorized = errors.New("not authorized")
)
