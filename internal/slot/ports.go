package slot

import (
	"context"
	"time"
)

// Store is the durable record store the engine runs against. ClaimSlot
// and TakeApproval are the atomic check-and-set primitives: both must
// succeed for exactly one of any set of racing callers.
type Store interface {
	CreateSlot(ctx context.Context, s *Slot) error
	SlotsInCreationOrder(ctx context.Context) ([]Slot, error)
	SlotByID(ctx context.Context, id string) (*Slot, error)
	// ClaimSlot advances queue_position to pos and closes the slot in
	// one step, so a claimed slot is never visible as open. Returns
	// ErrConflict if the slot is no longer open or its position already
	// moved past pos.
	ClaimSlot(ctx context.Context, id string, pos int64) error
	SetSlotStatus(ctx context.Context, id string, st Status) error
	SetAffinityRoom(ctx context.Context, id, room string) error
	ResetQueuePositions(ctx context.Context) error
	ReopenAllSlots(ctx context.Context) error
	DeleteSlotsByRoom(ctx context.Context, room string) (int, error)
	DeleteSlotsByLabel(ctx context.Context, room string, label int) (int, error)

	PutCorrelation(ctx context.Context, c *Correlation) error
	CorrelationBySlot(ctx context.Context, slotID string) (*Correlation, error)
	CorrelationByTargetMessage(ctx context.Context, room, messageID string) (*Correlation, error)
	CorrelationByAmount(ctx context.Context, amount int) (*Correlation, error)
	CorrelationByLabel(ctx context.Context, label int) (*Correlation, error)
	LatestCorrelation(ctx context.Context) (*Correlation, error)
	DeleteCorrelationsByRoom(ctx context.Context, room string) error

	CreateApproval(ctx context.Context, p *PendingApproval) error
	Approvals(ctx context.Context) ([]PendingApproval, error)
	LatestApproval(ctx context.Context) (*PendingApproval, error)
	// TakeApproval deletes and returns a pending approval in one step.
	// A second take of the same id returns ErrNotFound.
	TakeApproval(ctx context.Context, id string) (*PendingApproval, error)
}

// Settings exposes the administrator-writable configuration the engine
// consults but does not own.
type Settings interface {
	FulfillmentRooms(ctx context.Context) ([]string, error)
	RoomPercentages(ctx context.Context) (map[string]int, error)
	ClickMode(ctx context.Context, room string) (bool, error)
	ForwardingEnabled(ctx context.Context) (bool, error)
	// IsOperator reports a per-room grant; an operator for one room has
	// no standing in any other.
	IsOperator(ctx context.Context, room, userID string) (bool, error)
}

// Button is one inline button on a fulfillment-room message.
type Button struct {
	Label    string
	ID       string
	Disabled bool
}

// Messenger is the chat transport. Implementations retry transient
// failures; the engine never inspects transport payloads beyond message
// ids and text.
type Messenger interface {
	SendText(ctx context.Context, room, text, replyTo string) (string, error)
	SendPhoto(ctx context.Context, room, photoURL, caption, replyTo string) (string, error)
	SendButtons(ctx context.Context, room, text string, buttons []Button) (string, error)
	EditText(ctx context.Context, room, messageID, text string) error
	EditButtons(ctx context.Context, room, messageID, text string, buttons []Button) error
	DeleteMessage(ctx context.Context, room, messageID string) error
	SendDirect(ctx context.Context, userID, text string) (string, error)
	// ScheduleDelete is fire-and-forget: no cancellation, failures are
	// logged by the implementation.
	ScheduleDelete(room, messageID string, delay time.Duration)
}
