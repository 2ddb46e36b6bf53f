package slot

import "time"

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Slot is one allocatable group code. Label is the human-facing group
// number and is not required to be unique; ID is.
type Slot struct {
	ID           string
	Label        int
	PhotoURL     string
	Status       Status
	CreationSeq  int64
	QueuePos     int64
	AffinityRoom string
	CreatedAt    time.Time
}

// Correlation binds a dispatched slot to the two messages it produced:
// the request reply in the source room and the work item in the
// fulfillment room. At most one correlation is live per slot; a new
// dispatch for the same slot overwrites the old one.
type Correlation struct {
	SlotID          string
	Label           int
	ExpectedAmount  int
	SourceRoom      string
	SourceMessageID string
	TargetRoom      string
	TargetMessageID string
	SubmitterID     string
	ReplyAnchorID   string
	ClickMode       bool
	CreatedAt       time.Time
}

// PendingApproval is a custom amount waiting for a global admin.
type PendingApproval struct {
	ID              string
	SlotID          string
	ProposedAmount  int
	ResponderID     string
	ResponderName   string
	AnchorMessageID string
	ReplyAnchorID   string
	CreatedAt       time.Time
}

// QueueStatus is a snapshot of the allocation queue for admins.
type QueueStatus struct {
	Total       int
	Open        int
	Closed      int
	MaxPosition int64
	Current     *Slot
	Next        *Slot
	Order       []Slot
}
