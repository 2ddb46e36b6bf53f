package slot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// memStore is an in-memory Store with the same atomicity contract as
// the postgres implementation.
type memStore struct {
	mu    sync.Mutex
	seq   int64
	slots []*Slot
	corrs []*Correlation
	appr  []*PendingApproval
}

func (m *memStore) CreateSlot(_ context.Context, s *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	s.CreationSeq = m.seq
	cp := *s
	m.slots = append(m.slots, &cp)
	return nil
}

func (m *memStore) SlotsInCreationOrder(_ context.Context) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Slot, len(m.slots))
	for i, s := range m.slots {
		out[i] = *s
	}
	return out, nil
}

func (m *memStore) SlotByID(_ context.Context, id string) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ClaimSlot(_ context.Context, id string, pos int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.ID == id {
			if s.Status != StatusOpen || s.QueuePos >= pos {
				return ErrConflict
			}
			s.QueuePos = pos
			s.Status = StatusClosed
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) SetSlotStatus(_ context.Context, id string, st Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.ID == id {
			s.Status = st
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) SetAffinityRoom(_ context.Context, id, room string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.ID == id {
			s.AffinityRoom = room
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) ResetQueuePositions(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		s.QueuePos = 0
	}
	return nil
}

func (m *memStore) ReopenAllSlots(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		s.Status = StatusOpen
	}
	return nil
}

func (m *memStore) DeleteSlotsByRoom(_ context.Context, room string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*Slot
	n := 0
	for _, s := range m.slots {
		if s.AffinityRoom == room {
			n++
			continue
		}
		kept = append(kept, s)
	}
	m.slots = kept
	return n, nil
}

func (m *memStore) DeleteSlotsByLabel(_ context.Context, room string, label int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*Slot
	n := 0
	for _, s := range m.slots {
		if s.AffinityRoom == room && s.Label == label {
			n++
			continue
		}
		kept = append(kept, s)
	}
	m.slots = kept
	return n, nil
}

func (m *memStore) PutCorrelation(_ context.Context, c *Correlation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	var kept []*Correlation
	for _, old := range m.corrs {
		if old.SlotID != c.SlotID {
			kept = append(kept, old)
		}
	}
	m.corrs = append(kept, &cp)
	return nil
}

func (m *memStore) CorrelationBySlot(_ context.Context, slotID string) (*Correlation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.corrs {
		if c.SlotID == slotID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) CorrelationByTargetMessage(_ context.Context, room, messageID string) (*Correlation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.corrs {
		if c.TargetRoom == room && c.TargetMessageID == messageID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) CorrelationByAmount(_ context.Context, amount int) (*Correlation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.corrs) - 1; i >= 0; i-- {
		if m.corrs[i].ExpectedAmount == amount {
			cp := *m.corrs[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) CorrelationByLabel(_ context.Context, label int) (*Correlation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.corrs) - 1; i >= 0; i-- {
		if m.corrs[i].Label == label {
			cp := *m.corrs[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) LatestCorrelation(_ context.Context) (*Correlation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.corrs) == 0 {
		return nil, ErrNotFound
	}
	cp := *m.corrs[len(m.corrs)-1]
	return &cp, nil
}

func (m *memStore) DeleteCorrelationsByRoom(_ context.Context, room string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*Correlation
	for _, c := range m.corrs {
		if c.TargetRoom != room {
			kept = append(kept, c)
		}
	}
	m.corrs = kept
	return nil
}

func (m *memStore) CreateApproval(_ context.Context, p *PendingApproval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.appr = append(m.appr, &cp)
	return nil
}

func (m *memStore) Approvals(_ context.Context) ([]PendingApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PendingApproval, len(m.appr))
	for i, p := range m.appr {
		out[i] = *p
	}
	return out, nil
}

func (m *memStore) LatestApproval(_ context.Context) (*PendingApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.appr) == 0 {
		return nil, ErrNotFound
	}
	cp := *m.appr[len(m.appr)-1]
	return &cp, nil
}

func (m *memStore) TakeApproval(_ context.Context, id string) (*PendingApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.appr {
		if p.ID == id {
			m.appr = append(m.appr[:i], m.appr[i+1:]...)
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

type fakeSettings struct {
	rooms      []string
	percents   map[string]int
	click      map[string]bool
	forwarding bool
	operators  map[string]bool // room + "/" + user
}

func (f *fakeSettings) FulfillmentRooms(_ context.Context) ([]string, error) {
	return append([]string(nil), f.rooms...), nil
}

func (f *fakeSettings) RoomPercentages(_ context.Context) (map[string]int, error) {
	return f.percents, nil
}

func (f *fakeSettings) ClickMode(_ context.Context, room string) (bool, error) {
	return f.click[room], nil
}

func (f *fakeSettings) ForwardingEnabled(_ context.Context) (bool, error) {
	return f.forwarding, nil
}

func (f *fakeSettings) IsOperator(_ context.Context, room, userID string) (bool, error) {
	return f.operators[room+"/"+userID], nil
}

type sentMsg struct {
	room    string
	text    string
	replyTo string
	photo   string
	buttons []Button
}

type fakeMessenger struct {
	mu        sync.Mutex
	nextID    int
	failSends int
	sent      []sentMsg
	edits     []sentMsg
	directs   []sentMsg
	deleted   []string
	scheduled []string
}

func (f *fakeMessenger) id() string {
	f.nextID++
	return fmt.Sprintf("m%d", f.nextID)
}

// maybeFail makes the next failSends outgoing sends error out.
func (f *fakeMessenger) maybeFail() error {
	if f.failSends > 0 {
		f.failSends--
		return errors.New("transport down")
	}
	return nil
}

func (f *fakeMessenger) SendText(_ context.Context, room, text, replyTo string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail(); err != nil {
		return "", err
	}
	f.sent = append(f.sent, sentMsg{room: room, text: text, replyTo: replyTo})
	return f.id(), nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, room, photoURL, caption, replyTo string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail(); err != nil {
		return "", err
	}
	f.sent = append(f.sent, sentMsg{room: room, text: caption, replyTo: replyTo, photo: photoURL})
	return f.id(), nil
}

func (f *fakeMessenger) SendButtons(_ context.Context, room, text string, buttons []Button) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail(); err != nil {
		return "", err
	}
	f.sent = append(f.sent, sentMsg{room: room, text: text, buttons: buttons})
	return f.id(), nil
}

func (f *fakeMessenger) EditText(_ context.Context, room, messageID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sentMsg{room: room, replyTo: messageID, text: text})
	return nil
}

func (f *fakeMessenger) EditButtons(_ context.Context, room, messageID, text string, buttons []Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sentMsg{room: room, replyTo: messageID, text: text, buttons: buttons})
	return nil
}

func (f *fakeMessenger) DeleteMessage(_ context.Context, room, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, room+"/"+messageID)
	return nil
}

func (f *fakeMessenger) SendDirect(_ context.Context, userID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.directs = append(f.directs, sentMsg{room: userID, text: text})
	return f.id(), nil
}

func (f *fakeMessenger) ScheduleDelete(room, messageID string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, room+"/"+messageID)
}

func (f *fakeMessenger) lastSent() sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMsg{}
	}
	return f.sent[len(f.sent)-1]
}

// newTestService wires a Service against the in-memory fakes with a
// deterministic clock and a draw that always passes the gate.
func newTestService(rooms ...string) (*Service, *memStore, *fakeSettings, *fakeMessenger) {
	store := &memStore{}
	settings := &fakeSettings{
		rooms:      rooms,
		percents:   map[string]int{},
		click:      map[string]bool{},
		forwarding: true,
		operators:  map[string]bool{},
	}
	msgr := &fakeMessenger{}
	svc := New(store, settings, msgr, []string{"admin-1"})
	svc.randInt = func(int) int { return 0 }
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	svc.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return svc, store, settings, msgr
}

// seedSlot registers a slot and returns it.
func seedSlot(svc *Service, room string, label int) *Slot {
	sl, err := svc.RegisterSlot(context.Background(), room, label, fmt.Sprintf("https://cdn.example/%d.png", label))
	if err != nil {
		panic(err)
	}
	return sl
}
