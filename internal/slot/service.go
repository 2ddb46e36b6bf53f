package slot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Message texts rendered by the engine.
const (
	photoCaptionFmt  = "🌟 群: %d 🌟"
	workItemFmt      = "💰 金额：%d\n🔢 群：%d\n\n❌ 如果会员10分钟没进群请回复0"
	workItemClickFmt = "💰 金额：%d\n🔢 群：%d"
	countdownFmt     = "💰 金额：%d\n🔢 群：%d\n\n倒计时1分钟销毁"
	editConfirmFmt   = "群%d"
	editNoShowFmt    = "群%d (取消/退出/没进/自定义金额)"
	verifyPromptFmt  = "请确认金额: +%d 或 +0（如果会员未进群）"

	releaseButtonLabel  = "解除"
	releasedButtonLabel = "已解除状态"

	msgNoShowRelay    = "会员没进群呢哥哥~ 😢"
	msgNoOpenSlots    = "No open images available."
	msgNoRooms        = "暂未设置需方群，请联系管理员。"
	msgDispatchFailed = "发送至需方群失败，请稍后重试。"
)

// Service is the allocation and reconciliation engine. All shared
// state lives behind Store/Settings; handlers may run concurrently.
type Service struct {
	store     Store
	settings  Settings
	msgr      Messenger
	approvers []string

	randInt     func(int) int
	now         func() time.Time
	deleteAfter time.Duration
}

func New(store Store, settings Settings, msgr Messenger, approvers []string) *Service {
	return &Service{
		store:       store,
		settings:    settings,
		msgr:        msgr,
		approvers:   approvers,
		randInt:     rand.Intn,
		now:         time.Now,
		deleteAfter: time.Minute,
	}
}

// isOperator reports whether the sender may submit custom amounts in
// the given room. Approvers are operators everywhere; everyone else
// needs a per-room grant.
func (s *Service) isOperator(ctx context.Context, room, userID string) (bool, error) {
	if s.isApprover(userID) {
		return true, nil
	}
	return s.settings.IsOperator(ctx, room, userID)
}

// HandleIntake processes a source-room message: parse the requested
// amount, allocate a slot, render it in both rooms and record the
// correlation. Unrecognized or out-of-range requests are dropped with
// no reply.
func (s *Service) HandleIntake(ctx context.Context, room, messageID, userID, text string) error {
	amount, ok := ParseIntakeAmount(text)
	if !ok {
		return nil
	}

	slots, err := s.store.SlotsInCreationOrder(ctx)
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		// Nothing registered yet; stay silent.
		return nil
	}
	open := 0
	for i := range slots {
		if slots[i].Status == StatusOpen {
			open++
		}
	}
	if open == 0 {
		// Everything is in flight; stay silent.
		return nil
	}

	sl, target, err := s.Allocate(ctx, true)
	if errors.Is(err, ErrNoOpenSlots) {
		// Every candidate was percentage-gated away; retry ungated so a
		// configured throttle cannot starve the intake room entirely.
		sl, target, err = s.Allocate(ctx, false)
	}
	switch {
	case errors.Is(err, ErrNoOpenSlots):
		_, serr := s.msgr.SendText(ctx, room, msgNoOpenSlots, messageID)
		return serr
	case errors.Is(err, ErrNoRooms):
		_, serr := s.msgr.SendText(ctx, room, msgNoRooms, messageID)
		return serr
	case err != nil:
		return err
	}

	return s.dispatch(ctx, sl, target, room, messageID, userID, amount)
}

// dispatch renders an already-claimed slot in both rooms. The claim
// closed the slot, so every failure path must reopen it or the slot
// would be stranded.
func (s *Service) dispatch(ctx context.Context, sl *Slot, target, room, messageID, userID string, amount int) error {
	photoMsg, err := s.msgr.SendPhoto(ctx, room, sl.PhotoURL, fmt.Sprintf(photoCaptionFmt, sl.Label), messageID)
	if err != nil {
		s.reopen(ctx, sl.ID)
		return fmt.Errorf("send slot photo to source room %s: %w", room, err)
	}

	click, err := s.settings.ClickMode(ctx, target)
	if err != nil {
		s.reopen(ctx, sl.ID)
		return err
	}

	var targetMsg string
	if click {
		targetMsg, err = s.msgr.SendButtons(ctx, target, fmt.Sprintf(workItemClickFmt, amount, sl.Label),
			[]Button{{Label: releaseButtonLabel, ID: "release:" + sl.ID}})
	} else {
		targetMsg, err = s.msgr.SendText(ctx, target, fmt.Sprintf(workItemFmt, amount, sl.Label), "")
	}
	if err != nil {
		if _, serr := s.msgr.SendText(ctx, room, msgDispatchFailed, messageID); serr != nil {
			log.Printf("slot %s: failed to report dispatch failure: %v", sl.ID, serr)
		}
		s.reopen(ctx, sl.ID)
		return fmt.Errorf("dispatch slot %s to room %s: %w", sl.ID, target, err)
	}

	c := &Correlation{
		SlotID:          sl.ID,
		Label:           sl.Label,
		ExpectedAmount:  amount,
		SourceRoom:      room,
		SourceMessageID: photoMsg,
		TargetRoom:      target,
		TargetMessageID: targetMsg,
		SubmitterID:     userID,
		ReplyAnchorID:   messageID,
		ClickMode:       click,
		CreatedAt:       s.now(),
	}
	if err := s.store.PutCorrelation(ctx, c); err != nil {
		s.reopen(ctx, sl.ID)
		return err
	}
	return nil
}

// reopen is the failure-path unwind for a claimed slot.
func (s *Service) reopen(ctx context.Context, slotID string) {
	if err := s.store.SetSlotStatus(ctx, slotID, StatusOpen); err != nil {
		log.Printf("slot %s: failed to reopen after dispatch failure: %v", slotID, err)
	}
}

// RegisterSlot creates a new open slot sticky to the fulfillment room
// that registered it.
func (s *Service) RegisterSlot(ctx context.Context, room string, label int, photoURL string) (*Slot, error) {
	sl := &Slot{
		ID:           uuid.NewString(),
		Label:        label,
		PhotoURL:     photoURL,
		Status:       StatusOpen,
		AffinityRoom: room,
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateSlot(ctx, sl); err != nil {
		return nil, err
	}
	return sl, nil
}

// RemoveRoomSlots deletes every slot registered by a fulfillment room
// along with its live correlations. Returns the deleted count.
func (s *Service) RemoveRoomSlots(ctx context.Context, room string) (int, error) {
	n, err := s.store.DeleteSlotsByRoom(ctx, room)
	if err != nil {
		return 0, err
	}
	if err := s.store.DeleteCorrelationsByRoom(ctx, room); err != nil {
		return n, err
	}
	return n, nil
}

// RemoveSlotByLabel deletes a single slot of a fulfillment room by its
// group number.
func (s *Service) RemoveSlotByLabel(ctx context.Context, room string, label int) (int, error) {
	return s.store.DeleteSlotsByLabel(ctx, room, label)
}
