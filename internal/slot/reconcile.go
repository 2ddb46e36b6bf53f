package slot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// Outcome is the reconciliation result for a number seen in a
// fulfillment room.
type Outcome int

const (
	OutcomeIgnore Outcome = iota
	OutcomeConfirm
	OutcomeNoShow
	OutcomeNeedsApproval
)

// Classify maps a fulfillment-room number onto an outcome for the
// given work item. Label echoes are never confirmations even when an
// operator sends them. Any other number is a custom amount: operators
// get the approval flow, everyone else is dropped silently. No-shows
// are not decided here — only the bare "0"/"+0" replies count, and the
// caller resolves those before extracting numbers.
func Classify(c *Correlation, n int, isOperator bool) Outcome {
	switch {
	case n == c.ExpectedAmount:
		return OutcomeConfirm
	case n == c.Label:
		return OutcomeIgnore
	case isOperator:
		return OutcomeNeedsApproval
	default:
		return OutcomeIgnore
	}
}

// FulfillmentEvent is a text message observed in a fulfillment room.
type FulfillmentEvent struct {
	Room        string
	MessageID   string
	ReplyToID   string
	ReplyToText string
	UserID      string
	UserName    string
	Text        string
}

// HandleFulfillment reconciles a fulfillment-room message against the
// live correlations. Replies resolve against the exact work item they
// quote; unlinked messages fall back to amount match, then label
// match, then the most recent work item.
func (s *Service) HandleFulfillment(ctx context.Context, ev FulfillmentEvent) error {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return nil
	}

	if ev.ReplyToID != "" {
		c, err := s.store.CorrelationByTargetMessage(ctx, ev.Room, ev.ReplyToID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if c == nil {
			// Reply to a message we are not tracking.
			return nil
		}
		if text == "0" || text == "+0" {
			return s.finish(ctx, c, OutcomeNoShow, 0)
		}
		raw, plus := ExtractNumbers(text)
		nums := plus
		if len(nums) == 0 {
			nums = raw
		}
		if len(nums) == 0 {
			return nil
		}
		return s.applyOutcome(ctx, c, nums[0], ev)
	}

	if text == "0" || text == "+0" {
		// A bare zero without a quote no-shows the most recent work item.
		c, err := s.store.LatestCorrelation(ctx)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return s.finish(ctx, c, OutcomeNoShow, 0)
	}

	raw, _ := ExtractNumbers(text)
	if len(raw) == 0 {
		return nil
	}

	for _, n := range raw {
		if c, err := s.store.CorrelationByAmount(ctx, n); err == nil {
			return s.applyOutcome(ctx, c, n, ev)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if c, err := s.store.CorrelationByLabel(ctx, n); err == nil {
			// A bare group number without a quote reads as "this group is
			// done": confirm with the number as the relayed amount.
			return s.finish(ctx, c, OutcomeConfirm, n)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	if len(raw) == 1 {
		// Single ambiguous number: assume it concerns the most recent
		// work item in this room.
		c, err := s.store.LatestCorrelation(ctx)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return s.applyOutcome(ctx, c, raw[0], ev)
	}
	return nil
}

func (s *Service) applyOutcome(ctx context.Context, c *Correlation, n int, ev FulfillmentEvent) error {
	isOp, err := s.isOperator(ctx, ev.Room, ev.UserID)
	if err != nil {
		return err
	}
	switch Classify(c, n, isOp) {
	case OutcomeConfirm:
		return s.finish(ctx, c, OutcomeConfirm, n)
	case OutcomeNoShow:
		return s.finish(ctx, c, OutcomeNoShow, 0)
	case OutcomeNeedsApproval:
		return s.Propose(ctx, c, n, ev)
	default:
		return nil
	}
}

// finish reopens the slot, retires the work item message and relays
// the outcome to the source room.
func (s *Service) finish(ctx context.Context, c *Correlation, out Outcome, amount int) error {
	if err := s.store.SetSlotStatus(ctx, c.SlotID, StatusOpen); err != nil {
		return err
	}

	if c.ClickMode {
		s.msgr.ScheduleDelete(c.TargetRoom, c.TargetMessageID, s.deleteAfter)
	} else {
		edit := fmt.Sprintf(editConfirmFmt, c.Label)
		if out == OutcomeNoShow {
			edit = fmt.Sprintf(editNoShowFmt, c.Label)
		}
		if err := s.msgr.EditText(ctx, c.TargetRoom, c.TargetMessageID, edit); err != nil {
			log.Printf("slot %s: failed to edit work item %s: %v", c.SlotID, c.TargetMessageID, err)
		}
	}
	return s.relay(ctx, c, out, amount)
}

// relay notifies the source room of the outcome, anchored to the
// original request when possible.
func (s *Service) relay(ctx context.Context, c *Correlation, out Outcome, amount int) error {
	enabled, err := s.settings.ForwardingEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}

	text := fmt.Sprintf("+%d", amount)
	if out == OutcomeNoShow {
		text = msgNoShowRelay
	}
	replyTo := c.ReplyAnchorID
	if replyTo == "" {
		replyTo = c.SourceMessageID
	}
	if _, err := s.msgr.SendText(ctx, c.SourceRoom, text, replyTo); err != nil {
		return fmt.Errorf("relay outcome to source room %s: %w", c.SourceRoom, err)
	}
	return nil
}

// Release handles the click-mode 解除 button: the work item flips to
// its released state with a destruction countdown, the slot reopens
// and the confirmation is relayed.
func (s *Service) Release(ctx context.Context, slotID string) error {
	sl, err := s.store.SlotByID(ctx, slotID)
	if err != nil {
		return err
	}
	if sl.Status == StatusOpen {
		// Already released; repeated clicks are no-ops.
		return nil
	}

	c, err := s.store.CorrelationBySlot(ctx, slotID)
	if err != nil {
		return err
	}

	countdown := fmt.Sprintf(countdownFmt, c.ExpectedAmount, c.Label)
	released := []Button{{Label: releasedButtonLabel, ID: "released:" + slotID, Disabled: true}}
	if err := s.msgr.EditButtons(ctx, c.TargetRoom, c.TargetMessageID, countdown, released); err != nil {
		log.Printf("slot %s: failed to flip release button: %v", slotID, err)
	}

	if err := s.store.SetSlotStatus(ctx, c.SlotID, StatusOpen); err != nil {
		return err
	}
	if err := s.relay(ctx, c, OutcomeConfirm, c.ExpectedAmount); err != nil {
		log.Printf("slot %s: %v", slotID, err)
	}
	s.msgr.ScheduleDelete(c.TargetRoom, c.TargetMessageID, s.deleteAfter)
	return nil
}

// OfferVerify swaps a click-mode work item's buttons for the explicit
// +amount / +0 choice.
func (s *Service) OfferVerify(ctx context.Context, slotID string) error {
	c, err := s.store.CorrelationBySlot(ctx, slotID)
	if err != nil {
		return err
	}
	buttons := []Button{
		{Label: fmt.Sprintf("+%d", c.ExpectedAmount), ID: fmt.Sprintf("verify:%s:%d", slotID, c.ExpectedAmount)},
		{Label: "+0", ID: fmt.Sprintf("verify:%s:0", slotID)},
	}
	text := fmt.Sprintf(workItemClickFmt, c.ExpectedAmount, c.Label)
	if err := s.msgr.EditButtons(ctx, c.TargetRoom, c.TargetMessageID, text, buttons); err != nil {
		return err
	}
	_, err = s.msgr.SendText(ctx, c.TargetRoom, fmt.Sprintf(verifyPromptFmt, c.ExpectedAmount), c.TargetMessageID)
	return err
}

// Verify finalizes the two-choice confirm: the picked amount runs
// through the regular reconciliation path.
func (s *Service) Verify(ctx context.Context, slotID string, amount int) error {
	c, err := s.store.CorrelationBySlot(ctx, slotID)
	if err != nil {
		return err
	}
	out := OutcomeConfirm
	if amount == 0 {
		out = OutcomeNoShow
	}
	if err := s.msgr.EditButtons(ctx, c.TargetRoom, c.TargetMessageID, fmt.Sprintf(workItemClickFmt, c.ExpectedAmount, c.Label), nil); err != nil {
		log.Printf("slot %s: failed to clear verify buttons: %v", slotID, err)
	}
	return s.finish(ctx, c, out, amount)
}
