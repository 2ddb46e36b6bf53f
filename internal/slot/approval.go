package slot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

const (
	approvalNoticeFmt = "👤 用户 %s 提交的自定义金额 +%d 需要全局管理员确认"
	approvalDMFmt     = "🔔 自定义金额待确认\n\n👤 操作人：%s (%s)\n💰 原金额：+%d\n✏️ 新金额：+%d\n🔢 群：%d\n\n回复 同意 或 确认 以批准 +%d"
	approvalDoneFmt   = "✅ 金额确认修改：+%d"
	approvedByFmt     = "（由管理员 %s 批准）"

	msgNoPendingApproval = "没有待审批的自定义金额。"
	msgApprovalNotFound  = "未找到对应的待审批金额。"
)

func (s *Service) isApprover(userID string) bool {
	for _, id := range s.approvers {
		if id == userID {
			return true
		}
	}
	return false
}

// IsAffirmation reports whether text is an exact approval token.
func IsAffirmation(text string) bool {
	t := strings.TrimSpace(text)
	return t == "同意" || t == "确认"
}

// Propose records an operator's custom amount for global-admin
// approval and notifies every approver by direct message. The slot
// stays closed until the approval resolves.
func (s *Service) Propose(ctx context.Context, c *Correlation, amount int, ev FulfillmentEvent) error {
	p := &PendingApproval{
		ID:              uuid.NewString(),
		SlotID:          c.SlotID,
		ProposedAmount:  amount,
		ResponderID:     ev.UserID,
		ResponderName:   ev.UserName,
		AnchorMessageID: ev.MessageID,
		ReplyAnchorID:   ev.ReplyToID,
		CreatedAt:       s.now(),
	}
	if err := s.store.CreateApproval(ctx, p); err != nil {
		return err
	}

	if _, err := s.msgr.SendText(ctx, ev.Room, fmt.Sprintf(approvalNoticeFmt, ev.UserName, amount), ev.MessageID); err != nil {
		log.Printf("approval %s: failed to post notice in %s: %v", p.ID, ev.Room, err)
	}
	dm := fmt.Sprintf(approvalDMFmt, ev.UserName, ev.UserID, c.ExpectedAmount, amount, c.Label, amount)
	for _, approver := range s.approvers {
		if _, err := s.msgr.SendDirect(ctx, approver, dm); err != nil {
			log.Printf("approval %s: failed to notify approver %s: %v", p.ID, approver, err)
		}
	}
	return nil
}

// ApprovalContext describes where an approver's affirmation arrived.
type ApprovalContext struct {
	Private      bool
	Room         string
	ReplyToID    string
	ReplyToText  string
	ApproverID   string
	ApproverName string
}

// ResolveAffirmation finds the pending approval an affirmation refers
// to, removes it atomically so only one approver wins, reopens the
// slot and relays the approved amount to the source room.
//
// A private affirmation settles the most recent pending approval. A
// room affirmation must quote either the operator's message or the
// work item; quoting the bot's notice matches by the "+amount" in its
// text.
func (s *Service) ResolveAffirmation(ctx context.Context, ac ApprovalContext) error {
	if !s.isApprover(ac.ApproverID) {
		return ErrUnauthorized
	}

	var p *PendingApproval
	if ac.Private {
		latest, err := s.store.LatestApproval(ctx)
		if errors.Is(err, ErrNotFound) {
			if _, serr := s.msgr.SendDirect(ctx, ac.ApproverID, msgNoPendingApproval); serr != nil {
				log.Printf("failed to notify approver %s: %v", ac.ApproverID, serr)
			}
			return nil
		}
		if err != nil {
			return err
		}
		p = latest
	} else {
		if ac.ReplyToID == "" {
			return nil
		}
		pending, err := s.store.Approvals(ctx)
		if err != nil {
			return err
		}
		for i := range pending {
			if pending[i].AnchorMessageID == ac.ReplyToID || pending[i].ReplyAnchorID == ac.ReplyToID {
				p = &pending[i]
				break
			}
		}
		if p == nil && ac.ReplyToText != "" {
			for i := range pending {
				if strings.Contains(ac.ReplyToText, fmt.Sprintf("+%d", pending[i].ProposedAmount)) {
					p = &pending[i]
					break
				}
			}
		}
		if p == nil {
			if _, serr := s.msgr.SendText(ctx, ac.Room, msgApprovalNotFound, ac.ReplyToID); serr != nil {
				log.Printf("failed to post approval miss in %s: %v", ac.Room, serr)
			}
			return nil
		}
	}

	taken, err := s.store.TakeApproval(ctx, p.ID)
	if errors.Is(err, ErrNotFound) {
		// Another approver already settled it.
		return nil
	}
	if err != nil {
		return err
	}

	c, err := s.store.CorrelationBySlot(ctx, taken.SlotID)
	if errors.Is(err, ErrNotFound) {
		log.Printf("approval %s: correlation for slot %s is gone", taken.ID, taken.SlotID)
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.store.SetSlotStatus(ctx, c.SlotID, StatusOpen); err != nil {
		return err
	}
	if err := s.relay(ctx, c, OutcomeConfirm, taken.ProposedAmount); err != nil {
		log.Printf("approval %s: %v", taken.ID, err)
	}

	note := fmt.Sprintf(approvalDoneFmt, taken.ProposedAmount)
	if ac.Private {
		note += fmt.Sprintf(approvedByFmt, ac.ApproverName)
		if _, err := s.msgr.SendText(ctx, c.TargetRoom, note, taken.ReplyAnchorID); err != nil {
			log.Printf("approval %s: failed to announce in %s: %v", taken.ID, c.TargetRoom, err)
		}
	} else {
		if _, err := s.msgr.SendText(ctx, ac.Room, note, ac.ReplyToID); err != nil {
			log.Printf("approval %s: failed to announce in %s: %v", taken.ID, ac.Room, err)
		}
	}
	return nil
}
