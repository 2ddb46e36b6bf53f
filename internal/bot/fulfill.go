package bot

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/lumihe/slotbot/internal/slot"
)

var registerSlotRe = regexp.MustCompile(`^设置群\s*(\d+)$`)

func (b *Bot) handleFulfillmentMessage(ctx context.Context, m *discordgo.MessageCreate, content string) {
	// A photo captioned 设置群 N registers a new slot for this room.
	if len(m.Attachments) > 0 {
		if mm := registerSlotRe.FindStringSubmatch(content); mm != nil {
			b.handleRegisterSlot(ctx, m, mm[1])
			return
		}
	}

	replyToID, replyToText := referencedMessage(m)

	if b.isGlobalAdmin(m.Author.ID) && slot.IsAffirmation(content) {
		err := b.svc.ResolveAffirmation(ctx, slot.ApprovalContext{
			Room:         m.ChannelID,
			ReplyToID:    replyToID,
			ReplyToText:  replyToText,
			ApproverID:   m.Author.ID,
			ApproverName: m.Author.Username,
		})
		if err != nil {
			log.Printf("affirmation in %s: %v", m.ChannelID, err)
		}
		return
	}

	// 确认金额 in reply to a work item swaps it to the explicit
	// two-button confirm.
	if content == "确认金额" && replyToID != "" {
		b.handleOfferVerify(ctx, m, replyToID)
		return
	}

	err := b.svc.HandleFulfillment(ctx, slot.FulfillmentEvent{
		Room:        m.ChannelID,
		MessageID:   m.ID,
		ReplyToID:   replyToID,
		ReplyToText: replyToText,
		UserID:      m.Author.ID,
		UserName:    m.Author.Username,
		Text:        content,
	})
	if err != nil {
		log.Printf("fulfillment in %s: %v", m.ChannelID, err)
	}
}

func (b *Bot) handleRegisterSlot(ctx context.Context, m *discordgo.MessageCreate, labelText string) {
	if !b.isGlobalAdmin(m.Author.ID) {
		return
	}
	if ok, err := b.db.IsFulfillmentRoom(ctx, m.ChannelID); err != nil || !ok {
		return
	}
	label, err := strconv.Atoi(labelText)
	if err != nil {
		return
	}

	sl, err := b.svc.RegisterSlot(ctx, m.ChannelID, label, m.Attachments[0].URL)
	if err != nil {
		log.Printf("register slot: %v", err)
		b.reply(m, "❌ 登记失败，请重试。")
		return
	}
	log.Printf("registered slot %s (label %d) in room %s", sl.ID, label, m.ChannelID)
	b.reply(m, "✅ 已登记群 "+strconv.Itoa(label))
}

func (b *Bot) handleOfferVerify(ctx context.Context, m *discordgo.MessageCreate, replyToID string) {
	c, err := b.db.CorrelationByTargetMessage(ctx, m.ChannelID, replyToID)
	if errors.Is(err, slot.ErrNotFound) {
		return
	}
	if err != nil {
		log.Printf("verify offer lookup: %v", err)
		return
	}
	if err := b.svc.OfferVerify(ctx, c.SlotID); err != nil {
		log.Printf("verify offer: %v", err)
	}
}

func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	customID := i.MessageComponentData().CustomID

	// Acknowledge before doing the work; the engine edits the message
	// itself.
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		log.Printf("Failed to ack component interaction: %v", err)
	}

	switch {
	case strings.HasPrefix(customID, "release:"):
		slotID := strings.TrimPrefix(customID, "release:")
		if err := b.svc.Release(ctx, slotID); err != nil {
			log.Printf("release %s: %v", slotID, err)
		}
	case strings.HasPrefix(customID, "verify:"):
		parts := strings.Split(customID, ":")
		if len(parts) != 3 {
			return
		}
		amount, err := strconv.Atoi(parts[2])
		if err != nil {
			return
		}
		if err := b.svc.Verify(ctx, parts[1], amount); err != nil {
			log.Printf("verify %s: %v", parts[1], err)
		}
	}
}

func (b *Bot) reply(m *discordgo.MessageCreate, content string) {
	_, err := b.session.ChannelMessageSendReply(m.ChannelID, content, m.Reference())
	if err != nil {
		log.Printf("Failed to reply in %s: %v", m.ChannelID, err)
	}
}

func referencedMessage(m *discordgo.MessageCreate) (id, text string) {
	if m.MessageReference != nil {
		id = m.MessageReference.MessageID
	}
	if m.ReferencedMessage != nil {
		if id == "" {
			id = m.ReferencedMessage.ID
		}
		text = m.ReferencedMessage.Content
	}
	return id, text
}
