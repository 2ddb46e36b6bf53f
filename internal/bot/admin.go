package bot

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/lumihe/slotbot/internal/slot"
)

var resetLabelRe = regexp.MustCompile(`^重置群\s*(\d+)$`)

// handleAdminText runs the global-admin text commands. Returns true
// when the message was one of them.
func (b *Bot) handleAdminText(ctx context.Context, m *discordgo.MessageCreate, content string) bool {
	switch content {
	case "设置群聊A":
		if err := b.db.AddIntakeRoom(ctx, m.ChannelID); err != nil {
			log.Printf("add intake room: %v", err)
			b.reply(m, "❌ 设置失败，请重试。")
			return true
		}
		b.reply(m, "✅ 本群已设置为A群")
		return true

	case "设置群聊B":
		if err := b.db.AddFulfillmentRoom(ctx, m.ChannelID); err != nil {
			log.Printf("add fulfillment room: %v", err)
			b.reply(m, "❌ 设置失败，请重试。")
			return true
		}
		b.reply(m, "✅ 本群已设置为B群")
		return true

	case "解散群聊":
		if err := b.db.RemoveRoom(ctx, m.ChannelID); err != nil {
			log.Printf("remove room: %v", err)
			b.reply(m, "❌ 解散失败，请重试。")
			return true
		}
		n, err := b.svc.RemoveRoomSlots(ctx, m.ChannelID)
		if err != nil {
			log.Printf("remove room slots: %v", err)
		}
		b.reply(m, fmt.Sprintf("✅ 已解散本群，清除群码 %d 个", n))
		return true

	case "设置操作人":
		b.handleSetOperator(ctx, m)
		return true

	case "重置群码":
		if err := b.svc.ReopenAll(ctx); err != nil {
			log.Printf("reopen all: %v", err)
			b.reply(m, "❌ 重置失败，请重试。")
			return true
		}
		if err := b.svc.ResetQueue(ctx); err != nil {
			log.Printf("reset queue: %v", err)
		}
		b.reply(m, "✅ 已重置所有群码")
		return true

	case "设置点击模式":
		enabled, err := b.db.ClickMode(ctx, m.ChannelID)
		if err != nil {
			log.Printf("click mode lookup: %v", err)
			return true
		}
		if err := b.db.SetClickMode(ctx, m.ChannelID, !enabled); err != nil {
			log.Printf("set click mode: %v", err)
			b.reply(m, "❌ 设置失败，本群可能不是B群。")
			return true
		}
		if enabled {
			b.reply(m, "✅ 点击模式已关闭")
		} else {
			b.reply(m, "✅ 点击模式已开启")
		}
		return true

	case "开启转发":
		if err := b.db.SetForwarding(ctx, true); err != nil {
			log.Printf("set forwarding: %v", err)
			return true
		}
		b.reply(m, "✅ 转发已开启")
		return true

	case "关闭转发":
		if err := b.db.SetForwarding(ctx, false); err != nil {
			log.Printf("set forwarding: %v", err)
			return true
		}
		b.reply(m, "✅ 转发已关闭")
		return true

	case "转发状态":
		enabled, err := b.db.ForwardingEnabled(ctx)
		if err != nil {
			log.Printf("forwarding lookup: %v", err)
			return true
		}
		if enabled {
			b.reply(m, "📡 转发状态：开启")
		} else {
			b.reply(m, "📡 转发状态：关闭")
		}
		return true
	}

	if mm := resetLabelRe.FindStringSubmatch(content); mm != nil {
		b.handleResetLabel(ctx, m, mm[1])
		return true
	}
	return false
}

func (b *Bot) handleSetOperator(ctx context.Context, m *discordgo.MessageCreate) {
	var target *discordgo.User
	if len(m.Mentions) > 0 {
		target = m.Mentions[0]
	} else if m.ReferencedMessage != nil && m.ReferencedMessage.Author != nil {
		target = m.ReferencedMessage.Author
	}
	if target == nil {
		b.reply(m, "请回复或@要设置的操作人。")
		return
	}
	if err := b.db.AddOperator(ctx, m.ChannelID, target.ID, m.Author.ID); err != nil {
		log.Printf("add operator: %v", err)
		b.reply(m, "❌ 设置失败，请重试。")
		return
	}
	b.reply(m, fmt.Sprintf("✅ 已设置操作人 %s", target.Username))
}

// handleResetLabel reopens the slots of one group number in this room.
func (b *Bot) handleResetLabel(ctx context.Context, m *discordgo.MessageCreate, labelText string) {
	label, err := strconv.Atoi(labelText)
	if err != nil {
		return
	}
	slots, err := b.db.SlotsInCreationOrder(ctx)
	if err != nil {
		log.Printf("reset label %d: %v", label, err)
		return
	}
	n := 0
	for i := range slots {
		if slots[i].Label != label || slots[i].AffinityRoom != m.ChannelID {
			continue
		}
		if err := b.db.SetSlotStatus(ctx, slots[i].ID, slot.StatusOpen); err != nil {
			log.Printf("reset label %d: %v", label, err)
			continue
		}
		n++
	}
	if n == 0 {
		b.reply(m, fmt.Sprintf("未找到群 %d 的群码。", label))
		return
	}
	b.reply(m, fmt.Sprintf("✅ 已重置群 %d", label))
}

func (b *Bot) handlePercentCommand(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	var roomID string
	var percentage int
	for _, opt := range data.Options {
		switch opt.Name {
		case "room":
			roomID = opt.ChannelValue(s).ID
		case "percentage":
			percentage = int(opt.IntValue())
		}
	}

	if err := b.db.SetRoomPercentage(context.Background(), roomID, percentage); err != nil {
		respond(s, i, "设置失败，该群可能不是B群。")
		return
	}
	respond(s, i, fmt.Sprintf("✅ 已设置 <#%s> 的分配比例为 %d%%", roomID, percentage))
}

func (b *Bot) handleQueueCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	st, err := b.svc.Status(context.Background())
	if err != nil {
		respond(s, i, "查询失败，请重试。")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 队列状态\n总数：%d\n可用：%d\n占用：%d\n当前位置：%d", st.Total, st.Open, st.Closed, st.MaxPosition)
	if st.Current != nil {
		fmt.Fprintf(&sb, "\n当前：群%d", st.Current.Label)
	}
	if st.Next != nil {
		fmt.Fprintf(&sb, "\n下一个：群%d", st.Next.Label)
	}
	respond(s, i, sb.String())
}

func (b *Bot) handleSlotsCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	st, err := b.svc.Status(context.Background())
	if err != nil {
		respond(s, i, "查询失败，请重试。")
		return
	}
	if len(st.Order) == 0 {
		respond(s, i, "暂无已登记的群码。")
		return
	}

	var sb strings.Builder
	sb.WriteString("🗂 群码列表")
	for _, sl := range st.Order {
		status := "可用"
		if sl.Status == slot.StatusClosed {
			status = "占用"
		}
		fmt.Fprintf(&sb, "\n群%d — %s，位置 %d，<#%s>", sl.Label, status, sl.QueuePos, sl.AffinityRoom)
	}
	respond(s, i, sb.String())
}

func (b *Bot) handleResetStatusesCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := b.svc.ReopenAll(context.Background()); err != nil {
		respond(s, i, "重置失败，请重试。")
		return
	}
	respond(s, i, "✅ 已重置所有群码为可用状态")
}

func (b *Bot) handleAdminCommand(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	var user *discordgo.User
	for _, opt := range data.Options {
		if opt.Name == "user" {
			user = opt.UserValue(s)
		}
	}
	if user == nil {
		respond(s, i, "未指定操作人。")
		return
	}
	if err := b.db.AddOperator(context.Background(), i.ChannelID, user.ID, i.Member.User.ID); err != nil {
		respond(s, i, "设置失败，请重试。")
		return
	}
	respond(s, i, fmt.Sprintf("✅ 已设置操作人 %s", user.Username))
}
