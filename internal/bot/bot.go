package bot

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/lumihe/slotbot/internal/db"
	"github.com/lumihe/slotbot/internal/slot"
)

type Bot struct {
	session *discordgo.Session
	db      *db.DB
	svc     *slot.Service
	admins  []string
}

func New(token string, database *db.DB, admins []string) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	bot := &Bot{
		session: session,
		db:      database,
		svc:     slot.New(database, database, NewMessenger(session), admins),
		admins:  admins,
	}

	// Register event handlers
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onGuildCreate)
	session.AddHandler(bot.onMessageCreate)
	session.AddHandler(bot.onInteractionCreate)

	session.Identify.Intents = discordgo.IntentsAll

	return bot, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	log.Println("Discord bot is running")
	return nil
}

func (b *Bot) Stop() error {
	return b.session.Close()
}

// Service exposes the engine for the admin API.
func (b *Bot) Service() *slot.Service {
	return b.svc
}

func (b *Bot) isGlobalAdmin(userID string) bool {
	for _, id := range b.admins {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	log.Printf("%s is connected!", event.User.Username)

	// Register commands for all guilds
	for _, guild := range event.Guilds {
		if err := b.registerGuildCommands(guild.ID); err != nil {
			log.Printf("Failed to register commands for guild %s: %v", guild.ID, err)
		}
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, event *discordgo.GuildCreate) {
	log.Printf("Guild available/joined: %s (id=%s) — ensuring commands", event.Name, event.ID)
	if err := b.registerGuildCommands(event.ID); err != nil {
		log.Printf("Failed to register commands for guild %s: %v", event.ID, err)
	}
}

func (b *Bot) registerGuildCommands(guildID string) error {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:         "percent",
			Description:  "设置需方群的分配比例",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "room",
					Description: "需方群",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "percentage",
					Description: "分配比例 (0-100)",
					Required:    true,
					MinValue:    float64Ptr(0),
					MaxValue:    100,
				},
			},
		},
		{
			Name:         "queue",
			Description:  "查看当前分配队列状态",
			DMPermission: boolPtr(false),
		},
		{
			Name:         "slots",
			Description:  "查看已登记的群码",
			DMPermission: boolPtr(false),
		},
		{
			Name:         "resetstatuses",
			Description:  "重置所有群码为可用状态",
			DMPermission: boolPtr(false),
		},
		{
			Name:         "admin",
			Description:  "添加操作人",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "操作人",
					Required:    true,
				},
			},
		},
	}

	// Delete existing commands and register new ones
	_, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, guildID, commands)
	if err != nil {
		return err
	}

	log.Printf("Registered application commands for guild %s", guildID)
	return nil
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore bot messages
	if m.Author.Bot {
		return
	}
	ctx := context.Background()
	content := strings.TrimSpace(m.Content)

	if m.GuildID == "" {
		b.handleDirectMessage(ctx, m, content)
		return
	}

	if b.isGlobalAdmin(m.Author.ID) && b.handleAdminText(ctx, m, content) {
		return
	}

	if ok, err := b.db.IsIntakeRoom(ctx, m.ChannelID); err != nil {
		log.Printf("intake room lookup: %v", err)
	} else if ok {
		if err := b.svc.HandleIntake(ctx, m.ChannelID, m.ID, m.Author.ID, content); err != nil {
			log.Printf("intake: %v", err)
		}
		return
	}

	if ok, err := b.db.IsFulfillmentRoom(ctx, m.ChannelID); err != nil {
		log.Printf("fulfillment room lookup: %v", err)
	} else if ok {
		b.handleFulfillmentMessage(ctx, m, content)
	}
}

func (b *Bot) handleDirectMessage(ctx context.Context, m *discordgo.MessageCreate, content string) {
	if !b.isGlobalAdmin(m.Author.ID) || !slot.IsAffirmation(content) {
		return
	}
	err := b.svc.ResolveAffirmation(ctx, slot.ApprovalContext{
		Private:      true,
		ApproverID:   m.Author.ID,
		ApproverName: m.Author.Username,
	})
	if err != nil {
		log.Printf("private affirmation: %v", err)
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleApplicationCommand(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	}
}

func (b *Bot) handleApplicationCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Member == nil || !b.isGlobalAdmin(i.Member.User.ID) {
		respond(s, i, "仅限全局管理员使用。")
		return
	}

	data := i.ApplicationCommandData()
	switch data.Name {
	case "percent":
		b.handlePercentCommand(s, i, data)
	case "queue":
		b.handleQueueCommand(s, i)
	case "slots":
		b.handleSlotsCommand(s, i)
	case "resetstatuses":
		b.handleResetStatusesCommand(s, i)
	case "admin":
		b.handleAdminCommand(s, i, data)
	}
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
	if err != nil {
		log.Printf("Failed to respond to interaction: %v", err)
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func float64Ptr(f float64) *float64 {
	return &f
}
