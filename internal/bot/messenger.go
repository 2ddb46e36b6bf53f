package bot

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/lumihe/slotbot/internal/slot"
)

// Messenger adapts a discordgo session to the engine's transport.
// Sends retry transient failures with a short backoff; edits and
// deletes are single-shot.
type Messenger struct {
	session *discordgo.Session
}

func NewMessenger(session *discordgo.Session) *Messenger {
	return &Messenger{session: session}
}

const (
	sendAttempts   = 3
	attemptTimeout = 12 * time.Second
)

func (m *Messenger) sendWithRetry(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		sent, err := m.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(sendCtx))
		cancel()
		if err == nil {
			return sent, nil
		}
		lastErr = err
		if !isTemporaryOrTimeout(err) {
			return nil, err
		}
		// Back off a bit longer each attempt so we don't hammer Discord.
		time.Sleep(time.Duration(attempt)*300*time.Millisecond + time.Duration(rand.Intn(300))*time.Millisecond)
	}
	return nil, lastErr
}

func isTemporaryOrTimeout(err error) bool {
	if err == nil {
		return false
	}
	if ne, ok := err.(net.Error); ok {
		return ne.Timeout() || ne.Temporary()
	}
	return false
}

func reference(channelID, messageID string) *discordgo.MessageReference {
	if messageID == "" {
		return nil
	}
	return &discordgo.MessageReference{ChannelID: channelID, MessageID: messageID}
}

func (m *Messenger) SendText(ctx context.Context, room, text, replyTo string) (string, error) {
	sent, err := m.sendWithRetry(ctx, room, &discordgo.MessageSend{
		Content:   text,
		Reference: reference(room, replyTo),
	})
	if err != nil {
		return "", fmt.Errorf("failed to send message to %s: %w", room, err)
	}
	return sent.ID, nil
}

func (m *Messenger) SendPhoto(ctx context.Context, room, photoURL, caption, replyTo string) (string, error) {
	sent, err := m.sendWithRetry(ctx, room, &discordgo.MessageSend{
		Content: caption,
		Embeds: []*discordgo.MessageEmbed{
			{Image: &discordgo.MessageEmbedImage{URL: photoURL}},
		},
		Reference: reference(room, replyTo),
	})
	if err != nil {
		return "", fmt.Errorf("failed to send photo to %s: %w", room, err)
	}
	return sent.ID, nil
}

func (m *Messenger) SendButtons(ctx context.Context, room, text string, buttons []slot.Button) (string, error) {
	sent, err := m.sendWithRetry(ctx, room, &discordgo.MessageSend{
		Content:    text,
		Components: buttonRows(buttons),
	})
	if err != nil {
		return "", fmt.Errorf("failed to send message to %s: %w", room, err)
	}
	return sent.ID, nil
}

func (m *Messenger) EditText(ctx context.Context, room, messageID, text string) error {
	_, err := m.session.ChannelMessageEdit(room, messageID, text, discordgo.WithContext(ctx))
	return err
}

func (m *Messenger) EditButtons(ctx context.Context, room, messageID, text string, buttons []slot.Button) error {
	_, err := m.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    room,
		ID:         messageID,
		Content:    &text,
		Components: buttonRows(buttons),
	}, discordgo.WithContext(ctx))
	return err
}

func (m *Messenger) DeleteMessage(ctx context.Context, room, messageID string) error {
	return m.session.ChannelMessageDelete(room, messageID, discordgo.WithContext(ctx))
}

func (m *Messenger) SendDirect(ctx context.Context, userID, text string) (string, error) {
	ch, err := m.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to open DM with %s: %w", userID, err)
	}
	return m.SendText(ctx, ch.ID, text, "")
}

// ScheduleDelete removes a message after delay. Fire-and-forget: no
// cancellation, a failed delete is only logged.
func (m *Messenger) ScheduleDelete(room, messageID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		if err := m.session.ChannelMessageDelete(room, messageID); err != nil {
			log.Printf("failed to delete message %s in %s: %v", messageID, room, err)
		}
	})
}

func buttonRows(buttons []slot.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return []discordgo.MessageComponent{}
	}
	row := discordgo.ActionsRow{}
	for _, b := range buttons {
		row.Components = append(row.Components, discordgo.Button{
			Label:    b.Label,
			CustomID: b.ID,
			Style:    discordgo.PrimaryButton,
			Disabled: b.Disabled,
		})
	}
	return []discordgo.MessageComponent{row}
}
