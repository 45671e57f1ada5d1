package gateway

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordSink mirrors world events into a Discord channel. One-way:
// observers that want to talk back use the websocket protocol.
type DiscordSink struct {
	session   *discordgo.Session
	channelID string
	logger    *zap.Logger
}

// NewDiscordSink opens a Discord session for announcements.
func NewDiscordSink(botToken, channelID string, logger *zap.Logger) (*DiscordSink, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("open discord session: %w", err)
	}
	logger.Info("discord sink connected", zap.String("channel", channelID))
	return &DiscordSink{session: session, channelID: channelID, logger: logger}, nil
}

// Announce posts a rendered event to the configured channel. Best-effort:
// a failed post is logged, never surfaced.
func (d *DiscordSink) Announce(_ context.Context, ev Event) {
	text := renderEvent(ev)
	if text == "" {
		return
	}
	if _, err := d.session.ChannelMessageSend(d.channelID, text); err != nil {
		d.logger.Warn("discord announce failed", zap.Error(err))
	}
}

// Close shuts down the Discord session.
func (d *DiscordSink) Close() error {
	return d.session.Close()
}

// renderEvent turns an event into a chat-friendly line. State snapshots
// are skipped; they are too chatty for announcement channels.
func renderEvent(ev Event) string {
	switch ev.Type {
	case EventChatMessage:
		if p, ok := ev.Payload.(ChatPayload); ok {
			name := p.Sender
			if name == "" {
				name = p.SenderID
			}
			return fmt.Sprintf("**%s**: %s", name, p.Text)
		}
	case EventAgentAction:
		if p, ok := ev.Payload.(AgentActionPayload); ok {
			return fmt.Sprintf("*%s*: %s", p.AgentID, p.Message)
		}
	}
	return ""
}
