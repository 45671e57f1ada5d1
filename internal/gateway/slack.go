package gateway

import (
	"context"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// SlackSink mirrors world events into a Slack channel, same contract
// as DiscordSink.
type SlackSink struct {
	client    *slack.Client
	channelID string
	logger    *zap.Logger
}

// NewSlackSink creates a Slack announcement sink.
func NewSlackSink(botToken, channelID string, logger *zap.Logger) *SlackSink {
	return &SlackSink{
		client:    slack.New(botToken),
		channelID: channelID,
		logger:    logger,
	}
}

// Announce posts a rendered event to the configured channel.
func (s *SlackSink) Announce(ctx context.Context, ev Event) {
	text := renderEvent(ev)
	if text == "" {
		return
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channelID,
		slack.MsgOptionText(text, false))
	if err != nil {
		s.logger.Warn("slack announce failed", zap.Error(err))
	}
}
