package session

import (
	"context"
	"fmt"
	"time"

	"github.com/foxseedlab/kikitori/internal/discord"
	"github.com/foxseedlab/kikitori/internal/notify"
	"github.com/foxseedlab/kikitori/internal/webhook"
)

// NewWebhookListener posts every completion as a JSON payload.
func NewWebhookListener(sender webhook.Sender, timezone string, loc *time.Location) notify.Listener {
	return notify.ListenerFunc(func(ctx context.Context, c notify.Completion) error {
		return sender.SendTranscript(ctx, buildTranscriptWebhookPayload(c, timezone, loc))
	})
}

// NewDiscordListener posts a completion message to channelID, attaching the
// transcript when there is one.
func NewDiscordListener(client discord.Client, channelID, timezone string, loc *time.Location) notify.Listener {
	return notify.ListenerFunc(func(_ context.Context, c notify.Completion) error {
		content := buildCompletionMessage(c)
		if c.Err != nil || c.Text == "" {
			return client.SendChannelMessage(channelID, content)
		}
		return client.SendChannelMessageWithFile(discord.FileMessage{
			ChannelID: channelID,
			Content:   content,
			Filename:  fmt.Sprintf("transcript-%s.txt", c.SessionID),
			FileBody:  buildTranscriptText(c, timezone, loc),
		})
	})
}
