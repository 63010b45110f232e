package discord

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/kikitori/internal/discord"
)

// maxMessageRunes is Discord's limit for the content of one message.
const maxMessageRunes = 2000

type Client struct {
	session *discordgo.Session
}

// NewClient builds a REST-only client; no gateway connection is opened.
func NewClient(token string) (discordpkg.Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	return &Client{session: s}, nil
}

func (c *Client) Close() error {
	return nil
}

func (c *Client) SendChannelMessage(channelID, content string) error {
	_, err := c.session.ChannelMessageSend(channelID, truncateMessage(content))
	return describeRESTError(channelID, err)
}

func (c *Client) SendChannelMessageWithFile(msg discordpkg.FileMessage) error {
	_, err := c.session.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Content: truncateMessage(msg.Content),
		Files: []*discordgo.File{
			{Name: msg.Filename, ContentType: "text/plain", Reader: bytes.NewReader(msg.FileBody)},
		},
	})
	return describeRESTError(msg.ChannelID, err)
}

func truncateMessage(content string) string {
	runes := []rune(content)
	if len(runes) <= maxMessageRunes {
		return content
	}
	return string(runes[:maxMessageRunes-1]) + "…"
}

func describeRESTError(channelID string, err error) error {
	if err == nil {
		return nil
	}
	if isRESTNotFound(err) {
		return fmt.Errorf("discord channel %s not found: %w", channelID, err)
	}
	return err
}

func isRESTNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}
