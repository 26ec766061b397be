// Package webhook posts plain-text messages to team-chat incoming webhooks.
package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	httpclient "birdwatch-support/internal/common/http"
)

// Message is the Discord-compatible incoming webhook payload.
type Message struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

// Poster sends a message to a named channel.
type Poster interface {
	Post(ctx context.Context, channel, content string) error
}

// ErrUnknownChannel is returned when no URL is configured for a channel.
type ErrUnknownChannel struct {
	Channel string
}

func (e *ErrUnknownChannel) Error() string {
	return fmt.Sprintf("no webhook configured for channel %q", e.Channel)
}

// Client posts to the URL configured for each channel.
type Client struct {
	http     *httpclient.Client
	channels map[string]string
	username string
}

func NewClient(http *httpclient.Client, channels map[string]string, username string) *Client {
	return &Client{http: http, channels: channels, username: username}
}

// Post delivers content to channel. The response body is not consumed beyond
// an error excerpt; any non-2xx status is an error.
func (c *Client) Post(ctx context.Context, channel, content string) error {
	url, ok := c.channels[channel]
	if !ok || url == "" {
		return &ErrUnknownChannel{Channel: channel}
	}

	resp, err := c.http.PostJSON(ctx, url, Message{Content: content, Username: c.username}, nil)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}
	return nil
}
