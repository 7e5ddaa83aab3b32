package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ph-top5-bot/internal/model"
)

// Client is a minimal HTTP client for the Discord channel-messages REST API.
type Client struct {
	baseURL   string
	token     string
	channelID string
	http      *http.Client
}

// EmbedOptions tunes the published embed.
type EmbedOptions struct {
	IncludeThumbnail bool
	Color            int
	FooterText       string
}

// MessageResult is the outcome of a post/edit call.
type MessageResult struct {
	Success   bool
	MessageID string
	Err       string
}

// New creates a new Discord client for one channel.
// baseURL defaults to the v10 REST endpoint when empty.
func New(baseURL, token, channelID string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://discord.com/api/v10"
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		channelID: channelID,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

type embedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type embedThumbnail struct {
	URL string `json:"url"`
}

type embed struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Color       int             `json:"color,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
	Footer      *embedFooter    `json:"footer,omitempty"`
	Thumbnail   *embedThumbnail `json:"thumbnail,omitempty"`
}

type messagePayload struct {
	Embeds []embed `json:"embeds"`
}

type messageResponse struct {
	ID string `json:"id"`
}

// buildEmbed renders the ranked posts as a single rich embed.
func buildEmbed(posts []model.Post, dateString string, opts EmbedOptions) embed {
	lines := make([]string, 0, len(posts))
	for _, p := range posts {
		lines = append(lines, fmt.Sprintf("**#%d • %s**\n%s\n👍 %d | [View on Product Hunt](%s)",
			p.Rank, p.Name, p.Tagline, p.Votes, p.URL))
	}
	color := opts.Color
	if color == 0 {
		color = 0xda552f
	}
	footer := opts.FooterText
	if footer == "" {
		footer = "Auto-updating until midnight PT"
	}
	e := embed{
		Title:       fmt.Sprintf("Top %d on Product Hunt — %s", len(posts), dateString),
		Description: strings.Join(lines, "\n\n"),
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Footer: &embedFooter{
			Text:    footer,
			IconURL: "https://ph-static.imgix.net/ph-logo.png",
		},
	}
	if opts.IncludeThumbnail && len(posts) > 0 && posts[0].Thumbnail != "" {
		e.Thumbnail = &embedThumbnail{URL: posts[0].Thumbnail}
	}
	return e
}

// PostTopPosts publishes a new message with the ranked posts and returns the
// created message id.
func (c *Client) PostTopPosts(ctx context.Context, posts []model.Post, dateString string, opts EmbedOptions) MessageResult {
	url := fmt.Sprintf("%s/channels/%s/messages", c.baseURL, c.channelID)
	var out messageResponse
	if err := c.send(ctx, http.MethodPost, url, messagePayload{Embeds: []embed{buildEmbed(posts, dateString, opts)}}, &out); err != nil {
		slog.Error("discord: post failed", "channel", c.channelID, "error", err)
		return MessageResult{Success: false, Err: err.Error()}
	}
	slog.Info("discord: message posted", "message_id", out.ID, "posts", len(posts))
	return MessageResult{Success: true, MessageID: out.ID}
}

// EditTopPosts replaces the embed of an existing message in place.
func (c *Client) EditTopPosts(ctx context.Context, messageID string, posts []model.Post, dateString string, opts EmbedOptions) MessageResult {
	if strings.TrimSpace(messageID) == "" {
		return MessageResult{Success: false, Err: "empty message id"}
	}
	url := fmt.Sprintf("%s/channels/%s/messages/%s", c.baseURL, c.channelID, messageID)
	var out messageResponse
	if err := c.send(ctx, http.MethodPatch, url, messagePayload{Embeds: []embed{buildEmbed(posts, dateString, opts)}}, &out); err != nil {
		slog.Error("discord: edit failed", "message_id", messageID, "error", err)
		return MessageResult{Success: false, Err: err.Error()}
	}
	slog.Info("discord: message edited", "message_id", messageID, "posts", len(posts))
	return MessageResult{Success: true, MessageID: messageID}
}

// DeleteMessage removes a message; returns false on any failure.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) bool {
	url := fmt.Sprintf("%s/channels/%s/messages/%s", c.baseURL, c.channelID, messageID)
	if err := c.send(ctx, http.MethodDelete, url, nil, nil); err != nil {
		slog.Error("discord: delete failed", "message_id", messageID, "error", err)
		return false
	}
	return true
}

// TestConnection verifies the token can see the configured channel.
func (c *Client) TestConnection(ctx context.Context) error {
	url := fmt.Sprintf("%s/channels/%s", c.baseURL, c.channelID)
	return c.send(ctx, http.MethodGet, url, nil, nil)
}

func (c *Client) send(ctx context.Context, method, url string, payload any, out any) error {
	if c == nil {
		return errors.New("nil discord client")
	}
	var body io.Reader = http.NoBody
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discord: %s %s failed: status=%d body=%s", method, url, resp.StatusCode, string(b))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}
	return nil
}
