package alert

import (
	"context"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"

	"github.com/xxxsen/tripauth/internal/config"
)

type SlackChannel struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

func NewSlackChannel(cfg config.SlackConfig, client *http.Client) (*SlackChannel, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("slack webhook url is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	username := cfg.Username
	if username == "" {
		username = "Trip Builder Alerts"
	}
	icon := cfg.IconEmoji
	if icon == "" {
		icon = ":rotating_light:"
	}
	return &SlackChannel{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		username:   username,
		iconEmoji:  icon,
		client:     client,
	}, nil
}

func (s *SlackChannel) Deliver(ctx context.Context, a Alert) error {
	fields := []slack.AttachmentField{{Title: "Error", Value: a.message()}}
	if a.User != "" {
		fields = append(fields, slack.AttachmentField{Title: "User", Value: a.User, Short: true})
	}
	if a.Action != "" {
		fields = append(fields, slack.AttachmentField{Title: "Action", Value: a.Action, Short: true})
	}
	if a.URL != "" {
		fields = append(fields, slack.AttachmentField{Title: "URL", Value: a.URL, Short: true})
	}
	msg := &slack.WebhookMessage{
		Channel:     s.channel,
		Username:    s.username,
		IconEmoji:   s.iconEmoji,
		Text:        ":rotating_light: *Error Alert*",
		Attachments: []slack.Attachment{{Color: "#ff0000", Fields: fields}},
	}
	return slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.client, msg)
}
