package mailer

import (
	"context"
	"fmt"

	"github.com/mrz1836/postmark"

	"github.com/xxxsen/tripauth/internal/config"
)

type postmarkSender struct {
	client  *postmark.Client
	from    string
	replyTo string
}

func init() {
	Register("postmark", createPostmarkSender)
}

func createPostmarkSender(cfg config.MailConfig) (Sender, error) {
	if cfg.Postmark.ServerToken == "" || cfg.Postmark.AccountToken == "" {
		return nil, fmt.Errorf("mail.postmark server_token/account_token are required for postmark mail")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mail.from is required for postmark mail")
	}
	return &postmarkSender{
		client:  postmark.NewClient(cfg.Postmark.ServerToken, cfg.Postmark.AccountToken),
		from:    cfg.From,
		replyTo: cfg.ReplyTo,
	}, nil
}

func (s *postmarkSender) Send(ctx context.Context, msg Message) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.from,
		ReplyTo:  s.replyTo,
		To:       msg.To,
		Subject:  msg.Subject,
		Tag:      msg.Tag,
		HTMLBody: msg.HTMLBody,
		TextBody: msg.TextBody,
	})
	if err != nil {
		return fmt.Errorf("postmark send: %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
	}
	return nil
}
