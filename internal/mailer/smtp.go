package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/xxxsen/tripauth/internal/config"
)

type smtpSender struct {
	addr string
	from string
	auth smtp.Auth
}

func init() {
	Register("smtp", createSMTPSender)
}

func createSMTPSender(cfg config.MailConfig) (Sender, error) {
	from := strings.TrimSpace(cfg.From)
	if cfg.SMTP.Host == "" || cfg.SMTP.Port == 0 || from == "" {
		return nil, fmt.Errorf("mail.smtp host/port and mail.from are required for smtp mail")
	}
	s := &smtpSender{
		addr: fmt.Sprintf("%s:%d", cfg.SMTP.Host, cfg.SMTP.Port),
		from: from,
	}
	if cfg.SMTP.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Host)
	}
	return s, nil
}

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return smtp.SendMail(s.addr, s.auth, s.from, []string{msg.To}, buildMIME(s.from, msg))
}

func buildMIME(from string, msg Message) []byte {
	contentType := "text/plain; charset=UTF-8"
	body := msg.TextBody
	if msg.HTMLBody != "" {
		contentType = "text/html; charset=UTF-8"
		body = msg.HTMLBody
	}
	return []byte("From: " + from + "\r\n" +
		"To: " + msg.To + "\r\n" +
		"Subject: " + msg.Subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: " + contentType + "\r\n" +
		"\r\n" + body)
}
