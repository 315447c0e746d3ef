// internal/service/email/service.go
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mrz1836/postmark"
)

var (
	ErrInvalidConfig = errors.New("invalid email configuration")
	ErrSendFailed    = errors.New("failed to send email")
)

// Message is one outgoing transactional email. BodyHTML is wrapped in the
// site layout before sending.
type Message struct {
	To       string
	Subject  string
	BodyHTML string
	Tag      string
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	ServerToken  string
	AccountToken string
	From         string
	ReplyTo      string
}

// PostmarkSender sends through the Postmark API.
type PostmarkSender struct {
	client  *postmark.Client
	from    string
	replyTo string
}

func NewPostmarkSender(cfg Config) (*PostmarkSender, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: server token is required", ErrInvalidConfig)
	}
	if cfg.AccountToken == "" {
		return nil, fmt.Errorf("%w: account token is required", ErrInvalidConfig)
	}
	if !strings.Contains(cfg.From, "@") {
		return nil, fmt.Errorf("%w: sender address %q is not an email", ErrInvalidConfig, cfg.From)
	}

	return &PostmarkSender{
		client:  postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		from:    cfg.From,
		replyTo: cfg.ReplyTo,
	}, nil
}

func (s *PostmarkSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("%w: recipient is required", ErrSendFailed)
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.from,
		ReplyTo:    s.replyTo,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   buildHTMLTemplate(msg.BodyHTML),
		TrackOpens: true,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error %d: %s", resp.ErrorCode, resp.Message))
	}
	return nil
}

// buildHTMLTemplate wraps a body into the Only You Coaching email layout.
func buildHTMLTemplate(content string) string {
	header := `
	<!DOCTYPE html>
	<html>
	<head>
		<meta charset="utf-8" />
		<title>Only You Coaching</title>
		<style>
			body { font-family: Arial, sans-serif; background-color: #faf7f5; padding: 30px; }
			.container { max-width: 600px; margin: auto; background: #fff; border-radius: 10px; overflow: hidden; }
			.header { background: #b4846c; color: white; text-align: center; padding: 20px; font-size: 22px; font-weight: bold; }
			.footer { background: #f1ece9; color: #555; text-align: center; padding: 15px; font-size: 13px; }
			.body { padding: 25px; color: #333; line-height: 1.6; }
			table.summary td { padding: 4px 12px 4px 0; }
		</style>
	</head>
	<body>
	<div class="container">
		<div class="header">Only You Coaching</div>
		<div class="body">
	`

	footer := `
		</div>
		<div class="footer">
			<p>Only You Coaching - Pilates</p>
		</div>
	</div>
	</body>
	</html>
	`

	return header + strings.TrimSpace(content) + footer
}
