// Package integrations holds the outbound side effects plan steps can
// perform: sending email and reading tabular sheet data.
package integrations

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// Notifier delivers a message to the configured recipient.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// SMTPConfig configures the SMTP notifier. Recipient and sender are fixed
// per deployment; plan steps only supply subject and body.
type SMTPConfig struct {
	Addr     string // host:port
	From     string
	To       string
	Username string
	Password string
}

// SMTPNotifier sends mail over plain SMTP with optional AUTH.
type SMTPNotifier struct {
	cfg SMTPConfig
}

var _ Notifier = (*SMTPNotifier)(nil)

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

func (n *SMTPNotifier) Send(ctx context.Context, subject, body string) error {
	if n.cfg.Addr == "" || n.cfg.To == "" {
		return fmt.Errorf("smtp notifier not configured")
	}

	msg := strings.Join([]string{
		"From: " + n.cfg.From,
		"To: " + n.cfg.To,
		"Subject: " + subject,
		"Date: " + time.Now().UTC().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if n.cfg.Username != "" {
		host := n.cfg.Addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, host)
	}

	// net/smtp has no context support, so run the send in a goroutine and
	// race it against ctx.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(n.cfg.Addr, auth, n.cfg.From, []string{n.cfg.To}, []byte(msg))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogNotifier is a no-op notifier used when SMTP is not configured. It
// records the last message for tests.
type LogNotifier struct {
	LastSubject string
	LastBody    string
}

var _ Notifier = (*LogNotifier)(nil)

func (n *LogNotifier) Send(_ context.Context, subject, body string) error {
	n.LastSubject = subject
	n.LastBody = body
	return nil
}
