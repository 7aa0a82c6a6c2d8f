package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

type Mailer struct {
	host     string
	port     int
	user     string
	password string
	to       string
	from     string
	timeout  time.Duration

	send func(ctx context.Context, msg *mail.Msg) error
}

func NewMailer(cfg Config) *Mailer {
	m := &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		to:       strings.TrimSpace(cfg.To),
		from:     strings.TrimSpace(cfg.From),
		timeout:  cfg.Timeout,
	}
	m.send = m.dialAndSend
	return m
}

func (m *Mailer) Notify(ctx context.Context, message string) bool {
	if m.to == "" {
		slog.Warn("No notification recipient configured, not sending notification", "message", message)
		return false
	}

	msg, err := m.buildMessage(message)
	if err != nil {
		slog.Warn("Failed to build notification mail", "message", message, "error", err)
		return false
	}

	if err := m.send(ctx, msg); err != nil {
		slog.Warn("Failed to send notification mail", "to", m.to, "host", m.host, "port", m.port, "error", err)
		return false
	}

	slog.Debug("Notification mail sent", "to", m.to, "message", message)
	return true
}

func (m *Mailer) buildMessage(message string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.from, err)
	}
	if err := msg.To(m.to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", m.to, err)
	}
	msg.Subject(fmt.Sprintf("%s %s", subjectPrefix, message))
	msg.SetBodyString(mail.TypeTextPlain, message)
	return msg, nil
}

func (m *Mailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.timeout > 0 {
		opts = append(opts, mail.WithTimeout(m.timeout))
	}
	if m.user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.user),
			mail.WithPassword(m.password),
		)
	}

	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
