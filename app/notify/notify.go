// Package notify delivers short human-readable messages about added and
// finished downloads. Delivery is best-effort: a Notifier reports whether the
// message went out but never returns an error to the caller.
package notify

import (
	"context"
	"strings"
	"time"
)

const subjectPrefix = "[rss-torrent]"

type Notifier interface {
	Notify(ctx context.Context, message string) bool
}

type Config struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	To           string
	From         string

	NtfyURL   string
	NtfyTopic string

	Timeout   time.Duration
	UserAgent string
}

// New builds the notifier for cfg. Mail is always part of it unless ntfy is
// configured and no mail recipient is, so a setup with neither still warns
// about the missing recipient on every message.
func New(cfg Config) Notifier {
	mailer := NewMailer(cfg)

	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return mailer
	}

	ntfy := NewNtfy(cfg)
	if strings.TrimSpace(cfg.To) == "" {
		return ntfy
	}
	return Multi{mailer, ntfy}
}

// Multi sends every message through all of its notifiers and reports success
// when at least one of them delivered.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, message string) bool {
	delivered := false
	for _, n := range m {
		if n.Notify(ctx, message) {
			delivered = true
		}
	}
	return delivered
}
