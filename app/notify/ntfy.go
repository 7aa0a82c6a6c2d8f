package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type Ntfy struct {
	endpoint  string
	userAgent string
	client    *http.Client
}

func NewNtfy(cfg Config) *Ntfy {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.NtfyURL), "/")
	if base == "" {
		base = "https://ntfy.sh"
	}

	return &Ntfy{
		endpoint:  base + "/" + strings.TrimSpace(cfg.NtfyTopic),
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func (n *Ntfy) Notify(ctx context.Context, message string) bool {
	if err := n.send(ctx, message); err != nil {
		slog.Warn("Failed to send ntfy notification", "endpoint", n.endpoint, "error", err)
		return false
	}
	return true
}

func (n *Ntfy) send(ctx context.Context, message string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", subjectPrefix)
	req.Header.Set("Tags", "rss-torrent")
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
