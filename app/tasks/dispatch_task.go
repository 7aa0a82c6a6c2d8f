package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/rss-torrent/app/feed"
)

// maxFeedSize caps how much of a feed response is read.
const maxFeedSize = 8 << 20

type DispatchFeedTask struct {
	Task
	FeedConfig *feed.Config
	httpClient *http.Client
	parser     *feed.Parser
	filterer   *feed.Filterer
	dispatcher *Dispatcher
	seedRatio  float64
	userAgent  string
}

func NewDispatchFeedTask(feedConfig *feed.Config, httpClient *http.Client, parser *feed.Parser, filterer *feed.Filterer, dispatcher *Dispatcher, defaultSeedRatio float64, userAgent string) *DispatchFeedTask {
	seedRatio := defaultSeedRatio
	if feedConfig.Settings.SeedRatio > 0 {
		seedRatio = feedConfig.Settings.SeedRatio
	}

	return &DispatchFeedTask{
		Task:       NewTask(TaskTypeDispatchFeed, feedConfig.Name),
		FeedConfig: feedConfig,
		httpClient: httpClient,
		parser:     parser,
		filterer:   filterer,
		dispatcher: dispatcher,
		seedRatio:  seedRatio,
		userAgent:  userAgent,
	}
}

// Execute fetches, parses and filters the feed, then hands the entries to
// the dispatcher. Fetch and parse failures concern this feed only; an error
// wrapping ErrDispatchAborted must stop the whole dispatch pass.
func (t *DispatchFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.Enabled {
		slog.Debug("Feed disabled, skipping", "feed", t.FeedName)
		return nil
	}

	data, err := t.fetchFeed(ctx, t.FeedConfig.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	entries, err := t.parser.Run(data)
	if err != nil {
		return fmt.Errorf("failed to parse feed: %w", err)
	}

	entries = t.filterer.Run(entries, t.FeedConfig)

	stats, err := t.dispatcher.Run(ctx, entries, t.seedRatio)

	slog.Info("Task completed",
		"type", t.Type,
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"total", stats.Total,
		"seen", stats.Seen,
		"filtered", stats.Filtered,
		"added", stats.Added,
		"failed", stats.Failed)

	return err
}

func (t *DispatchFeedTask) fetchFeed(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(t.FeedConfig.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
