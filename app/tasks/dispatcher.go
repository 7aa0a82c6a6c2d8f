package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/lysyi3m/rss-torrent/app/database"
	"github.com/lysyi3m/rss-torrent/app/feed"
	"github.com/lysyi3m/rss-torrent/app/metrics"
	"github.com/lysyi3m/rss-torrent/app/notify"
	"github.com/lysyi3m/rss-torrent/app/transmission"
)

// ErrDispatchAborted marks a dispatch pass stopped by an unexpected error.
// Entries after the failing one are left for the next cycle.
var ErrDispatchAborted = errors.New("dispatch aborted")

type DispatchStats struct {
	Total    int
	Seen     int
	Filtered int
	Added    int
	Failed   int
}

// Dispatcher submits unseen feed entries to the download daemon and records
// every attempt in the seen store, successful or not.
type Dispatcher struct {
	itemRepo database.ItemRepository
	client   DaemonClient
	notifier notify.Notifier
}

func NewDispatcher(itemRepo database.ItemRepository, client DaemonClient, notifier notify.Notifier) *Dispatcher {
	return &Dispatcher{
		itemRepo: itemRepo,
		client:   client,
		notifier: notifier,
	}
}

// Run processes entries in feed order. Protocol and transport failures are
// recorded with an empty hash and the pass continues; any other failure is
// recorded and stops the pass with ErrDispatchAborted.
func (d *Dispatcher) Run(ctx context.Context, entries []feed.Entry, seedRatio float64) (DispatchStats, error) {
	stats := DispatchStats{Total: len(entries)}

	for _, entry := range entries {
		seen, err := d.itemRepo.Contains(ctx, entry.GUID)
		if err != nil {
			metrics.Submissions.WithLabelValues(metrics.ResultAborted).Inc()
			return stats, fmt.Errorf("%w: failed to check seen store for %s: %w", ErrDispatchAborted, entry.GUID, err)
		}

		if seen {
			slog.Debug("Skipping already processed entry", "guid", entry.GUID, "title", entry.Title)
			metrics.Skipped.WithLabelValues("seen").Inc()
			stats.Seen++
			continue
		}

		if entry.IsFiltered {
			slog.Info("Skipping filtered entry", "guid", entry.GUID, "title", entry.Title, "reason", entry.FilterReason)
			metrics.Skipped.WithLabelValues("filtered").Inc()
			stats.Filtered++
			continue
		}

		slog.Info("Adding new entry", "guid", entry.GUID, "title", entry.Title)

		hash, err := d.submit(ctx, entry, seedRatio)
		abort := false
		switch {
		case err == nil:
			metrics.Submissions.WithLabelValues(metrics.ResultAdded).Inc()
			stats.Added++
		case transmission.IsProtocol(err):
			slog.Error("Daemon rejected entry", "guid", entry.GUID, "title", entry.Title, "error", err)
			metrics.Submissions.WithLabelValues(metrics.ResultRejected).Inc()
			stats.Failed++
		case transmission.IsTransport(err):
			slog.Error("Failed to retrieve entry", "guid", entry.GUID, "title", entry.Title, "error", err)
			metrics.Submissions.WithLabelValues(metrics.ResultFailed).Inc()
			stats.Failed++
		default:
			slog.Error("Unexpected error while adding entry, aborting dispatch",
				"guid", entry.GUID,
				"title", entry.Title,
				"error", err,
				"stack", string(debug.Stack()))
			metrics.Submissions.WithLabelValues(metrics.ResultAborted).Inc()
			stats.Failed++
			abort = true
		}

		if recordErr := d.itemRepo.Record(ctx, entry.GUID, entry.Title, hash); recordErr != nil {
			if errors.Is(recordErr, database.ErrDuplicateKey) {
				slog.Warn("Entry already recorded", "guid", entry.GUID)
			} else {
				return stats, fmt.Errorf("%w: failed to record %s: %w", ErrDispatchAborted, entry.GUID, recordErr)
			}
		}

		if abort {
			return stats, fmt.Errorf("%w: %s: %w", ErrDispatchAborted, entry.GUID, err)
		}
	}

	return stats, nil
}

// submit adds the entry and applies the seed ratio. Once the daemon has
// accepted the entry its hash is returned even when the ratio change fails,
// so the record still points at the real download.
func (d *Dispatcher) submit(ctx context.Context, entry feed.Entry, seedRatio float64) (string, error) {
	torrent, err := d.client.Add(ctx, entry.URI())
	if err != nil {
		return "", err
	}

	changeErr := d.client.Change(ctx, torrent.ID, seedRatio)
	if changeErr != nil {
		changeErr = fmt.Errorf("failed to set seed ratio for %d: %w", torrent.ID, changeErr)
	}

	name := torrent.Name
	if name == "" {
		name = entry.Title
	}
	metrics.Notified(d.notifier.Notify(ctx, "Added: "+name))

	return torrent.HashString, changeErr
}
