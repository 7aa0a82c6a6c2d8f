package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"

	"github.com/lysyi3m/rss-torrent/app/metrics"
	"github.com/lysyi3m/rss-torrent/app/notify"
	"github.com/lysyi3m/rss-torrent/app/status"
	"github.com/lysyi3m/rss-torrent/app/transmission"
)

type SweepStats struct {
	Total   int
	Kept    int
	Removed int
	Failed  int
}

// SweepTask removes downloads that reached a terminal state. The daemon's
// status codes are read with the generation chosen for this cycle.
type SweepTask struct {
	Task
	client     DaemonClient
	notifier   notify.Notifier
	generation status.Generation
}

func NewSweepTask(client DaemonClient, notifier notify.Notifier, generation status.Generation) *SweepTask {
	return &SweepTask{
		Task:       NewTask(TaskTypeSweep, ""),
		client:     client,
		notifier:   notifier,
		generation: generation,
	}
}

// Execute fails only when the download list cannot be read. A failure on one
// download is logged and the sweep moves on.
func (t *SweepTask) Execute(ctx context.Context) error {
	_, err := t.Run(ctx)
	return err
}

func (t *SweepTask) Run(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	torrents, err := t.client.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list downloads: %w", err)
	}

	ids := make([]int64, 0, len(torrents))
	for id := range torrents {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	stats.Total = len(ids)
	for _, id := range ids {
		torrent := torrents[id]
		state := t.generation.Classify(torrent.Status)

		if !state.IsTerminal() {
			slog.Debug("Keeping download", "id", id, "name", torrent.Name, "state", state)
			stats.Kept++
			continue
		}

		slog.Info("Removing finished download", "id", id, "name", torrent.Name, "state", state)

		if err := t.remove(ctx, id); err != nil {
			attrs := []any{"id", id, "name", torrent.Name, "state", state, "error", err}
			if !transmission.IsProtocol(err) && !transmission.IsTransport(err) {
				attrs = append(attrs, "stack", string(debug.Stack()))
			}
			slog.Warn("Failed to remove download", attrs...)
			metrics.Removals.WithLabelValues(metrics.ResultFailed).Inc()
			stats.Failed++
		} else {
			metrics.Removals.WithLabelValues(metrics.ResultRemoved).Inc()
			stats.Removed++
		}

		// Every terminal download gets one notification attempt, removed or not.
		metrics.Notified(t.notifier.Notify(ctx, "Finished: "+torrent.Name))
	}

	slog.Info("Task completed",
		"type", t.Type,
		"duration", t.GetDuration(),
		"generation", t.generation,
		"total", stats.Total,
		"kept", stats.Kept,
		"removed", stats.Removed,
		"failed", stats.Failed)

	return stats, nil
}

func (t *SweepTask) remove(ctx context.Context, id int64) error {
	if err := t.client.Stop(ctx, id); err != nil {
		return fmt.Errorf("failed to stop: %w", err)
	}
	if err := t.client.Remove(ctx, id); err != nil {
		return fmt.Errorf("failed to remove: %w", err)
	}
	return nil
}
