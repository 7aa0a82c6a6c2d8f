package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/lysyi3m/rss-torrent/app/database"
	"github.com/lysyi3m/rss-torrent/app/feed"
	"github.com/lysyi3m/rss-torrent/app/metrics"
	"github.com/lysyi3m/rss-torrent/app/notify"
	"github.com/lysyi3m/rss-torrent/app/status"
)

// ErrCycleLocked is returned when another cycle, in this process or another
// one, holds the lock.
var ErrCycleLocked = errors.New("another cycle is running")

type CycleOptions struct {
	ConfigCache *feed.ConfigCache
	ItemRepo    database.ItemRepository
	Client      DaemonClient
	Notifier    notify.Notifier
	HTTPClient  *http.Client
	LockPath    string
	SeedRatio   float64
	UserAgent   string
}

// Cycle is one reconciliation pass: dispatch new entries from every enabled
// feed, then sweep finished downloads off the daemon.
type Cycle struct {
	configCache *feed.ConfigCache
	client      DaemonClient
	notifier    notify.Notifier
	httpClient  *http.Client
	parser      *feed.Parser
	filterer    *feed.Filterer
	dispatcher  *Dispatcher
	lock        *flock.Flock
	seedRatio   float64
	userAgent   string
	running     atomic.Bool
}

func NewCycle(opts CycleOptions) *Cycle {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Cycle{
		configCache: opts.ConfigCache,
		client:      opts.Client,
		notifier:    opts.Notifier,
		httpClient:  httpClient,
		parser:      feed.NewParser(),
		filterer:    feed.NewFilterer(),
		dispatcher:  NewDispatcher(opts.ItemRepo, opts.Client, opts.Notifier),
		lock:        flock.New(opts.LockPath),
		seedRatio:   opts.SeedRatio,
		userAgent:   opts.UserAgent,
	}
}

func (c *Cycle) Running() bool {
	return c.running.Load()
}

// Run executes one cycle. It returns ErrCycleLocked without doing anything
// when the lock is held. A dispatch abort does not prevent the sweep; both
// errors are returned joined.
func (c *Cycle) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		slog.Warn("Cycle already running, skipping")
		metrics.Cycles.WithLabelValues("locked").Inc()
		return ErrCycleLocked
	}
	defer c.running.Store(false)

	locked, err := c.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		slog.Warn("Another instance holds the lock, skipping cycle", "lock", c.lock.Path())
		metrics.Cycles.WithLabelValues("locked").Inc()
		return ErrCycleLocked
	}
	defer func() {
		if err := c.lock.Unlock(); err != nil {
			slog.Warn("Failed to release lock", "lock", c.lock.Path(), "error", err)
		}
	}()

	cycleID := uuid.NewString()
	start := time.Now()
	slog.Info("Cycle started", "cycle_id", cycleID)

	err = c.run(ctx, cycleID)

	duration := time.Since(start)
	metrics.CycleDuration.Observe(duration.Seconds())

	result := "ok"
	if err != nil {
		result = "failed"
		if errors.Is(err, ErrDispatchAborted) {
			result = "aborted"
		}
		slog.Error("Cycle failed", "cycle_id", cycleID, "duration", duration, "error", err)
	} else {
		slog.Info("Cycle completed", "cycle_id", cycleID, "duration", duration)
	}
	metrics.Cycles.WithLabelValues(result).Inc()

	return err
}

func (c *Cycle) run(ctx context.Context, cycleID string) error {
	// An unreachable daemon would turn every new entry into a transport
	// failure and mark it seen, so nothing runs without a session.
	version, err := c.client.ProtocolVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get daemon protocol version: %w", err)
	}
	generation := status.GenerationFor(version)
	slog.Debug("Daemon protocol", "cycle_id", cycleID, "rpc_version", version, "generation", generation)

	dispatchErr := c.dispatch(ctx, cycleID)

	sweepErr := runTask(ctx, cycleID, NewSweepTask(c.client, c.notifier, generation))

	return errors.Join(dispatchErr, sweepErr)
}

func (c *Cycle) dispatch(ctx context.Context, cycleID string) error {
	feedConfigs := c.configCache.GetEnabledConfigs()
	if len(feedConfigs) == 0 {
		slog.Debug("No enabled feed configurations found", "cycle_id", cycleID)
		return nil
	}

	for _, feedConfig := range feedConfigs {
		task := NewDispatchFeedTask(feedConfig, c.httpClient, c.parser, c.filterer, c.dispatcher, c.seedRatio, c.userAgent)

		err := runTask(ctx, cycleID, task)
		if err != nil && (errors.Is(err, ErrDispatchAborted) || ctx.Err() != nil) {
			slog.Error("Dispatch aborted", "cycle_id", cycleID, "feed", task.GetFeedName(), "task_id", task.GetID())
			return err
		}
	}

	return nil
}

// runTask starts and executes a task. A failure is logged with the task's
// identity and returned.
func runTask(ctx context.Context, cycleID string, task TaskInterface) error {
	task.Start()

	err := task.Execute(ctx)
	if err != nil {
		slog.Error("Task failed",
			"cycle_id", cycleID,
			"type", task.GetType(),
			"feed", task.GetFeedName(),
			"task_id", task.GetID(),
			"duration", task.GetDuration(),
			"error", err)
	}
	return err
}
