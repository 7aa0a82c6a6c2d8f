package tasks

import (
	"context"

	"github.com/lysyi3m/rss-torrent/app/transmission"
)

// DaemonClient is the part of the download daemon API the pipeline drives.
// Errors are classified with transmission.IsProtocol and
// transmission.IsTransport; anything else is treated as unexpected.
type DaemonClient interface {
	ProtocolVersion(ctx context.Context) (int, error)
	Add(ctx context.Context, uri string) (transmission.Torrent, error)
	Change(ctx context.Context, id int64, seedRatioLimit float64) error
	Info(ctx context.Context, id int64) (transmission.Torrent, error)
	List(ctx context.Context) (map[int64]transmission.Torrent, error)
	Stop(ctx context.Context, id int64) error
	Remove(ctx context.Context, id int64) error
}

var _ DaemonClient = (*transmission.Client)(nil)

// CycleRunner runs one full reconciliation pass. Used by the scheduler and
// the API to trigger cycles.
type CycleRunner interface {
	Run(ctx context.Context) error
	Running() bool
}

var _ CycleRunner = (*Cycle)(nil)

// TaskSchedulerInterface is what the API and main need from the scheduler.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	Trigger(reason string) bool
	IsRunning() bool
}
