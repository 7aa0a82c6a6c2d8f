package api

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-torrent/app/database"
	"github.com/lysyi3m/rss-torrent/app/feed"
	"github.com/lysyi3m/rss-torrent/app/tasks"
	"github.com/lysyi3m/rss-torrent/app/transmission"
)

// DaemonReader is the read-only part of the daemon client the API needs.
type DaemonReader interface {
	ProtocolVersion(ctx context.Context) (int, error)
	List(ctx context.Context) (map[int64]transmission.Torrent, error)
	Info(ctx context.Context, id int64) (transmission.Torrent, error)
}

var _ DaemonReader = (*transmission.Client)(nil)

type Handler struct {
	configCache *feed.ConfigCache
	itemRepo    database.ItemRepository
	client      DaemonReader
	scheduler   tasks.TaskSchedulerInterface
	version     string
	startedAt   time.Time
}

type downloadView struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	HashString  string  `json:"hash_string"`
	Status      int     `json:"status"`
	State       string  `json:"state"`
	Terminal    bool    `json:"terminal"`
	PercentDone float64 `json:"percent_done"`
	UploadRatio float64 `json:"upload_ratio"`
}

type historyView struct {
	GUID       string `json:"guid"`
	Title      string `json:"title"`
	HashString string `json:"hash_string"`
	Submitted  bool   `json:"submitted"`
}
