package feed

import (
	"time"
)

// Entry is one download announcement from a feed.
type Entry struct {
	GUID  string
	Title string
	Link  string
	// GUIDIsLink is set when the guid itself is the URI to download.
	GUIDIsLink  bool
	Categories  []string
	PublishedAt *time.Time

	IsFiltered   bool
	FilterReason string
}

// URI returns the address to hand to the download daemon.
func (e Entry) URI() string {
	if e.GUIDIsLink {
		return e.GUID
	}
	return e.Link
}

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled   bool    `yaml:"enabled"`
	SeedRatio float64 `yaml:"seed_ratio"` // 0 falls back to the global ratio
	Timeout   int     `yaml:"timeout"`    // seconds
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
