package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath   string `long:"db-path" env:"DB_PATH" default:"./rss-torrent.db" description:"SQLite database recording processed feed entries"`
	FeedsDir string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed configuration files"`
	LockFile string `long:"lock-file" env:"LOCK_FILE" default:"./rss-torrent.lock" description:"Lock file preventing overlapping runs"`
	LogFile  string `long:"log-file" env:"LOG_FILE" description:"Also write logs to this file (optional)"`

	// Download daemon
	TransmissionURL      string  `long:"transmission-url" env:"TRANSMISSION_URL" default:"http://localhost:9091/transmission/rpc" description:"Transmission RPC endpoint"`
	TransmissionUser     string  `long:"transmission-user" env:"TRANSMISSION_USER" description:"Transmission RPC user (optional)"`
	TransmissionPassword string  `long:"transmission-password" env:"TRANSMISSION_PASSWORD" description:"Transmission RPC password (optional)"`
	TransmissionTimeout  int     `long:"transmission-timeout" env:"TRANSMISSION_TIMEOUT" default:"30" description:"Transmission RPC timeout in seconds"`
	DaemonFetch          bool    `long:"daemon-fetch" env:"DAEMON_FETCH" description:"Let the daemon download http(s) torrent files itself"`
	SeedRatio            float64 `long:"seed-ratio" env:"SEED_RATIO" default:"1.0" description:"Seed ratio limit applied to added torrents"`

	// Notifications
	SMTPHost     string `long:"smtp-host" env:"SMTP_HOST" default:"localhost" description:"SMTP relay host"`
	SMTPPort     int    `long:"smtp-port" env:"SMTP_PORT" default:"25" description:"SMTP relay port"`
	SMTPUser     string `long:"smtp-user" env:"SMTP_USER" description:"SMTP user (optional)"`
	SMTPPassword string `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password (optional)"`
	NotifyTo     string `long:"notify-to" env:"NOTIFY_TO" description:"Notification mail recipient"`
	NotifyFrom   string `long:"notify-from" env:"NOTIFY_FROM" default:"rss-torrent@localhost" description:"Notification mail sender"`
	NtfyURL      string `long:"ntfy-url" env:"NTFY_URL" default:"https://ntfy.sh" description:"ntfy server URL"`
	NtfyTopic    string `long:"ntfy-topic" env:"NTFY_TOPIC" description:"ntfy topic for push notifications (optional)"`

	// Serve mode
	Serve        bool   `long:"serve" env:"SERVE" description:"Keep running: schedule cycles and serve the status API"`
	Schedule     string `long:"schedule" env:"SCHEDULE" default:"*/15 * * * *" description:"Cron schedule for cycles in serve mode"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port in serve mode"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"rss-torrent/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses the command line and environment. It returns nil, nil when
// help was requested.
func Load() (*Cfg, error) {
	cfg, err := parse(os.Args[1:])
	if err != nil || cfg == nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:               raw.DBPath,
		FeedsDir:             raw.FeedsDir,
		LockFile:             raw.LockFile,
		LogFile:              raw.LogFile,
		TransmissionURL:      raw.TransmissionURL,
		TransmissionUser:     raw.TransmissionUser,
		TransmissionPassword: raw.TransmissionPassword,
		TransmissionTimeout:  raw.TransmissionTimeout,
		DaemonFetch:          raw.DaemonFetch,
		SeedRatio:            raw.SeedRatio,
		SMTPHost:             raw.SMTPHost,
		SMTPPort:             raw.SMTPPort,
		SMTPUser:             raw.SMTPUser,
		SMTPPassword:         raw.SMTPPassword,
		NotifyTo:             raw.NotifyTo,
		NotifyFrom:           raw.NotifyFrom,
		NtfyURL:              raw.NtfyURL,
		NtfyTopic:            raw.NtfyTopic,
		Serve:                raw.Serve,
		Schedule:             raw.Schedule,
		Port:                 raw.Port,
		APIAccessKey:         raw.APIAccessKey,
		UserAgent:            raw.UserAgent,
		Timezone:             raw.Timezone,
		Debug:                raw.Debug,
		Version:              GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Cfg) error {
	if cfg.SeedRatio < 0 {
		return fmt.Errorf("seed ratio must be non-negative, got %v", cfg.SeedRatio)
	}
	if cfg.TransmissionTimeout <= 0 {
		return fmt.Errorf("transmission timeout must be positive, got %d", cfg.TransmissionTimeout)
	}
	if cfg.TransmissionURL == "" {
		return fmt.Errorf("transmission URL is required")
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
