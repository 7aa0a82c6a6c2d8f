package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-torrent/app/api"
	"github.com/lysyi3m/rss-torrent/app/cfg"
	"github.com/lysyi3m/rss-torrent/app/database"
	"github.com/lysyi3m/rss-torrent/app/feed"
	"github.com/lysyi3m/rss-torrent/app/notify"
	"github.com/lysyi3m/rss-torrent/app/tasks"
	"github.com/lysyi3m/rss-torrent/app/transmission"
)

func main() {
	os.Exit(run())
}

func run() int {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 2
	}
	if appCfg == nil {
		return 0
	}

	logFile, err := setupLogging(appCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		return 1
	}
	if logFile != nil {
		defer logFile.Close()
	}

	slog.Info("Starting rss-torrent", "version", appCfg.Version, "serve", appCfg.Serve)

	db, err := database.Open(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		return 1
	}
	defer db.Close()

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load feed configurations", "dir", appCfg.FeedsDir, "error", err)
		return 1
	}
	slog.Info("Loaded feed configurations", "count", configCache.GetConfigCount())

	if dir := filepath.Dir(appCfg.LockFile); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("Failed to create lock directory", "path", dir, "error", err)
			return 1
		}
	}

	client := transmission.NewClient(transmission.Options{
		URL:         appCfg.TransmissionURL,
		User:        appCfg.TransmissionUser,
		Password:    appCfg.TransmissionPassword,
		Timeout:     time.Duration(appCfg.TransmissionTimeout) * time.Second,
		UserAgent:   appCfg.UserAgent,
		DaemonFetch: appCfg.DaemonFetch,
	})

	notifier := notify.New(notify.Config{
		SMTPHost:     appCfg.SMTPHost,
		SMTPPort:     appCfg.SMTPPort,
		SMTPUser:     appCfg.SMTPUser,
		SMTPPassword: appCfg.SMTPPassword,
		To:           appCfg.NotifyTo,
		From:         appCfg.NotifyFrom,
		NtfyURL:      appCfg.NtfyURL,
		NtfyTopic:    appCfg.NtfyTopic,
		Timeout:      30 * time.Second,
		UserAgent:    appCfg.UserAgent,
	})

	itemRepo := database.NewItemRepository(db)

	cycle := tasks.NewCycle(tasks.CycleOptions{
		ConfigCache: configCache,
		ItemRepo:    itemRepo,
		Client:      client,
		Notifier:    notifier,
		HTTPClient:  &http.Client{},
		LockPath:    appCfg.LockFile,
		SeedRatio:   appCfg.SeedRatio,
		UserAgent:   appCfg.UserAgent,
	})

	if !appCfg.Serve {
		return runOnce(cycle)
	}

	return serve(appCfg, configCache, itemRepo, client, cycle)
}

func runOnce(cycle *tasks.Cycle) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cycle.Run(ctx)
	switch {
	case err == nil, errors.Is(err, tasks.ErrCycleLocked):
		return 0
	default:
		return 1
	}
}

func serve(appCfg *cfg.Cfg, configCache *feed.ConfigCache, itemRepo database.ItemRepository, client *transmission.Client, cycle *tasks.Cycle) int {
	scheduler, err := tasks.NewScheduler(cycle, appCfg.Schedule)
	if err != nil {
		slog.Error("Failed to create scheduler", "error", err)
		return 1
	}
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(configCache, itemRepo, client, scheduler, appCfg.Version)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
		exitCode = 1
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return exitCode
}

// setupLogging installs the default slog handler. When a log file is
// configured, records go to both stderr and the file.
func setupLogging(appCfg *cfg.Cfg) (*os.File, error) {
	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	var logFile *os.File
	if appCfg.LogFile != "" {
		if dir := filepath.Dir(appCfg.LogFile); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		f, err := os.OpenFile(appCfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		logFile = f
		out = io.MultiWriter(os.Stderr, f)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return logFile, nil
}
