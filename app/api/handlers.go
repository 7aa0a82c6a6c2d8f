package api

import (
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-torrent/app/database"
	"github.com/lysyi3m/rss-torrent/app/feed"
	"github.com/lysyi3m/rss-torrent/app/status"
	"github.com/lysyi3m/rss-torrent/app/tasks"
	"github.com/lysyi3m/rss-torrent/app/transmission"
)

const defaultHistoryLimit = 50

func NewHandler(configCache *feed.ConfigCache, itemRepo database.ItemRepository,
	client DaemonReader, scheduler tasks.TaskSchedulerInterface, version string) *Handler {
	return &Handler{
		configCache: configCache,
		itemRepo:    itemRepo,
		client:      client,
		scheduler:   scheduler,
		version:     version,
		startedAt:   time.Now(),
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp":             time.Now().In(time.Local).Format(time.RFC3339),
		"version":               h.version,
		"uptime":                time.Since(h.startedAt).Round(time.Second).String(),
		"loaded_configurations": h.configCache.GetConfigCount(),
		"cycle_running":         h.scheduler.IsRunning(),
	}

	if count, err := h.itemRepo.Count(c.Request.Context()); err == nil {
		health["recorded_torrents"] = count
	} else {
		slog.Error("Database error", "operation", "count_torrents", "error", err)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	slices.Sort(names)

	feeds := make([]map[string]interface{}, 0, len(configs))
	for _, name := range names {
		feeds = append(feeds, feedInfo(configs[name]))
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIGetFeed(c *gin.Context) {
	name := c.Param("name")

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	details := feedInfo(feedConfig)
	details["filters"] = feedConfig.Filters

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIReloadFeed(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	feedConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	slog.Info("Feed configuration reloaded", "feed", name)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"feed":    feedInfo(feedConfig),
	})
}

func (h *Handler) APIHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	items, err := h.itemRepo.List(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_torrents", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	history := make([]historyView, 0, len(items))
	for _, item := range items {
		history = append(history, historyView{
			GUID:       item.GUID,
			Title:      item.Title,
			HashString: item.HashString,
			Submitted:  item.HashString != "",
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"history": history,
		"total":   len(history),
	})
}

func (h *Handler) APIListDownloads(c *gin.Context) {
	ctx := c.Request.Context()

	version, err := h.client.ProtocolVersion(ctx)
	if err != nil {
		daemonError(c, "protocol_version", err)
		return
	}
	generation := status.GenerationFor(version)

	torrents, err := h.client.List(ctx)
	if err != nil {
		daemonError(c, "list_downloads", err)
		return
	}

	ids := make([]int64, 0, len(torrents))
	for id := range torrents {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	downloads := make([]downloadView, 0, len(ids))
	for _, id := range ids {
		downloads = append(downloads, newDownloadView(torrents[id], generation))
	}

	c.JSON(http.StatusOK, gin.H{
		"rpc_version": version,
		"generation":  generation.String(),
		"downloads":   downloads,
		"total":       len(downloads),
	})
}

func (h *Handler) APIGetDownload(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid download id"})
		return
	}

	ctx := c.Request.Context()

	version, err := h.client.ProtocolVersion(ctx)
	if err != nil {
		daemonError(c, "protocol_version", err)
		return
	}

	torrent, err := h.client.Info(ctx, id)
	if err != nil {
		if transmission.IsProtocol(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Download not found"})
			return
		}
		daemonError(c, "get_download", err)
		return
	}

	c.JSON(http.StatusOK, newDownloadView(torrent, status.GenerationFor(version)))
}

func (h *Handler) APIRunCycle(c *gin.Context) {
	if !h.scheduler.Trigger("api") {
		c.JSON(http.StatusConflict, gin.H{"error": "A cycle is already running"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Cycle started",
	})
}

func feedInfo(feedConfig *feed.Config) map[string]interface{} {
	return map[string]interface{}{
		"name":       feedConfig.Name,
		"url":        feedConfig.URL,
		"enabled":    feedConfig.Settings.Enabled,
		"seed_ratio": feedConfig.Settings.SeedRatio,
		"timeout":    (time.Duration(feedConfig.Settings.Timeout) * time.Second).String(),
		"filters":    len(feedConfig.Filters),
	}
}

func newDownloadView(torrent transmission.Torrent, generation status.Generation) downloadView {
	state := generation.Classify(torrent.Status)
	return downloadView{
		ID:          torrent.ID,
		Name:        torrent.Name,
		HashString:  torrent.HashString,
		Status:      torrent.Status,
		State:       state.String(),
		Terminal:    state.IsTerminal(),
		PercentDone: torrent.PercentDone,
		UploadRatio: torrent.UploadRatio,
	}
}

func daemonError(c *gin.Context, operation string, err error) {
	slog.Error("Daemon error", "operation", operation, "error", err)
	c.JSON(http.StatusBadGateway, gin.H{
		"error":   "Download daemon unavailable",
		"details": err.Error(),
	})
}
