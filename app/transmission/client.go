package transmission

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

const sessionHeader = "X-Transmission-Session-Id"

// maxMetainfoSize bounds a .torrent download fetched on the daemon's behalf.
var maxMetainfoSize int64 = 16 << 20

type Options struct {
	URL       string
	User      string
	Password  string
	Timeout   time.Duration
	UserAgent string
	// DaemonFetch hands http(s) torrent URLs to the daemon as-is instead of
	// downloading the metainfo locally and uploading it.
	DaemonFetch bool
	HTTPClient  *http.Client
}

// Client talks to a single Transmission daemon over its JSON RPC endpoint.
// It is safe for concurrent use.
type Client struct {
	url         string
	user        string
	password    string
	userAgent   string
	daemonFetch bool
	httpClient  *http.Client

	mu        sync.Mutex
	sessionID string
	tag       atomic.Int64
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		url:         opts.URL,
		user:        opts.User,
		password:    opts.Password,
		userAgent:   opts.UserAgent,
		daemonFetch: opts.DaemonFetch,
		httpClient:  httpClient,
	}
}

func (c *Client) ProtocolVersion(ctx context.Context) (int, error) {
	var result sessionGetResult
	args := map[string]any{"fields": []string{"rpc-version"}}
	if err := c.call(ctx, "session-get", args, &result); err != nil {
		return 0, err
	}
	return result.RPCVersion, nil
}

// Add submits a torrent by URI. Magnet links, and any URL when DaemonFetch is
// set, are passed to the daemon verbatim; other http(s) URLs are downloaded
// here and uploaded as metainfo. A torrent the daemon already has is reported
// as a protocol error.
func (c *Client) Add(ctx context.Context, uri string) (Torrent, error) {
	if uri == "" {
		return Torrent{}, wrap(ErrProtocol, "torrent-add", "entry has no uri", nil)
	}

	args := map[string]any{}

	if c.shouldFetchLocally(uri) {
		metainfo, err := c.fetchMetainfo(ctx, uri)
		if err != nil {
			return Torrent{}, err
		}
		args["metainfo"] = base64.StdEncoding.EncodeToString(metainfo)
	} else {
		args["filename"] = uri
	}

	var result torrentAddResult
	if err := c.call(ctx, "torrent-add", args, &result); err != nil {
		return Torrent{}, err
	}

	switch {
	case result.Added != nil:
		return *result.Added, nil
	case result.Duplicate != nil:
		return Torrent{}, wrap(ErrProtocol, "torrent-add", fmt.Sprintf("duplicate torrent %q", result.Duplicate.Name), nil)
	default:
		return Torrent{}, fmt.Errorf("torrent-add: response has no torrent-added entry")
	}
}

// Change applies a per-torrent seed ratio limit.
func (c *Client) Change(ctx context.Context, id int64, seedRatioLimit float64) error {
	args := map[string]any{
		"ids":            []int64{id},
		"seedRatioLimit": seedRatioLimit,
		"seedRatioMode":  1,
	}
	return c.call(ctx, "torrent-set", args, nil)
}

func (c *Client) Info(ctx context.Context, id int64) (Torrent, error) {
	var result torrentGetResult
	args := map[string]any{
		"ids":    []int64{id},
		"fields": torrentFields,
	}
	if err := c.call(ctx, "torrent-get", args, &result); err != nil {
		return Torrent{}, err
	}
	for _, t := range result.Torrents {
		if t.ID == id {
			return t, nil
		}
	}
	return Torrent{}, wrap(ErrProtocol, "torrent-get", fmt.Sprintf("torrent %d not found", id), nil)
}

func (c *Client) List(ctx context.Context) (map[int64]Torrent, error) {
	var result torrentGetResult
	args := map[string]any{"fields": torrentFields}
	if err := c.call(ctx, "torrent-get", args, &result); err != nil {
		return nil, err
	}

	torrents := make(map[int64]Torrent, len(result.Torrents))
	for _, t := range result.Torrents {
		torrents[t.ID] = t
	}
	return torrents, nil
}

func (c *Client) Stop(ctx context.Context, id int64) error {
	return c.call(ctx, "torrent-stop", map[string]any{"ids": []int64{id}}, nil)
}

// Remove drops the torrent from the daemon. Downloaded data stays on disk.
func (c *Client) Remove(ctx context.Context, id int64) error {
	args := map[string]any{
		"ids":               []int64{id},
		"delete-local-data": false,
	}
	return c.call(ctx, "torrent-remove", args, nil)
}

func (c *Client) shouldFetchLocally(uri string) bool {
	if c.daemonFetch {
		return false
	}
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func (c *Client) fetchMetainfo(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, wrap(ErrTransport, "torrent-add", "invalid torrent URL", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("torrent-add: %w", ctx.Err())
		}
		return nil, wrap(ErrTransport, "torrent-add", "failed to retrieve "+uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, wrap(ErrTransport, "torrent-add", fmt.Sprintf("failed to retrieve %s: HTTP %d", uri, resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMetainfoSize+1))
	if err != nil {
		return nil, wrap(ErrTransport, "torrent-add", "failed to read "+uri, err)
	}
	if int64(len(data)) > maxMetainfoSize {
		return nil, wrap(ErrTransport, "torrent-add", fmt.Sprintf("%s exceeds %d bytes", uri, maxMetainfoSize), nil)
	}
	return data, nil
}

func (c *Client) call(ctx context.Context, method string, args any, result any) error {
	body, err := json.Marshal(request{Method: method, Arguments: args, Tag: c.tag.Add(1)})
	if err != nil {
		return fmt.Errorf("%s: failed to encode request: %w", method, err)
	}

	resp, err := c.post(ctx, method, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		c.setSessionID(resp.Header.Get(sessionHeader))
		slog.Debug("Transmission session renewed", "method", method)

		resp, err = c.post(ctx, method, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: daemon rejected credentials: HTTP %d", method, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return wrap(ErrTransport, method, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	default:
		return fmt.Errorf("%s: unexpected HTTP status %d", method, resp.StatusCode)
	}

	var rpcResp response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", method, err)
	}

	if rpcResp.Result != "success" {
		return wrap(ErrProtocol, method, rpcResp.Result, nil)
	}

	if result != nil && len(rpcResp.Arguments) > 0 {
		if err := json.Unmarshal(rpcResp.Arguments, result); err != nil {
			return fmt.Errorf("%s: failed to decode arguments: %w", method, err)
		}
	}

	return nil
}

func (c *Client) post(ctx context.Context, method string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", method, err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if sessionID := c.getSessionID(); sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", method, ctx.Err())
		}
		return nil, wrap(ErrTransport, method, "", err)
	}
	return resp, nil
}

func (c *Client) getSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) setSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}
