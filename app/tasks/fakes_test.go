package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lysyi3m/rss-torrent/app/database"
	"github.com/lysyi3m/rss-torrent/app/transmission"
)

type fakeClient struct {
	mu sync.Mutex

	version    int
	versionErr error

	// addErrs maps a URI to the error its add returns.
	addErrs    map[string]error
	hashes     map[string]string
	changeErrs map[int64]error
	listErr    error
	stopErrs   map[int64]error
	removeErrs map[int64]error
	torrents   map[int64]transmission.Torrent
	nextID     int64

	adds    []string
	changes []change
	stops   []int64
	removes []int64
	// events records stop, remove and notify calls in the order they happened.
	events []string
}

type change struct {
	ID    int64
	Ratio float64
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		version:    17,
		addErrs:    map[string]error{},
		hashes:     map[string]string{},
		changeErrs: map[int64]error{},
		stopErrs:   map[int64]error{},
		removeErrs: map[int64]error{},
		torrents:   map[int64]transmission.Torrent{},
	}
}

func (c *fakeClient) ProtocolVersion(ctx context.Context) (int, error) {
	return c.version, c.versionErr
}

func (c *fakeClient) Add(ctx context.Context, uri string) (transmission.Torrent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.adds = append(c.adds, uri)
	if err := c.addErrs[uri]; err != nil {
		return transmission.Torrent{}, err
	}
	c.nextID++
	hash := c.hashes[uri]
	if hash == "" {
		hash = fmt.Sprintf("hash-%d", c.nextID)
	}
	return transmission.Torrent{ID: c.nextID, Name: "torrent " + uri, HashString: hash}, nil
}

func (c *fakeClient) Change(ctx context.Context, id int64, seedRatioLimit float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.changes = append(c.changes, change{ID: id, Ratio: seedRatioLimit})
	return c.changeErrs[id]
}

func (c *fakeClient) Info(ctx context.Context, id int64) (transmission.Torrent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	torrent, ok := c.torrents[id]
	if !ok {
		return transmission.Torrent{}, fmt.Errorf("%w: not found", transmission.ErrProtocol)
	}
	return torrent, nil
}

func (c *fakeClient) List(ctx context.Context) (map[int64]transmission.Torrent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listErr != nil {
		return nil, c.listErr
	}
	out := make(map[int64]transmission.Torrent, len(c.torrents))
	for id, torrent := range c.torrents {
		out[id] = torrent
	}
	return out, nil
}

func (c *fakeClient) Stop(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stops = append(c.stops, id)
	c.events = append(c.events, fmt.Sprintf("stop %d", id))
	return c.stopErrs[id]
}

func (c *fakeClient) Remove(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removes = append(c.removes, id)
	c.events = append(c.events, fmt.Sprintf("remove %d", id))
	if err := c.removeErrs[id]; err != nil {
		return err
	}
	delete(c.torrents, id)
	return nil
}

type memRepo struct {
	mu         sync.Mutex
	items      []database.SeenItem
	containErr error
}

func (r *memRepo) Contains(ctx context.Context, guid string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.containErr != nil {
		return false, r.containErr
	}
	for _, item := range r.items {
		if item.GUID == guid {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) Record(ctx context.Context, guid, title, hashString string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range r.items {
		if item.GUID == guid {
			return database.ErrDuplicateKey
		}
	}
	r.items = append(r.items, database.SeenItem{GUID: guid, Title: title, HashString: hashString})
	return nil
}

func (r *memRepo) List(ctx context.Context, limit int) ([]database.SeenItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]database.SeenItem(nil), r.items...), nil
}

func (r *memRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items), nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	// client, when set, receives a notify event so call order can be checked.
	client *fakeClient
}

func (n *recordingNotifier) Notify(ctx context.Context, message string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	if n.client != nil {
		n.client.mu.Lock()
		n.client.events = append(n.client.events, "notify "+message)
		n.client.mu.Unlock()
	}
	return true
}

var errBoom = errors.New("boom")
