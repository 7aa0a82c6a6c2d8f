package tasks

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-torrent/app/status"
	"github.com/lysyi3m/rss-torrent/app/transmission"
)

func TestSweepRemovesTerminalDownloads(t *testing.T) {
	client := newFakeClient()
	client.torrents = map[int64]transmission.Torrent{
		1: {ID: 1, Name: "stopped", Status: 0},
		2: {ID: 2, Name: "downloading", Status: 4},
		3: {ID: 3, Name: "seed pending", Status: 5},
		4: {ID: 4, Name: "seeding", Status: 6},
		5: {ID: 5, Name: "checking", Status: 2},
		6: {ID: 6, Name: "unknown", Status: 99},
	}
	notifier := &recordingNotifier{}

	stats, err := NewSweepTask(client, notifier, status.GenerationFor(17)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3, 4}, client.stops)
	assert.Equal(t, []int64{1, 3, 4}, client.removes)
	assert.Equal(t, []string{"Finished: stopped", "Finished: seed pending", "Finished: seeding"}, notifier.messages)
	assert.Equal(t, SweepStats{Total: 6, Kept: 3, Removed: 3}, stats)
}

func TestSweepUsesLegacyCodes(t *testing.T) {
	client := newFakeClient()
	client.torrents = map[int64]transmission.Torrent{
		1: {ID: 1, Name: "legacy seeding", Status: 1 << 3},
		2: {ID: 2, Name: "legacy downloading", Status: 1 << 2},
		// 6 means seeding today but nothing on old daemons.
		3: {ID: 3, Name: "ambiguous", Status: 6},
	}

	_, err := NewSweepTask(client, &recordingNotifier{}, status.GenerationFor(10)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, client.removes)
}

func TestSweepContinuesAfterRemovalFailure(t *testing.T) {
	client := newFakeClient()
	client.torrents = map[int64]transmission.Torrent{
		1: {ID: 1, Name: "A", Status: 6},
		2: {ID: 2, Name: "B", Status: 6},
		3: {ID: 3, Name: "C", Status: 6},
	}
	client.stopErrs[1] = fmt.Errorf("%w: invalid id", transmission.ErrProtocol)
	client.stopErrs[2] = fmt.Errorf("%w: timeout", transmission.ErrTransport)
	notifier := &recordingNotifier{}

	stats, err := NewSweepTask(client, notifier, status.Current).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, client.stops)
	assert.Equal(t, []int64{3}, client.removes)
	assert.Equal(t, []string{"Finished: A", "Finished: B", "Finished: C"}, notifier.messages)
	assert.Equal(t, SweepStats{Total: 3, Removed: 1, Failed: 2}, stats)
}

func TestSweepNotifiesOncePerTerminalDownload(t *testing.T) {
	client := newFakeClient()
	client.torrents = map[int64]transmission.Torrent{
		1: {ID: 1, Name: "A", Status: 6},
		2: {ID: 2, Name: "B", Status: 6},
		3: {ID: 3, Name: "C", Status: 0},
		4: {ID: 4, Name: "D", Status: 4},
	}
	client.stopErrs[1] = fmt.Errorf("%w: invalid id", transmission.ErrProtocol)
	client.removeErrs[3] = fmt.Errorf("%w: timeout", transmission.ErrTransport)
	notifier := &recordingNotifier{client: client}

	stats, err := NewSweepTask(client, notifier, status.Current).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"stop 1", "notify Finished: A",
		"stop 2", "remove 2", "notify Finished: B",
		"stop 3", "remove 3", "notify Finished: C",
	}, client.events)
	assert.Equal(t, SweepStats{Total: 4, Kept: 1, Removed: 1, Failed: 2}, stats)
	assert.Contains(t, client.torrents, int64(3))
}

func TestSweepListFailure(t *testing.T) {
	client := newFakeClient()
	client.listErr = fmt.Errorf("%w: connection refused", transmission.ErrTransport)

	err := NewSweepTask(client, &recordingNotifier{}, status.Current).Execute(context.Background())
	require.Error(t, err)
	assert.True(t, transmission.IsTransport(err))
}
