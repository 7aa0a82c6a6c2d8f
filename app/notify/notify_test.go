package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func TestMailerWithoutRecipient(t *testing.T) {
	mailer := NewMailer(Config{SMTPHost: "localhost", SMTPPort: 25, From: "rss-torrent@localhost"})
	mailer.send = func(ctx context.Context, msg *mail.Msg) error {
		t.Fatal("send must not be called without a recipient")
		return nil
	}

	assert.False(t, mailer.Notify(context.Background(), "Added: Show"))
}

func TestMailerBuildsMessage(t *testing.T) {
	mailer := NewMailer(Config{
		SMTPHost: "localhost",
		SMTPPort: 25,
		To:       "me@example.com",
		From:     "rss-torrent@example.com",
	})

	var sent *mail.Msg
	mailer.send = func(ctx context.Context, msg *mail.Msg) error {
		sent = msg
		return nil
	}

	require.True(t, mailer.Notify(context.Background(), "Finished: Show S01E01"))
	require.NotNil(t, sent)

	assert.Equal(t, []string{"[rss-torrent] Finished: Show S01E01"}, sent.GetGenHeader(mail.HeaderSubject))
	require.Len(t, sent.GetTo(), 1)
	assert.Equal(t, "me@example.com", sent.GetTo()[0].Address)
	require.Len(t, sent.GetFrom(), 1)
	assert.Equal(t, "rss-torrent@example.com", sent.GetFrom()[0].Address)
}

func TestMailerSendFailure(t *testing.T) {
	mailer := NewMailer(Config{To: "me@example.com", From: "rss-torrent@example.com"})
	mailer.send = func(ctx context.Context, msg *mail.Msg) error {
		return errors.New("connection refused")
	}

	assert.False(t, mailer.Notify(context.Background(), "Added: Show"))
}

func TestMailerInvalidSender(t *testing.T) {
	mailer := NewMailer(Config{To: "me@example.com", From: "not an address"})
	mailer.send = func(ctx context.Context, msg *mail.Msg) error {
		t.Fatal("send must not be called with an invalid sender")
		return nil
	}

	assert.False(t, mailer.Notify(context.Background(), "Added: Show"))
}

func TestNtfyPostsMessage(t *testing.T) {
	var gotPath, gotBody, gotTitle string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTitle = r.Header.Get("Title")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ntfy := NewNtfy(Config{NtfyURL: server.URL + "/", NtfyTopic: "downloads"})
	require.True(t, ntfy.Notify(context.Background(), "Added: Show"))

	assert.Equal(t, "/downloads", gotPath)
	assert.Equal(t, "Added: Show", gotBody)
	assert.Equal(t, "[rss-torrent]", gotTitle)
}

func TestNtfyErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic reserved", http.StatusForbidden)
	}))
	defer server.Close()

	ntfy := NewNtfy(Config{NtfyURL: server.URL, NtfyTopic: "downloads"})
	assert.False(t, ntfy.Notify(context.Background(), "Added: Show"))
}

type recordingNotifier struct {
	ok       bool
	messages []string
}

func (r *recordingNotifier) Notify(ctx context.Context, message string) bool {
	r.messages = append(r.messages, message)
	return r.ok
}

func TestMultiDeliversToAll(t *testing.T) {
	failing := &recordingNotifier{ok: false}
	working := &recordingNotifier{ok: true}

	assert.True(t, Multi{failing, working}.Notify(context.Background(), "Finished: Show"))
	assert.Equal(t, []string{"Finished: Show"}, failing.messages)
	assert.Equal(t, []string{"Finished: Show"}, working.messages)

	assert.False(t, Multi{failing}.Notify(context.Background(), "Finished: Show"))
}

func TestNewComposition(t *testing.T) {
	_, isMailer := New(Config{To: "me@example.com"}).(*Mailer)
	assert.True(t, isMailer)

	_, isMailer = New(Config{}).(*Mailer)
	assert.True(t, isMailer, "mail stays in place so the missing recipient is reported")

	_, isNtfy := New(Config{NtfyTopic: "downloads"}).(*Ntfy)
	assert.True(t, isNtfy)

	multi, isMulti := New(Config{To: "me@example.com", NtfyTopic: "downloads"}).(Multi)
	require.True(t, isMulti)
	assert.Len(t, multi, 2)
}
