package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDeliversEvent(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "s3cret", r.Header.Get("X-Webhook-Secret"))

		var ev Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		received <- ev
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "s3cret")
	err := n.send(context.Background(), Event{
		Event:     "document.processed",
		Timestamp: time.Now().UTC(),
		Data:      map[string]any{"task_id": "abc"},
	})
	require.NoError(t, err)

	ev := <-received
	assert.Equal(t, "document.processed", ev.Event)
	assert.Equal(t, "abc", ev.Data["task_id"])
}

func TestSendNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "")
	err := n.send(context.Background(), Event{Event: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNotifierDisabled(t *testing.T) {
	var n *Notifier
	assert.False(t, n.Enabled())
	n.Notify("noop", nil) // must not panic

	empty := NewNotifier("", "")
	assert.False(t, empty.Enabled())
}
