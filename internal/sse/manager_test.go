package sse

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(func() {
		_ = m.Shutdown(context.Background())
		cancel()
	})
	return m
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case e := <-c.Events():
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestManager_Broadcast(t *testing.T) {
	m := startManager(t)

	a, err := m.Connect("u1")
	require.NoError(t, err)
	b, err := m.Connect("")
	require.NoError(t, err)
	assert.Equal(t, 2, m.ClientCount())

	m.Emit(NewFeedRefreshedEvent(3))

	for _, c := range []*Client{a, b} {
		e := receive(t, c)
		assert.Equal(t, EventFeedRefreshed, e.Type)
		assert.Equal(t, FeedRefreshedEventData{Count: 3}, e.Data)
	}
}

func TestManager_EmitToUser(t *testing.T) {
	m := startManager(t)

	a, err := m.Connect("u1")
	require.NoError(t, err)
	b, err := m.Connect("u2")
	require.NoError(t, err)

	m.EmitToUser("u2", NewReviewDeletedEvent("r1"))
	m.Emit(NewFeedLoadingEvent(true))

	assert.Equal(t, EventReviewDeleted, receive(t, b).Type)
	assert.Equal(t, EventFeedLoading, receive(t, b).Type)
	// u1 only sees the broadcast.
	assert.Equal(t, EventFeedLoading, receive(t, a).Type)
}

func TestManager_Disconnect(t *testing.T) {
	m := startManager(t)

	c, err := m.Connect("u1")
	require.NoError(t, err)
	m.Disconnect(c.ID)
	m.Disconnect(c.ID)

	assert.Equal(t, 0, m.ClientCount())
	select {
	case <-c.Closed():
	default:
		t.Fatal("client not closed")
	}
}

func TestManager_EmitAfterShutdown(t *testing.T) {
	m := NewManager(testLogger())
	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))

	assert.NotPanics(t, func() { m.Emit(NewFeedLoadingEvent(false)) })
}

func TestHandler_StreamsEvents(t *testing.T) {
	m := startManager(t)
	h := NewHandler(m, func(r *http.Request) string { return r.Header.Get("X-User") }, testLogger())

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("X-User", "u1")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)
	_, err = reader.ReadString('\n') // data
	require.NoError(t, err)
	_, err = reader.ReadString('\n') // blank
	require.NoError(t, err)

	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	m.EmitToUser("u1", NewReviewDeletedEvent("r42"))

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "id: 1\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: review.deleted\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "data: "))
	assert.Contains(t, line, `"reviewId":"r42"`)
}

func TestManager_SequencesEvents(t *testing.T) {
	m := startManager(t)

	c, err := m.Connect("")
	require.NoError(t, err)

	m.Emit(NewFeedLoadingEvent(true))
	m.Emit(NewFeedLoadingEvent(false))

	first, second := receive(t, c), receive(t, c)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
}

func TestManager_ShutdownDisconnectsClients(t *testing.T) {
	m := NewManager(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	c, err := m.Connect("u1")
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(context.Background()))
	select {
	case <-c.Closed():
	case <-time.After(2 * time.Second):
		t.Fatal("client still connected after shutdown")
	}
	assert.Equal(t, 0, m.ClientCount())
}

func TestHandler_RejectsNonGet(t *testing.T) {
	h := NewHandler(NewManager(testLogger()), nil, testLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
