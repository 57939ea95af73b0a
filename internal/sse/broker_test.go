package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/codex/internal/ingest"
)

// eventType returns the value of the frame's event field.
func eventType(msg []byte) string {
	for _, line := range strings.Split(string(msg), "\n") {
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			return v
		}
	}
	return ""
}

// receive reads n frames from ch or fails after a second.
func receive(t *testing.T, ch <-chan []byte, n int) []string {
	t.Helper()
	var got []string
	timeout := time.After(time.Second)
	for len(got) < n {
		select {
		case msg := <-ch:
			got = append(got, string(msg))
		case <-timeout:
			t.Fatalf("timeout; got %d of %d frames: %q", len(got), n, got)
		}
	}
	return got
}

// publishAll publishes one event per type and returns once the broker has
// broadcast all of them.
func publishAll(t *testing.T, b *Broker, types ...string) {
	t.Helper()
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)
	for _, typ := range types {
		b.Publish(Event{Type: typ, Data: typ})
	}
	receive(t, sub, len(types))
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	require.Equal(t, 0, b.ClientCount())

	ch := b.Subscribe()
	require.Equal(t, 1, b.ClientCount())

	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.ClientCount())
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeDocumentCreated, Data: map[string]string{"id": "a"}})

	msg := receive(t, ch, 1)[0]
	assert.Contains(t, msg, "event: document.created")
	assert.Contains(t, msg, `"id":"a"`)
}

func TestPublishDocumentEvent_CorpusThrottle(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Only the first creation within the interval triggers corpus.updated.
	b.PublishDocumentEvent(KindCreated, map[string]string{"id": "1", "name": "a.md"})
	b.PublishDocumentEvent(KindCreated, map[string]string{"id": "2", "name": "b.md"})
	// Duplicates and rejections never touch the corpus.
	b.PublishDocumentEvent(KindExisting, map[string]string{"id": "1", "name": "c.md"})
	b.PublishDocumentEvent(KindRejected, map[string]string{"name": "d.exe", "reason": "blocked extension"})
	b.PublishDocumentEvent("unknown", map[string]string{"name": "e.md"})

	var types []string
	for _, msg := range receive(t, ch, 5) {
		types = append(types, eventType([]byte(msg)))
	}
	assert.Equal(t, []string{
		TypeDocumentCreated,
		TypeCorpusUpdated,
		TypeDocumentCreated,
		TypeDocumentExisting,
		TypeIngestRejected,
	}, types)

	select {
	case msg := <-ch:
		t.Errorf("unexpected extra frame %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestObserveIngest(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.ObserveIngest(ingest.Accepted{Name: "a.md", ID: "id-1", Created: true, ChunkCount: 3})
	b.ObserveIngest(ingest.Rejected{Name: "x.exe", Reason: "blocked extension"})

	got := receive(t, ch, 3)
	assert.Contains(t, got[0], "event: document.created")
	assert.Contains(t, got[0], `"chunks":"3"`)
	assert.Contains(t, got[1], "event: corpus.updated")
	assert.Contains(t, got[2], "event: ingest.rejected")
	assert.Contains(t, got[2], `"reason":"blocked extension"`)
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	b.Publish(Event{Type: TypeDocumentCreated, Data: map[string]string{"id": "x"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	assert.Contains(t, w.Body.String(), "event: document.created")
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Eventually(t, func() bool { return b.ClientCount() == 0 }, time.Second, 10*time.Millisecond,
		"client not cleaned up after disconnect")
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// More events than the client buffer holds must not block the loop.
	for i := 0; i < clientBuffer+10; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	assert.Equal(t, 1, b.ClientCount())
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	require.Equal(t, 1, b.ClientCount())

	b.Close()

	select {
	case _, ok := <-ch:
		require.False(t, ok, "expected subscriber channel to be closed")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	assert.Equal(t, 0, b.ClientCount())

	// Safe no-ops after close.
	b.Publish(Event{Type: TypeDocumentCreated, Data: map[string]string{"id": "x"}})
	b.PublishDocumentEvent(KindCreated, map[string]string{"id": "x"})
	b.Close()
}

func TestEventIDsIncrease(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "a", Data: 1})
	b.Publish(Event{Type: "b", Data: 2})

	got := receive(t, ch, 2)
	assert.True(t, strings.HasPrefix(got[0], "id: 1\nevent: a\n"), got[0])
	assert.True(t, strings.HasPrefix(got[1], "id: 2\nevent: b\n"), got[1])
}

func TestSubscribeFromReplaysMissedEvents(t *testing.T) {
	b := NewBroker(time.Hour, WithHistory(2))
	defer b.Close()
	publishAll(t, b, "one", "two", "three")

	ch := b.SubscribeFrom(1)
	defer b.Unsubscribe(ch)

	got := receive(t, ch, 2)
	assert.Equal(t, "two", eventType([]byte(got[0])))
	assert.Equal(t, "three", eventType([]byte(got[1])))

	select {
	case msg := <-ch:
		t.Errorf("unexpected extra frame %q", msg)
	default:
	}
}

func TestHistoryKeepsNewest(t *testing.T) {
	b := NewBroker(time.Hour, WithHistory(1))
	defer b.Close()
	publishAll(t, b, "one", "two")

	ch := b.SubscribeFrom(1)
	defer b.Unsubscribe(ch)
	assert.Equal(t, "two", eventType([]byte(receive(t, ch, 1)[0])))
}

func TestSSEHandlerLastEventIDAndKeepAlive(t *testing.T) {
	b := NewBroker(time.Hour, WithKeepAlive(20*time.Millisecond))
	defer b.Close()
	publishAll(t, b, "old", "missed")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "1")
	w := httptest.NewRecorder()

	b.ServeHTTP(w, req)

	body := w.Body.String()
	assert.NotContains(t, body, "event: old", "event before Last-Event-ID replayed")
	assert.Contains(t, body, "id: 2\nevent: missed")
	assert.Contains(t, body, ": ping\n\n")
}
