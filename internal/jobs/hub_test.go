package jobs

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubscriber records delivered messages and can be told to fail writes.
type fakeSubscriber struct {
	mu       sync.Mutex
	messages []any
	failWith error
	closed   bool
}

func (f *fakeSubscriber) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.messages = append(f.messages, v)
	return nil
}

func (f *fakeSubscriber) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSubscriber) received() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.messages...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHub_BroadcastFanOut(t *testing.T) {
	hub := NewHub(testLogger())

	subsA := []*fakeSubscriber{{}, {}, {}}
	for _, s := range subsA {
		hub.Connect(s, "job-a")
	}
	subB := &fakeSubscriber{}
	hub.Connect(subB, "job-b")

	hub.Broadcast("job-a", "hello")

	for _, s := range subsA {
		require.Len(t, s.received(), 1)
		assert.Equal(t, "hello", s.received()[0])
	}
	assert.Empty(t, subB.received(), "other job's subscriber must receive nothing")
}

func TestHub_BroadcastNoSubscribers(t *testing.T) {
	hub := NewHub(testLogger())

	// Silent no-op, nothing buffered for late subscribers
	hub.Broadcast("job-x", "lost")

	late := &fakeSubscriber{}
	hub.Connect(late, "job-x")
	assert.Empty(t, late.received())
}

func TestHub_FailedDeliveryDropsSubscriber(t *testing.T) {
	hub := NewHub(testLogger())

	healthy := &fakeSubscriber{}
	broken := &fakeSubscriber{failWith: fmt.Errorf("connection reset")}
	hub.Connect(healthy, "job-a")
	hub.Connect(broken, "job-a")

	hub.Broadcast("job-a", "first")

	require.Len(t, healthy.received(), 1, "failure of one subscriber must not abort delivery to the rest")
	assert.True(t, broken.closed)
	assert.Equal(t, 1, hub.SubscriberCount("job-a"))

	hub.Broadcast("job-a", "second")
	assert.Len(t, healthy.received(), 2)
}

func TestHub_DisconnectIdempotent(t *testing.T) {
	hub := NewHub(testLogger())

	sub := &fakeSubscriber{}
	hub.Connect(sub, "job-a")

	hub.Disconnect(sub)
	hub.Disconnect(sub) // no-op, not an error
	hub.Disconnect(&fakeSubscriber{})

	assert.Equal(t, 0, hub.SubscriberCount("job-a"))
}

func TestHub_ReconnectMovesSubscriber(t *testing.T) {
	hub := NewHub(testLogger())

	sub := &fakeSubscriber{}
	hub.Connect(sub, "job-a")
	hub.Connect(sub, "job-b")

	assert.Equal(t, 0, hub.SubscriberCount("job-a"))
	assert.Equal(t, 1, hub.SubscriberCount("job-b"))

	hub.Broadcast("job-a", "old")
	hub.Broadcast("job-b", "new")

	require.Len(t, sub.received(), 1)
	assert.Equal(t, "new", sub.received()[0])
}

func TestHub_ConcurrentConnectDisconnectDuringBroadcast(t *testing.T) {
	hub := NewHub(testLogger())

	for i := 0; i < 8; i++ {
		hub.Connect(&fakeSubscriber{}, "job-a")
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Broadcast("job-a", j)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s := &fakeSubscriber{}
				hub.Connect(s, "job-a")
				hub.Disconnect(s)
			}
		}()
	}
	wg.Wait()
}
