package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	name  string
	err   error
	block chan struct{}

	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(ctx context.Context, ev Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) received() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestFanout_PublishForeground(t *testing.T) {
	f := NewFanout(1, 10)
	defer f.Shutdown()

	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	f.Subscribe(a, false)
	f.Subscribe(b, false)

	err := f.Publish(context.Background(), "channel-7", EventNewMessage, map[string]string{"content": "hi"})
	require.NoError(t, err)

	for _, sink := range []*recordingSink{a, b} {
		events := sink.received()
		require.Len(t, events, 1, sink.name)
		assert.Equal(t, "channel-7", events[0].Topic)
		assert.Equal(t, EventNewMessage, events[0].Event)
		assert.JSONEq(t, `{"content":"hi"}`, string(events[0].Data))
	}
}

func TestFanout_ForegroundErrorsAreJoined(t *testing.T) {
	f := NewFanout(1, 10)
	defer f.Shutdown()

	ok := &recordingSink{name: "ok"}
	broken := &recordingSink{name: "pusher", err: errors.New("401 unauthorized")}
	f.Subscribe(broken, false)
	f.Subscribe(ok, false)

	err := f.Publish(context.Background(), "channel-1", EventNewReaction, struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pusher: 401 unauthorized")
	assert.Len(t, ok.received(), 1, "one failing sink does not stop the others")
}

func TestFanout_BackgroundSinks(t *testing.T) {
	f := NewFanout(2, 10)

	bg := &recordingSink{name: "kafka", err: errors.New("broker down")}
	f.Subscribe(bg, true)

	var (
		mu       sync.Mutex
		observed []string
	)
	f.SetObserver(func(sink, event string, err error) {
		mu.Lock()
		defer mu.Unlock()
		observed = append(observed, sink+":"+event)
	})

	require.NoError(t, f.Publish(context.Background(), "channel-2", EventNewMessage, 1),
		"background failures never reach the caller")
	require.NoError(t, f.Publish(context.Background(), "channel-2", EventNewReaction, 2))

	f.Shutdown()

	assert.Len(t, bg.received(), 2, "shutdown drains queued events")
	mu.Lock()
	assert.ElementsMatch(t, []string{"kafka:new-message", "kafka:new-reaction"}, observed)
	mu.Unlock()
}

func TestFanout_DropsWhenQueueFull(t *testing.T) {
	f := NewFanout(1, 1)

	block := make(chan struct{})
	bg := &recordingSink{name: "slow", block: block}
	f.Subscribe(bg, true)

	ev, err := NewEvent("channel-1", EventNewMessage, 1)
	require.NoError(t, err)

	f.PublishAsync(ev) // taken by the worker, which blocks
	require.Eventually(t, func() bool { return len(f.queue) == 0 }, time.Second, 5*time.Millisecond)
	f.PublishAsync(ev) // fills the queue
	f.PublishAsync(ev) // dropped

	close(block)
	f.Shutdown()

	assert.Len(t, bg.received(), 2)
}

func TestFanout_SubscribeReplacesAndUnsubscribe(t *testing.T) {
	f := NewFanout(1, 1)
	defer f.Shutdown()

	f.Subscribe(&recordingSink{name: "hub"}, false)
	f.Subscribe(&recordingSink{name: "hub"}, true)
	f.Subscribe(&recordingSink{name: "pusher"}, false)
	assert.Equal(t, []string{"pusher", "hub"}, f.Sinks())

	f.Unsubscribe("hub")
	assert.Equal(t, []string{"pusher"}, f.Sinks())
}

func TestFanout_PublishAfterShutdown(t *testing.T) {
	f := NewFanout(1, 1)
	bg := &recordingSink{name: "bg"}
	f.Subscribe(bg, true)
	f.Shutdown()
	f.Shutdown()

	assert.NotPanics(t, func() {
		_ = f.Publish(context.Background(), "channel-1", EventNewMessage, 1)
	})
	assert.Empty(t, bg.received())
}
