package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/standup/go/internal/standup/events"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []events.FeedEvent
	err       error
	closed    bool
}

func (r *recordingPublisher) Publish(_ context.Context, event events.FeedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, event)
	return r.err
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return nil
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.published)
}

func TestFeedPublishesInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	f := New(pub, Config{BufferSize: 8})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	f.Notify(events.FeedEvent{Type: events.FeedSessionCreated, InstanceID: "i-1"})
	f.Notify(events.FeedEvent{Type: events.FeedMemberJoined, InstanceID: "i-1", UserID: "a"})

	require.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, events.FeedSessionCreated, pub.published[0].Type)
	assert.Equal(t, "a", pub.published[1].UserID)
}

func TestFeedDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{}
	f := New(pub, Config{BufferSize: 1})

	f.Notify(events.FeedEvent{Type: events.FeedReset})
	f.Notify(events.FeedEvent{Type: events.FeedReset})

	assert.Equal(t, 1, f.Dropped())
}

func TestFeedFlushesOnShutdown(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats down")}
	f := New(pub, Config{BufferSize: 4})
	f.Notify(events.FeedEvent{Type: events.FeedPaused})
	f.Notify(events.FeedEvent{Type: events.FeedResumed})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.Run(ctx)

	assert.Equal(t, 2, pub.count(), "publish errors are logged, not fatal")
	require.NoError(t, f.Close())
	assert.True(t, pub.closed)
}

func TestNewMessage(t *testing.T) {
	started := time.Date(2026, 2, 14, 12, 0, 5, 0, time.UTC)
	event := events.FeedEvent{
		Type:       events.FeedStarted,
		InstanceID: "i-1",
		Members:    []string{"b", "a"},
		Duration:   30,
		StartedAt:  &started,
		OccurredAt: started.Add(-5 * time.Second),
	}

	msg, err := NewMessage("standup.events", event)
	require.NoError(t, err)

	assert.Equal(t, "standup.events.standup.started", msg.Subject)
	assert.Equal(t, "standup.started", msg.Header.Get(HeaderEventType))
	assert.Equal(t, "i-1", msg.Header.Get(HeaderInstanceID))
	assert.NotEmpty(t, msg.Header.Get(HeaderEventID))

	var decoded events.FeedEvent
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, event.Members, decoded.Members)
	assert.Equal(t, 30, decoded.Duration)

	again, err := NewMessage("standup.events", event)
	require.NoError(t, err)
	assert.NotEqual(t, msg.Header.Get(HeaderEventID), again.Header.Get(HeaderEventID))
}
