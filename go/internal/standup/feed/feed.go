package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/standup/go/internal/standup/events"
)

// Publisher delivers one lifecycle event to an external system
type Publisher interface {
	Publish(ctx context.Context, event events.FeedEvent) error
	Close() error
}

type Config struct {
	BufferSize     int
	PublishTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BufferSize:     1024,
		PublishTimeout: 5 * time.Second,
	}
}

// Feed decouples the session hub from the publisher. Notify never blocks;
// a worker goroutine drains the buffer and publishes in order.
type Feed struct {
	publisher Publisher
	config    Config
	queue     chan events.FeedEvent

	mu      sync.Mutex
	dropped int
}

func New(publisher Publisher, cfg Config) *Feed {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultConfig().PublishTimeout
	}
	return &Feed{
		publisher: publisher,
		config:    cfg,
		queue:     make(chan events.FeedEvent, cfg.BufferSize),
	}
}

// Notify enqueues an event, dropping it when the buffer is full
func (f *Feed) Notify(event events.FeedEvent) {
	select {
	case f.queue <- event:
	default:
		f.mu.Lock()
		f.dropped++
		f.mu.Unlock()
		log.Warn().
			Str("event_type", string(event.Type)).
			Str("instance_id", event.InstanceID).
			Msg("feed buffer full, dropping event")
	}
}

// Dropped returns how many events were discarded because the buffer was full
func (f *Feed) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Run publishes queued events until ctx is cancelled, then flushes what is left
func (f *Feed) Run(ctx context.Context) {
	log.Info().Int("buffer_size", f.config.BufferSize).Msg("session feed started")

	for {
		select {
		case <-ctx.Done():
			f.flush()
			log.Info().Msg("session feed stopped")
			return
		case event := <-f.queue:
			f.publish(context.Background(), event)
		}
	}
}

func (f *Feed) flush() {
	for {
		select {
		case event := <-f.queue:
			f.publish(context.Background(), event)
		default:
			return
		}
	}
}

func (f *Feed) publish(parent context.Context, event events.FeedEvent) {
	ctx, cancel := context.WithTimeout(parent, f.config.PublishTimeout)
	defer cancel()

	if err := f.publisher.Publish(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("event_type", string(event.Type)).
			Str("instance_id", event.InstanceID).
			Msg("failed to publish feed event")
	}
}

// Close releases the publisher
func (f *Feed) Close() error {
	return f.publisher.Close()
}
