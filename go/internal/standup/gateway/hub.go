package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/standup/go/internal/standup/events"
	"github.com/mcdev12/standup/go/internal/standup/session"
)

// ErrHubStopped is returned when a request reaches a hub that is no longer running
var ErrHubStopped = errors.New("session hub stopped")

type commandKind int

const (
	commandAttach commandKind = iota
	commandMessage
	commandDetach
	commandQuery
)

type command struct {
	kind  commandKind
	conn  *Connection
	data  []byte
	query func()
	done  chan struct{}
}

// Stats summarizes live sessions and connections
type Stats struct {
	TotalConnections int      `json:"total_connections"`
	ActiveSessions   int      `json:"active_sessions"`
	Sessions         []string `json:"sessions,omitempty"`
}

// Hub is the single execution context for all session state. Every attach,
// message, detach and query goes through one channel, so events from one
// connection keep their order and each is applied to completion before the next.
type Hub struct {
	processor *session.Processor
	registry  *session.Registry
	commands  chan command
	done      chan struct{}
}

// NewHub creates a hub around a processor and the registry it mutates
func NewHub(processor *session.Processor, registry *session.Registry, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &Hub{
		processor: processor,
		registry:  registry,
		commands:  make(chan command, bufferSize),
		done:      make(chan struct{}),
	}
}

// Run processes commands until ctx is cancelled, then closes every socket
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("session hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			log.Info().Msg("session hub shutting down")
			return
		case cmd := <-h.commands:
			h.handle(cmd)
		}
	}
}

func (h *Hub) handle(cmd command) {
	switch cmd.kind {
	case commandAttach:
		h.processor.Attach(cmd.conn.instanceID, cmd.conn)
	case commandMessage:
		h.processor.Handle(cmd.conn.instanceID, cmd.conn, cmd.data)
	case commandDetach:
		h.processor.Detach(cmd.conn.instanceID, cmd.conn)
		cmd.conn.close()
		log.Debug().
			Str("instance_id", cmd.conn.instanceID).
			Str("connection_id", cmd.conn.id).
			Dur("uptime", cmd.conn.Uptime(time.Now())).
			Msg("connection closed")
	case commandQuery:
		cmd.query()
	}
	if cmd.done != nil {
		close(cmd.done)
	}
}

func (h *Hub) shutdown() {
	for _, id := range h.registry.IDs() {
		s, ok := h.registry.Get(id)
		if !ok {
			continue
		}
		s.Connections().ForEach(func(peer session.Peer) {
			if c, ok := peer.(*Connection); ok {
				c.conn.Close()
			}
		})
	}
}

func (h *Hub) submit(cmd command) bool {
	return h.submitOrCancel(context.Background(), cmd)
}

func (h *Hub) submitOrCancel(ctx context.Context, cmd command) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.commands <- cmd:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// submitAndWait blocks until the hub has applied cmd
func (h *Hub) submitAndWait(ctx context.Context, cmd command) error {
	cmd.done = make(chan struct{})
	if !h.submitOrCancel(ctx, cmd) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrHubStopped
	}
	select {
	case <-cmd.done:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Attach registers a validated connection and returns once it is in the session
func (h *Hub) Attach(ctx context.Context, c *Connection) error {
	return h.submitAndWait(ctx, command{kind: commandAttach, conn: c})
}

// Deliver queues an inbound message; false means the hub has stopped
func (h *Hub) Deliver(c *Connection, data []byte) bool {
	return h.submit(command{kind: commandMessage, conn: c, data: data})
}

// Detach queues removal of a closed connection
func (h *Hub) Detach(c *Connection) {
	h.submit(command{kind: commandDetach, conn: c})
}

// Snapshot returns the current view of a session
func (h *Hub) Snapshot(ctx context.Context, instanceID string) (events.StateView, bool, error) {
	var (
		view events.StateView
		ok   bool
	)
	err := h.submitAndWait(ctx, command{kind: commandQuery, query: func() {
		view, ok = h.processor.Snapshot(instanceID)
	}})
	return view, ok, err
}

// Stats returns connection statistics
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := h.submitAndWait(ctx, command{kind: commandQuery, query: func() {
		stats = Stats{
			TotalConnections: h.registry.ConnectionCount(),
			ActiveSessions:   h.registry.Len(),
			Sessions:         h.registry.IDs(),
		}
	}})
	return stats, err
}
