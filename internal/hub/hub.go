// Package hub runs the two long-lived loops of the canvas server.
//
// The dispatch loop (Run) receives connect, disconnect and message events
// from the transport and handles them one at a time. It is the only goroutine
// that touches the compositor, so the compositor needs no lock of its own.
// The poll loop (Poll) wakes up every second and asks each painter for fresh
// pixels; it only reads the session registry.
package hub

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"collabcanvas/internal/canvas"
	"collabcanvas/internal/protocol"
	"collabcanvas/internal/session"
)

// ErrStopped is returned when an event is sent to a hub that is no longer
// running.
var ErrStopped = errors.New("hub stopped")

// DefaultPollInterval is how often painters are asked for pixels.
const DefaultPollInterval = time.Second

// EventKind says what an Event carries.
type EventKind int

const (
	Connect EventKind = iota
	Disconnect
	Message
)

// Event is something the transport saw happen on a connection.
type Event struct {
	Kind      EventKind
	ID        session.ID
	Responder session.Responder
	Binary    bool
	Payload   []byte
}

// FrameSink receives composite snapshots. Offer must not block.
type FrameSink interface {
	Offer(s canvas.Snapshot)
}

// Hub owns the registry, the compositor and the protocol state machine.
type Hub struct {
	registry   *session.Registry
	compositor *canvas.Compositor
	machine    *protocol.Machine

	events    chan Event
	snapshots chan chan canvas.Snapshot
	done      chan struct{}

	pollInterval  time.Duration
	sink          FrameSink
	frameInterval time.Duration
	journal       protocol.Journal
	logger        logrus.FieldLogger
}

// Option configures a Hub.
type Option func(*Hub)

// WithPollInterval changes how often painters are polled.
func WithPollInterval(d time.Duration) Option {
	return func(h *Hub) {
		h.pollInterval = d
	}
}

// WithFrameSink offers a snapshot of the composite to sink every interval.
func WithFrameSink(sink FrameSink, interval time.Duration) Option {
	return func(h *Hub) {
		h.sink = sink
		h.frameInterval = interval
	}
}

// WithJournal records connection lifecycle events.
func WithJournal(j protocol.Journal) Option {
	return func(h *Hub) {
		h.journal = j
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(h *Hub) {
		h.logger = l
	}
}

// New creates a Hub with an empty canvas.
func New(opts ...Option) *Hub {
	h := &Hub{
		registry:     session.NewRegistry(),
		compositor:   canvas.NewCompositor(),
		events:       make(chan Event, 64),
		snapshots:    make(chan chan canvas.Snapshot),
		done:         make(chan struct{}),
		pollInterval: DefaultPollInterval,
		logger:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	machineOpts := []protocol.Option{protocol.WithLogger(h.logger)}
	if h.journal != nil {
		machineOpts = append(machineOpts, protocol.WithJournal(h.journal))
	}
	h.machine = protocol.NewMachine(h.registry, h.compositor, machineOpts...)
	return h
}

// Registry is the session registry. Safe for concurrent reads.
func (h *Hub) Registry() *session.Registry {
	return h.registry
}

// Connect reports a new connection.
func (h *Hub) Connect(ctx context.Context, id session.ID, r session.Responder) error {
	return h.send(ctx, Event{Kind: Connect, ID: id, Responder: r})
}

// Disconnect reports a closed connection.
func (h *Hub) Disconnect(ctx context.Context, id session.ID) error {
	return h.send(ctx, Event{Kind: Disconnect, ID: id})
}

// Message reports a frame received on a connection.
func (h *Hub) Message(ctx context.Context, id session.ID, binary bool, payload []byte) error {
	return h.send(ctx, Event{Kind: Message, ID: id, Binary: binary, Payload: payload})
}

func (h *Hub) send(ctx context.Context, ev Event) error {
	select {
	case h.events <- ev:
		return nil
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot asks the dispatch loop for a copy of the composite.
func (h *Hub) Snapshot(ctx context.Context) (canvas.Snapshot, error) {
	reply := make(chan canvas.Snapshot, 1)
	select {
	case h.snapshots <- reply:
	case <-h.done:
		return canvas.Snapshot{}, ErrStopped
	case <-ctx.Done():
		return canvas.Snapshot{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return canvas.Snapshot{}, ctx.Err()
	}
}

// Run is the dispatch loop. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	var frames <-chan time.Time
	if h.sink != nil && h.frameInterval > 0 {
		ticker := time.NewTicker(h.frameInterval)
		defer ticker.Stop()
		frames = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-h.events:
			h.dispatch(ev)
		case reply := <-h.snapshots:
			reply <- h.compositor.Snapshot()
		case <-frames:
			if s := h.compositor.Snapshot(); !s.Empty() {
				h.sink.Offer(s)
			}
		}
	}
}

func (h *Hub) dispatch(ev Event) {
	switch ev.Kind {
	case Connect:
		h.machine.Connect(ev.ID, ev.Responder)
	case Disconnect:
		h.machine.Disconnect(ev.ID)
	case Message:
		if ev.Binary {
			h.machine.Binary(ev.ID, ev.Payload)
		} else {
			h.machine.Text(ev.ID, ev.Payload)
		}
	default:
		h.logger.WithField("kind", ev.Kind).Error("unknown event")
	}
}
