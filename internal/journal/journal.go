// Package journal keeps an append-only audit trail of who connected to the
// canvas, who painted on it and who got thrown off. Nothing in it is ever read
// back by the server: canvas state lives in memory only.
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Kind is what happened to a connection.
type Kind string

const (
	KindConnect Kind = "connect"
	KindJoin    Kind = "join"
	KindCanvas  Kind = "canvas"
	KindLeave   Kind = "leave"
	KindKick    Kind = "kick"
	KindReject  Kind = "reject"
)

// Event is one journal entry.
type Event struct {
	ID     uuid.UUID `json:"id"`
	Time   time.Time `json:"time"`
	Kind   Kind      `json:"kind"`
	Conn   uint64    `json:"conn"`
	Name   string    `json:"name,omitempty"`
	URL    string    `json:"url,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// Store persists events.
type Store interface {
	Append(ctx context.Context, ev Event) error
	Close() error
}

type discard struct{}

func (discard) Record(Event) {}

// Discard drops every event.
var Discard = discard{}

// DefaultQueueSize is the number of events a Recorder buffers.
const DefaultQueueSize = 256

// Recorder writes events to a Store on its own goroutine so the caller never
// waits on a database.
type Recorder struct {
	store  Store
	queue  chan Event
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewRecorder creates a Recorder. Call Run to start draining it.
func NewRecorder(store Store, logger logrus.FieldLogger) *Recorder {
	return &Recorder{
		store:  store,
		queue:  make(chan Event, DefaultQueueSize),
		logger: logger,
		now:    time.Now,
	}
}

// Record stamps the event and queues it. Events are dropped when the queue
// is full.
func (r *Recorder) Record(ev Event) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Time.IsZero() {
		ev.Time = r.now().UTC()
	}
	select {
	case r.queue <- ev:
	default:
		r.logger.WithField("kind", ev.Kind).Warn("journal queue full, dropping event")
	}
}

// Run appends queued events until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return nil
		case ev := <-r.queue:
			r.append(ctx, ev)
		}
	}
}

func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-r.queue:
			r.append(ctx, ev)
		default:
			return
		}
	}
}

func (r *Recorder) append(ctx context.Context, ev Event) {
	if err := r.store.Append(ctx, ev); err != nil {
		r.logger.WithError(err).WithField("kind", ev.Kind).Error("append journal event failed")
	}
}

// Open opens the store for the named driver. "none" and "" return nil.
func Open(ctx context.Context, driver, dsn, path string) (Store, error) {
	switch driver {
	case "", "none":
		return nil, nil
	case "postgres":
		store, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "bolt":
		store, err := OpenBolt(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, errors.Errorf("unknown journal driver %q", driver)
	}
}
