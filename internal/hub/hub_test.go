package hub

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabcanvas/internal/canvas"
	"collabcanvas/internal/protocol"
	"collabcanvas/internal/session"
)

type recorder struct {
	mu       sync.Mutex
	texts    [][]byte
	binaries [][]byte
	closed   bool
}

func (r *recorder) SendText(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, data)
}

func (r *recorder) SendBinary(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.binaries = append(r.binaries, data)
}

func (r *recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *recorder) count(msg []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.texts {
		if bytes.Equal(t, msg) {
			n++
		}
	}
	return n
}

type sink struct {
	mu     sync.Mutex
	offers []canvas.Snapshot
}

func (s *sink) Offer(snap canvas.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers = append(s.offers, snap)
}

func (s *sink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.offers)
}

func start(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	logger, _ := test.NewNullLogger()
	h := New(append([]Option{WithLogger(logger)}, opts...)...)
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 2)
	go func() { errs <- h.Run(ctx) }()
	go func() { errs <- h.Poll(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errs)
		require.NoError(t, <-errs)
	})
	return h
}

func TestDispatchAndSnapshot(t *testing.T) {
	h := start(t)
	ctx := context.Background()
	r := &recorder{}

	require.NoError(t, h.Connect(ctx, 1, r))
	require.NoError(t, h.Message(ctx, 1, false, []byte(`{"msg":"?","?":"painter"}`)))
	require.NoError(t, h.Message(ctx, 1, true, bytes.Repeat([]byte{9}, canvas.TileBytes)))

	snap, err := h.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, snap.Dim)
	assert.Equal(t, bytes.Repeat([]byte{9}, canvas.TileBytes), snap.Pix)

	require.NoError(t, h.Disconnect(ctx, 1))
	snap, err = h.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Empty())
	assert.Equal(t, 0, h.Registry().Len())
}

func TestPollOnlyAsksPainters(t *testing.T) {
	h := start(t, WithPollInterval(10*time.Millisecond))
	ctx := context.Background()
	painter, viewer, unknown := &recorder{}, &recorder{}, &recorder{}

	require.NoError(t, h.Connect(ctx, 1, painter))
	require.NoError(t, h.Connect(ctx, 2, viewer))
	require.NoError(t, h.Connect(ctx, 3, unknown))
	require.NoError(t, h.Message(ctx, 1, false, []byte(`{"msg":"?","?":"painter"}`)))
	require.NoError(t, h.Message(ctx, 2, false, []byte(`{"msg":"?","?":"canvas"}`)))

	require.Eventually(t, func() bool {
		return painter.count(protocol.PollRequest()) >= 2
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, viewer.count(protocol.PollRequest()))
	assert.Zero(t, unknown.count(protocol.PollRequest()))
}

func TestPollPaintersCount(t *testing.T) {
	h := New()
	h.registry.Add(1, &recorder{})
	h.registry.Add(2, &recorder{})
	h.registry.Update(2, func(s *session.Session) bool {
		s.Role = session.Painter
		return true
	})
	assert.Equal(t, 1, h.pollPainters())
}

func TestFramesOfferedToSink(t *testing.T) {
	s := &sink{}
	h := start(t, WithFrameSink(s, 10*time.Millisecond))
	ctx := context.Background()

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, s.len(), "empty canvas is not offered")

	require.NoError(t, h.Connect(ctx, 1, &recorder{}))
	require.NoError(t, h.Message(ctx, 1, false, []byte(`{"msg":"?","?":"painter"}`)))
	require.Eventually(t, func() bool { return s.len() > 0 }, time.Second, 5*time.Millisecond)
}

func TestStoppedHub(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := New(WithLogger(logger))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.Run(ctx))

	// fill the buffer so the next send has to wait
	for i := 0; i < cap(h.events); i++ {
		h.events <- Event{Kind: Disconnect, ID: 1}
	}
	assert.ErrorIs(t, h.Disconnect(context.Background(), 1), ErrStopped)
	_, err := h.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}
