// Package viewer is a canvas client: it declares itself a canvas, asks for
// the composite every poll interval and hands each frame to a callback.
package viewer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"collabcanvas/internal/canvas"
	"collabcanvas/internal/protocol"
	"collabcanvas/internal/wsclient"
)

// DefaultInterval is how often the viewer asks for pixels.
const DefaultInterval = time.Second

// FrameFunc receives every decoded frame. An empty snapshot means the canvas
// was cleared.
type FrameFunc func(s canvas.Snapshot) error

// Viewer follows the composite on one server.
type Viewer struct {
	show     FrameFunc
	interval time.Duration
	logger   logrus.FieldLogger
}

// Option configures a Viewer.
type Option func(*Viewer)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(v *Viewer) {
		v.interval = d
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(v *Viewer) {
		v.logger = l
	}
}

// New returns a viewer calling show for every frame.
func New(show FrameFunc, opts ...Option) *Viewer {
	v := &Viewer{
		show:     show,
		interval: DefaultInterval,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type declaration struct {
	Msg  string `json:"msg"`
	Role string `json:"?"`
}

// Handle reacts to one message from the server and returns the text reply,
// if any.
func (v *Viewer) Handle(kind int, data []byte) ([]byte, error) {
	if kind == websocket.BinaryMessage {
		snap, err := canvas.DecodeFrame(data)
		if err != nil {
			return nil, errors.Wrap(err, "decode frame failed")
		}
		return nil, errors.Wrap(v.show(snap), "show frame failed")
	}

	in, err := protocol.Decode(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode server message failed")
	}
	msg, _ := in.Msg()
	switch msg {
	case protocol.WhoAreYou:
		return json.Marshal(declaration{Msg: protocol.WhoAreYou, Role: "canvas"})
	case protocol.BufferSize:
		v.logger.WithFields(logrus.Fields{"w": in["w"], "h": in["h"]}).Debug("tile size")
	case protocol.Error:
		desc, _ := in.String(protocol.Error)
		v.logger.WithField("naughty", in["naughty"]).Warn(desc)
	default:
		v.logger.WithField("message", string(data)).Warn("unknown message")
	}
	return nil, nil
}

type inbound struct {
	kind int
	data []byte
}

// Serve polls and renders over an established connection until it fails or
// ctx is done. All writes happen on the calling goroutine.
func (v *Viewer) Serve(ctx context.Context, conn *websocket.Conn) error {
	defer wsclient.CloseOnDone(ctx, conn)()

	done := make(chan struct{})
	defer close(done)
	messages := make(chan inbound)
	readErr := make(chan error, 1)
	go func() {
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case messages <- inbound{kind: kind, data: data}:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "read message failed")
		case <-ticker.C:
			if err := wsclient.Write(conn, websocket.TextMessage, protocol.PollRequest()); err != nil {
				return err
			}
		case m := <-messages:
			reply, err := v.Handle(m.kind, m.data)
			if err != nil {
				v.logger.WithError(err).Warn("handle message failed")
				continue
			}
			if reply == nil {
				continue
			}
			if err := wsclient.Write(conn, websocket.TextMessage, reply); err != nil {
				return err
			}
		}
	}
}

// Run connects to url and follows the canvas, reconnecting with exponential
// backoff, until ctx is done.
func (v *Viewer) Run(ctx context.Context, url string) error {
	return wsclient.Run(ctx, url, v.logger, v.Serve)
}
