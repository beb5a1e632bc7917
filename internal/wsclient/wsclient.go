// Package wsclient keeps a WebSocket client connected to the canvas server,
// redialling with exponential backoff whenever the connection drops.
package wsclient

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// WriteWait bounds a single frame write.
const WriteWait = 10 * time.Second

// ServeFunc talks to one established connection until it fails or ctx is
// done. The connection is closed after it returns.
type ServeFunc func(ctx context.Context, conn *websocket.Conn) error

// Run dials url and hands each connection to serve, reconnecting until ctx is
// done. It returns nil on cancellation.
func Run(ctx context.Context, url string, logger logrus.FieldLogger, serve ServeFunc) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0

	op := func() error {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return errors.Wrapf(err, "dial %s failed", url)
		}
		defer conn.Close()
		b.Reset()
		logger.WithField("url", url).Info("connected")

		err = serve(ctx, conn)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.WithError(err).WithField("retry_in", wait).Warn("connection lost")
	}
	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// CloseOnDone closes conn when ctx is done so blocked reads return. Call the
// returned func to stop watching.
func CloseOnDone(ctx context.Context, conn *websocket.Conn) func() bool {
	return context.AfterFunc(ctx, func() { conn.Close() })
}

// Write sends one frame with the write deadline applied.
func Write(conn *websocket.Conn, msgType int, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return errors.Wrap(conn.WriteMessage(msgType, data), "write message failed")
}
