// Package transport accepts WebSocket connections and turns them into hub
// events.
package transport

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"collabcanvas/internal/session"
)

const (
	// writeWait is how long a single frame may take to write.
	writeWait = 10 * time.Second
	// maxMessageSize bounds inbound frames. A tile is 6400 bytes; anything
	// much bigger is not a painter.
	maxMessageSize = 1 << 20
	// sendQueue is the number of outbound frames buffered per connection.
	sendQueue = 64
)

// Dispatcher receives connection events.
type Dispatcher interface {
	Connect(ctx context.Context, id session.ID, r session.Responder) error
	Disconnect(ctx context.Context, id session.ID) error
	Message(ctx context.Context, id session.ID, binary bool, payload []byte) error
}

// Server upgrades HTTP requests to WebSocket connections.
type Server struct {
	upgrader websocket.Upgrader
	hub      Dispatcher
	logger   logrus.FieldLogger
	nextID   atomic.Uint64
}

// NewServer creates a Server feeding hub.
func NewServer(hub Dispatcher, logger logrus.FieldLogger) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		hub:    hub,
		logger: logger,
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("upgrade failed")
		return
	}
	id := s.nextID.Add(1)
	c := newConn(id, ws, s.logger.WithField("id", id))
	go c.writePump()

	ctx := r.Context()
	if err := s.hub.Connect(ctx, id, c); err != nil {
		s.logger.WithError(err).WithField("id", id).Warn("register connection failed")
		c.Close()
		return
	}
	c.readPump(ctx, s.hub)
}

type outbound struct {
	kind int
	data []byte
}

// Conn is one WebSocket client. It implements session.Responder.
type Conn struct {
	id     session.ID
	ws     *websocket.Conn
	send   chan outbound
	done   chan struct{}
	once   sync.Once
	logger logrus.FieldLogger
}

func newConn(id session.ID, ws *websocket.Conn, logger logrus.FieldLogger) *Conn {
	return &Conn{
		id:     id,
		ws:     ws,
		send:   make(chan outbound, sendQueue),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// SendText queues a text frame.
func (c *Conn) SendText(data []byte) {
	c.enqueue(websocket.TextMessage, data)
}

// SendBinary queues a binary frame.
func (c *Conn) SendBinary(data []byte) {
	c.enqueue(websocket.BinaryMessage, data)
}

// Close shuts the connection down. Safe to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Conn) enqueue(kind int, data []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- outbound{kind: kind, data: data}:
	default:
		c.logger.Warn("send queue full, dropping frame")
	}
}

func (c *Conn) readPump(ctx context.Context, hub Dispatcher) {
	defer func() {
		c.Close()
		if err := hub.Disconnect(ctx, c.id); err != nil {
			c.logger.WithError(err).Debug("report disconnect failed")
		}
	}()
	c.ws.SetReadLimit(maxMessageSize)
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.WithError(err).Info("connection lost")
			}
			return
		}
		switch kind {
		case websocket.TextMessage, websocket.BinaryMessage:
			if err := hub.Message(ctx, c.id, kind == websocket.BinaryMessage, data); err != nil {
				return
			}
		}
	}
}

func (c *Conn) writePump() {
	defer c.ws.Close()
	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(msg.kind, msg.data); err != nil {
				c.logger.WithError(err).Debug("write failed")
				c.Close()
				return
			}
		case <-c.done:
			closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			c.ws.WriteControl(websocket.CloseMessage, closing, time.Now().Add(writeWait))
			return
		}
	}
}
