// Package painter is a reference painter client. It declares itself to the
// canvas server, then answers every poll with a freshly rendered tile.
package painter

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"collabcanvas/internal/protocol"
	"collabcanvas/internal/wsclient"
)

// Painter holds the identity announced to the server and the current tile.
type Painter struct {
	Name   string
	URL    string
	logger logrus.FieldLogger

	renderer *Renderer
}

// Reply is a message to send back. A nil Data means nothing to send.
type Reply struct {
	Binary bool
	Data   []byte
}

type declaration struct {
	Msg  string `json:"msg"`
	Role string `json:"?"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// New returns a painter announcing name and url.
func New(name, url string, logger logrus.FieldLogger) *Painter {
	return &Painter{Name: name, URL: url, logger: logger}
}

// Handle reacts to one text message from the server.
func (p *Painter) Handle(data []byte) (Reply, error) {
	in, err := protocol.Decode(data)
	if err != nil {
		return Reply{}, errors.Wrap(err, "decode server message failed")
	}
	msg, _ := in.Msg()
	switch msg {
	case protocol.WhoAreYou:
		out, err := json.Marshal(declaration{
			Msg:  protocol.WhoAreYou,
			Role: "painter",
			Name: p.Name,
			URL:  p.URL,
		})
		return Reply{Data: out}, err
	case protocol.BufferSize:
		w, wok := in["w"].(float64)
		h, hok := in["h"].(float64)
		if !wok || !hok || w <= 0 || h <= 0 {
			return Reply{}, errors.Errorf("bad size message %s", data)
		}
		p.renderer = NewRenderer(int(w), int(h))
		p.logger.WithFields(logrus.Fields{"w": int(w), "h": int(h)}).Info("tile allocated")
	case protocol.SendMePixels:
		if p.renderer == nil {
			p.logger.Warn("asked for pixels before size")
			return Reply{}, nil
		}
		pix, err := p.renderer.Next()
		if err != nil {
			return Reply{}, errors.Wrap(err, "render tile failed")
		}
		return Reply{Binary: true, Data: pix}, nil
	case protocol.Error:
		desc, _ := in.String(protocol.Error)
		p.logger.WithField("naughty", in["naughty"]).Warn(desc)
	default:
		p.logger.WithField("message", string(data)).Warn("unknown message")
	}
	return Reply{}, nil
}

// Serve talks to an established connection until it fails or ctx is done.
func (p *Painter) Serve(ctx context.Context, conn *websocket.Conn) error {
	defer wsclient.CloseOnDone(ctx, conn)()
	p.renderer = nil
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "read message failed")
		}
		if kind != websocket.TextMessage {
			continue
		}
		reply, err := p.Handle(data)
		if err != nil {
			p.logger.WithError(err).Warn("handle message failed")
			continue
		}
		if reply.Data == nil {
			continue
		}
		msgType := websocket.TextMessage
		if reply.Binary {
			msgType = websocket.BinaryMessage
		}
		if err := wsclient.Write(conn, msgType, reply.Data); err != nil {
			return err
		}
	}
}

// Run connects to url and serves it, reconnecting with exponential backoff
// whenever the connection drops, until ctx is done.
func (p *Painter) Run(ctx context.Context, url string) error {
	return wsclient.Run(ctx, url, p.logger, p.Serve)
}
