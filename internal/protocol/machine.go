package protocol

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"collabcanvas/internal/canvas"
	"collabcanvas/internal/journal"
	"collabcanvas/internal/session"
)

// Journal receives lifecycle events. Record must not block.
type Journal interface {
	Record(ev journal.Event)
}

// Machine drives sessions and the compositor from client messages.
// It must only be used from one goroutine, the one that owns the compositor.
type Machine struct {
	registry   *session.Registry
	compositor *canvas.Compositor
	journal    Journal
	logger     logrus.FieldLogger
}

// Option configures a Machine.
type Option func(*Machine)

// WithJournal records connection lifecycle events.
func WithJournal(j Journal) Option {
	return func(m *Machine) {
		m.journal = j
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// NewMachine creates a Machine over the given registry and compositor.
func NewMachine(registry *session.Registry, compositor *canvas.Compositor, opts ...Option) *Machine {
	m := &Machine{
		registry:   registry,
		compositor: compositor,
		journal:    journal.Discard,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect registers a new connection and asks it who it is.
func (m *Machine) Connect(id session.ID, r session.Responder) {
	m.logger.WithField("id", id).Info("client connected")
	m.registry.Add(id, r)
	r.SendText(Greeting())
	m.journal.Record(journal.Event{Kind: journal.KindConnect, Conn: id})
}

// Disconnect forgets a connection that has gone away.
func (m *Machine) Disconnect(id session.ID) {
	m.logger.WithField("id", id).Info("client disconnected")
	existed := m.registry.Remove(id)
	m.compositor.Remove(id)
	if existed {
		m.journal.Record(journal.Event{Kind: journal.KindLeave, Conn: id})
	}
}

// Text handles a text frame.
func (m *Machine) Text(id session.ID, payload []byte) {
	in, err := Decode(payload)
	found := m.registry.Update(id, func(s *session.Session) bool {
		if err != nil {
			return m.violation(id, s, fmt.Sprintf("(Cannot parse) %v", err))
		}
		return m.handle(id, s, in)
	})
	if !found {
		m.logger.WithField("id", id).Warn("text from unknown client")
	}
}

// Binary handles a binary frame, which is only meaningful from a painter.
func (m *Machine) Binary(id session.ID, payload []byte) {
	err := m.compositor.Update(id, payload)
	if err == nil {
		return
	}
	if !canvas.IsClientFault(err) {
		m.logger.WithError(err).WithField("id", id).Error("update pixels failed")
		return
	}
	found := m.registry.Update(id, func(s *session.Session) bool {
		return m.violation(id, s, err.Error())
	})
	if !found {
		m.logger.WithField("id", id).Warn("pixels from unknown client")
	}
}

func (m *Machine) handle(id session.ID, s *session.Session, in Inbound) bool {
	msg, ok := in.Msg()
	if !ok {
		return m.violation(id, s, "Invalid message")
	}
	switch msg {
	case WhoAreYou:
		return m.declare(id, s, in)
	case SendMePixels:
		if pix := m.compositor.Pixels(); len(pix) > 0 {
			s.Responder.SendBinary(canvas.EncodeFrame(m.compositor.Dim(), pix))
		}
		return true
	default:
		return m.violation(id, s, fmt.Sprintf("Unknown message: %s", msg))
	}
}

func (m *Machine) declare(id session.ID, s *session.Session, in Inbound) bool {
	who, ok := in.String(WhoAreYou)
	if !ok {
		return m.violation(id, s, "Expected field ?")
	}
	role, err := session.ParseRole(who)
	if err != nil {
		return m.violation(id, s, fmt.Sprintf("%s is not a valid ?. Should be painter or canvas", who))
	}

	s.Role = role
	switch role {
	case session.Painter:
		s.Name, _ = in.String("name")
		s.URL, _ = in.String("url")
		if err := m.compositor.Insert(id); err != nil {
			m.logger.WithError(err).WithField("id", id).Error("cannot place painter")
			s.Responder.Close()
			m.compositor.Remove(id)
			m.journal.Record(journal.Event{Kind: journal.KindReject, Conn: id, Name: s.Name, URL: s.URL, Detail: err.Error()})
			return false
		}
		m.logger.WithFields(logrus.Fields{"id": id, "name": s.Name, "url": s.URL}).Info("painter joined")
		m.journal.Record(journal.Event{Kind: journal.KindJoin, Conn: id, Name: s.Name, URL: s.URL})
	case session.Canvas:
		m.logger.WithField("id", id).Info("canvas joined")
		m.journal.Record(journal.Event{Kind: journal.KindCanvas, Conn: id})
	}
	s.Responder.SendText(SizeReply())
	return true
}

// violation applies the escalation ladder. It returns false when the session
// has to go.
func (m *Machine) violation(id session.ID, s *session.Session, description string) bool {
	action := Escalate(s)
	log := m.logger.WithFields(logrus.Fields{"id": id, "naughty": s.Naughty, "action": action})
	switch action {
	case Warn:
		log.Debug(description)
		s.Responder.SendText(Warning(description, s.Naughty, false))
		return true
	case FinalWarn:
		log.Warn(description)
		s.Responder.SendText(Warning(description, s.Naughty, true))
		return true
	default:
		log.Warn("dropping misbehaving client")
		s.Responder.Close()
		m.compositor.Remove(id)
		m.journal.Record(journal.Event{Kind: journal.KindKick, Conn: id, Name: s.Name, URL: s.URL, Detail: description})
		return false
	}
}
