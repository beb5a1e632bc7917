package protocol

import "collabcanvas/internal/session"

// NaughtyLimit is how many protocol violations a client gets before it is
// dropped. The violation that reaches the limit earns a final warning; the
// next one disconnects.
const NaughtyLimit = 50

// Action is the outcome of one protocol violation.
type Action int

const (
	// Warn sends a warning and keeps the connection.
	Warn Action = iota
	// FinalWarn sends the last warning and keeps the connection.
	FinalWarn
	// Disconnect closes the connection and forgets the client.
	Disconnect
)

func (a Action) String() string {
	switch a {
	case Warn:
		return "warn"
	case FinalWarn:
		return "final_warn"
	default:
		return "disconnect"
	}
}

// Escalate counts a violation against s and decides what to do about it.
func Escalate(s *session.Session) Action {
	s.Naughty++
	switch {
	case s.Naughty < NaughtyLimit:
		return Warn
	case s.Naughty == NaughtyLimit:
		return FinalWarn
	default:
		return Disconnect
	}
}
