package canvas

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrDuplicate is returned by Insert when the painter already has a slot.
var ErrDuplicate = errors.New("painter already in image buffer")

// ErrCapacity is returned by Insert when all MaxPainters slots are taken.
var ErrCapacity = errors.New("too many painters")

// Fault says who is to blame for a failed update.
type Fault int

const (
	// ServerFault means an invariant inside the server was broken.
	// Never count these against the client.
	ServerFault Fault = iota
	// ClientFault means the painter sent something it should not have.
	ClientFault
)

func (f Fault) String() string {
	switch f {
	case ServerFault:
		return "server"
	case ClientFault:
		return "client"
	default:
		return fmt.Sprintf("fault(%d)", int(f))
	}
}

// UpdateError is returned by Compositor.Update.
type UpdateError struct {
	Fault   Fault
	Message string
}

func (e *UpdateError) Error() string {
	return e.Message
}

// IsClientFault reports whether err is an UpdateError the client caused.
func IsClientFault(err error) bool {
	var ue *UpdateError
	return errors.As(err, &ue) && ue.Fault == ClientFault
}

func clientError(format string, args ...any) error {
	return &UpdateError{Fault: ClientFault, Message: fmt.Sprintf(format, args...)}
}

func serverError(format string, args ...any) error {
	return &UpdateError{Fault: ServerFault, Message: fmt.Sprintf(format, args...)}
}
