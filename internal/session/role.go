package session

import (
	"fmt"

	"github.com/pkg/errors"
)

// Role is what a connection declared itself to be.
type Role int

const (
	// Unknown is every connection until it answers the "?" greeting.
	Unknown Role = iota
	// Painter owns a tile and is polled for pixels.
	Painter
	// Canvas views the composite.
	Canvas
)

// ErrInvalidRole is returned by ParseRole for anything but painter or canvas.
var ErrInvalidRole = errors.New("not a valid role")

// ParseRole validates a role declaration.
func ParseRole(s string) (Role, error) {
	switch s {
	case "painter":
		return Painter, nil
	case "canvas":
		return Canvas, nil
	default:
		return Unknown, errors.Wrapf(ErrInvalidRole, "%q", s)
	}
}

func (r Role) String() string {
	switch r {
	case Unknown:
		return "unknown"
	case Painter:
		return "painter"
	case Canvas:
		return "canvas"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// MarshalText lets roles show up by name in JSON.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
