package hub

import (
	"context"
	"time"

	"collabcanvas/internal/protocol"
	"collabcanvas/internal/session"
)

// Poll asks every painter for its pixels once per poll interval until ctx is
// done. It never blocks the dispatch loop for longer than a registry read.
func (h *Hub) Poll(ctx context.Context) error {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n := h.pollPainters()
			h.logger.WithField("painters", n).Trace("polled painters")
		}
	}
}

func (h *Hub) pollPainters() int {
	n := 0
	h.registry.Each(func(_ session.ID, s session.Session) {
		if s.Role != session.Painter {
			return
		}
		s.Responder.SendText(protocol.PollRequest())
		n++
	})
	return n
}
