package audit

import (
	"github.com/velatrade/vela/internal/buffer"
)

// Recent keeps the last n audit events in memory for the admin surface.
type Recent struct {
	ring *buffer.Ring[Event]
}

func NewRecent(size int) *Recent {
	return &Recent{ring: buffer.NewRing[Event](size)}
}

func (r *Recent) Publish(event Event) {
	r.ring.Push(event)
}

// Events returns the retained events, oldest first.
func (r *Recent) Events() []Event {
	return r.ring.Get()
}
