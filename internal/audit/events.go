package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/velatrade/vela/internal/gate"
	"github.com/velatrade/vela/internal/model"
	"github.com/velatrade/vela/internal/risk"
)

// Type enumerates the audit event kinds.
type Type string

const (
	// TypeVerdict records a validator verdict with its full inputs.
	TypeVerdict Type = "verdict"
	// TypeSizing records a sizing result.
	TypeSizing Type = "sizing"
	// TypeOrder records a submitted order intent.
	TypeOrder Type = "order"
	// TypeFill records a gateway fill.
	TypeFill Type = "fill"
	// TypeTransition records a position state transition with the full
	// position snapshot after the transition.
	TypeTransition Type = "transition"
	// TypeBand records a risk band change.
	TypeBand Type = "band"
	// TypeWarning records a data quality degradation to hold.
	TypeWarning Type = "warning"
)

// Event is one entry of the audit stream. Every verdict, sizing decision,
// state transition and band change is emitted with the numeric inputs that
// produced it, so a run can be replayed from the stream alone.
type Event struct {
	ID        string           `json:"id"`
	Type      Type             `json:"type"`
	Time      time.Time        `json:"time"`
	Coin      model.Coin       `json:"coin,omitempty"`
	Cycle     int64            `json:"cycle,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Decision  *model.Decision  `json:"decision,omitempty"`
	Verdict   *gate.Verdict    `json:"verdict,omitempty"`
	Sizing    *risk.Result     `json:"sizing,omitempty"`
	Order     *model.Order     `json:"order,omitempty"`
	Fill      *model.Fill      `json:"fill,omitempty"`
	Position  *model.Position  `json:"position,omitempty"`
	Band      string           `json:"band,omitempty"`
	Portfolio *model.Portfolio `json:"portfolio,omitempty"`
}

// New creates an event of the given type stamped at the given time.
func New(t Type, coin model.Coin, at time.Time) Event {
	return Event{
		ID:   uuid.New().String(),
		Type: t,
		Coin: coin,
		Time: at,
	}
}

// Publisher is the audit stream sink.
type Publisher interface {
	Publish(event Event)
}

// Void swallows all events, for tests that dont care.
type Void struct{}

func (Void) Publish(Event) {}

// Capture keeps the events in memory, for tests and replay.
type Capture struct {
	Events []Event
}

func NewCapture() *Capture {
	return &Capture{Events: make([]Event, 0)}
}

func (c *Capture) Publish(event Event) {
	c.Events = append(c.Events, event)
}

// For returns the captured events for a coin.
func (c *Capture) For(coin model.Coin) []Event {
	out := make([]Event, 0)
	for _, e := range c.Events {
		if e.Coin == coin {
			out = append(out, e)
		}
	}
	return out
}

// ReplayPosition reconstructs the position state from its event stream.
// Transition events carry the full snapshot, so replay is the last one.
func ReplayPosition(events []Event) (model.Position, error) {
	var found *model.Position
	for i := range events {
		if events[i].Type == TypeTransition && events[i].Position != nil {
			found = events[i].Position
		}
	}
	if found == nil {
		return model.Position{}, fmt.Errorf("no position transitions in stream")
	}
	return *found, nil
}
