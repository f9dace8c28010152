package conversation

import (
	"context"

	"github.com/go-go-golems/partes/pkg/vehicle"
)

type EventKind string

const (
	EventMessage EventKind = "message"
	EventState   EventKind = "state"
)

// State is everything about a session except its transcript.
type State struct {
	Mode          Mode             `json:"mode"`
	Transitioning bool             `json:"transitioning"`
	Chat          ChatState        `json:"chat"`
	Searching     bool             `json:"searching"`
	Loading       bool             `json:"loading"`
	Recording     bool             `json:"recording"`
	Suggestions   bool             `json:"suggestions"`
	Error         string           `json:"error,omitempty"`
	Vehicle       *vehicle.Vehicle `json:"vehicle,omitempty"`
}

// Event is a transcript or state change. Seq increases per session and lets
// subscribers order events that arrive out of order.
type Event struct {
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Kind      EventKind `json:"kind"`
	Message   *Message  `json:"message,omitempty"`
	State     State     `json:"state"`
}

// Publisher receives session events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishEvent(ctx context.Context, e Event) error
}

type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) PublishEvent(ctx context.Context, e Event) error {
	return f(ctx, e)
}
