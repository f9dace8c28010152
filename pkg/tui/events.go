package tui

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/partes/pkg/conversation"
)

// EventChannel is a conversation.Publisher that hands session events to the
// bubbletea program. Events are only refresh signals, so a full channel
// drops them.
type EventChannel struct {
	ch chan conversation.Event
}

var _ conversation.Publisher = (*EventChannel)(nil)

func NewEventChannel(size int) *EventChannel {
	return &EventChannel{ch: make(chan conversation.Event, size)}
}

func (c *EventChannel) PublishEvent(_ context.Context, e conversation.Event) error {
	select {
	case c.ch <- e:
	default:
		log.Debug().Str("component", "tui").Uint64("seq", e.Seq).Msg("event channel full, dropping refresh")
	}
	return nil
}

func (c *EventChannel) Events() <-chan conversation.Event {
	return c.ch
}
