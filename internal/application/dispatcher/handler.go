package dispatcher

import (
	"context"

	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// Handler processes one committed workflow event. A returned error is logged and
// never reaches the transition that produced the event.
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registered handler
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}

// Subscriber attaches its handlers to a dispatcher
type Subscriber interface {
	Register(d Dispatcher)
}

// RegisterAll attaches every subscriber to d in order
func RegisterAll(d Dispatcher, subscribers ...Subscriber) {
	for _, s := range subscribers {
		s.Register(d)
	}
}
