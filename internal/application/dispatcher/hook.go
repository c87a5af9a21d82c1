package dispatcher

import (
	"context"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// Hook bridges the engine's notification hook to the event dispatcher.
// Every notice becomes a transition.applied event, plus document.terminal
// when the document reached a terminal state.
type Hook struct {
	dispatcher Dispatcher
}

var _ port.NotificationHook = (*Hook)(nil)

// NewHook creates a notification hook that dispatches asynchronously
func NewHook(d Dispatcher) *Hook {
	return &Hook{dispatcher: d}
}

// Notify converts the notice into domain events and dispatches them without waiting
func (h *Hook) Notify(ctx context.Context, notice port.TransitionNotice) {
	for _, evt := range EventsFor(notice) {
		h.dispatcher.DispatchAsync(ctx, evt)
	}
}

// EventsFor builds the domain events describing a committed transition
func EventsFor(notice port.TransitionNotice) []*event.Event {
	nextRoles := make([]string, 0, len(notice.NextRoles))
	for _, r := range notice.NextRoles {
		nextRoles = append(nextRoles, r.String())
	}

	payload := map[string]interface{}{
		event.KeyFromState: notice.FromState.String(),
		event.KeyToState:   notice.ToState.String(),
		event.KeyActorID:   notice.ActorID,
		event.KeyActorRole: notice.ActorRole.String(),
		event.KeyVersion:   notice.Version,
		event.KeyNextRoles: nextRoles,
	}

	applied := event.NewEvent(event.TypeTransitionApplied, notice.DocumentType.String(), notice.DocumentID, payload)
	if !notice.OccurredAt.IsZero() {
		applied.Timestamp = notice.OccurredAt
	}
	events := []*event.Event{applied}

	if notice.Terminal {
		terminal := event.NewEventWithCorrelation(event.TypeDocumentTerminal, notice.DocumentType.String(),
			notice.DocumentID, copyPayload(payload), applied.CorrelationID)
		terminal.Timestamp = applied.Timestamp
		events = append(events, terminal)
	}

	return events
}

func copyPayload(p map[string]interface{}) map[string]interface{} {
	c := make(map[string]interface{}, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}
