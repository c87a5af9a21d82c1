package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// LoggingSubscriber writes every committed transition to the structured log
type LoggingSubscriber struct {
	logger *zap.Logger
}

// NewLoggingSubscriber creates a logging subscriber
func NewLoggingSubscriber(logger *zap.Logger) *LoggingSubscriber {
	return &LoggingSubscriber{logger: logger}
}

// Register subscribes the logger to transition and terminal events
func (s *LoggingSubscriber) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeTransitionApplied, "transition-logger", s.Handle)
	d.SubscribeNamed(event.TypeDocumentTerminal, "terminal-logger", s.Handle)
}

// Handle logs a single event
func (s *LoggingSubscriber) Handle(_ context.Context, evt *event.Event) error {
	fields := []zap.Field{
		zap.String("event_id", evt.ID),
		zap.String("correlation_id", evt.CorrelationID),
		zap.String("document_type", evt.DocumentType),
		zap.String("document_id", evt.DocumentID),
		zap.String("from_state", evt.GetPayloadString(event.KeyFromState)),
		zap.String("to_state", evt.GetPayloadString(event.KeyToState)),
		zap.String("actor_id", evt.GetPayloadString(event.KeyActorID)),
		zap.Int64("version", evt.GetPayloadInt(event.KeyVersion)),
	}

	if evt.Type == event.TypeDocumentTerminal {
		s.logger.Info("Document reached terminal state", fields...)
		return nil
	}

	s.logger.Info("Transition committed",
		append(fields, zap.Strings("next_roles", evt.GetPayloadStrings(event.KeyNextRoles)))...)
	return nil
}
