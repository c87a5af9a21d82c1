package port

import (
	"context"
	"time"

	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// TransitionNotice describes a committed transition for downstream delivery
type TransitionNotice struct {
	DocumentType workflow.DocumentType
	DocumentID   string
	FromState    workflow.State
	ToState      workflow.State
	ActorID      string
	ActorRole    workflow.Role
	Version      int64
	Terminal     bool
	NextRoles    []workflow.Role
	OccurredAt   time.Time
}

// NotificationHook receives committed transitions. Delivery is best-effort;
// implementations must not block the caller on slow receivers.
type NotificationHook interface {
	Notify(ctx context.Context, notice TransitionNotice)
}

// LarkMessageSender defines message sending operations
type LarkMessageSender interface {
	SendMessage(ctx context.Context, receiveID string, content string) error
}
