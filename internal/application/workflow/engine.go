package workflow

import (
	"context"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// ApplyRequest asks the engine to move a document to a target state
type ApplyRequest struct {
	DocumentType    domainwf.DocumentType
	DocumentID      string
	ToState         domainwf.State
	ActorID         string
	ActorRole       domainwf.Role
	ExpectedVersion int64
	// GuardResult is the caller-evaluated business guard; nil when not supplied
	GuardResult *bool
}

// WorkflowEngine applies transitions to documents and records every attempt
type WorkflowEngine interface {
	// Apply validates and applies a transition. Failures are *domainwf.Error values.
	Apply(ctx context.Context, req ApplyRequest) (*entity.WorkflowDocument, error)

	// GetDocument returns the current workflow view of a document
	GetDocument(ctx context.Context, docType domainwf.DocumentType, docID string) (*entity.WorkflowDocument, error)

	// ListAudit returns a document's audit entries after the cursor, oldest first
	ListAudit(ctx context.Context, docType domainwf.DocumentType, docID string, afterSeq int64) ([]*entity.AuditEntry, error)

	// ListAuditByActor returns an actor's audit entries after the cursor, oldest first
	ListAuditByActor(ctx context.Context, actorID string, afterSeq int64, limit int) ([]*entity.AuditEntry, error)

	// PermittedTransitions returns the states the role may request from the document's current state
	PermittedTransitions(ctx context.Context, docType domainwf.DocumentType, docID string, role domainwf.Role) ([]domainwf.State, error)

	// Registry returns the transition tables the engine enforces
	Registry() *domainwf.Registry
}
