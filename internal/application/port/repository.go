package port

import (
	"context"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// DocumentStore reads and conditionally writes the workflow state of documents
type DocumentStore interface {
	// Load returns the current document or workflow.ErrDocumentNotFound
	Load(ctx context.Context, docType workflow.DocumentType, docID string) (*entity.WorkflowDocument, error)

	// ConditionalWrite sets the new state only if the stored version equals expectedVersion.
	// It returns the new version, or workflow.ErrVersionConflict when the version moved.
	ConditionalWrite(ctx context.Context, docType workflow.DocumentType, docID string, newState workflow.State, expectedVersion int64) (int64, error)
}

// DocumentCreator inserts documents at their initial state with version 0
type DocumentCreator interface {
	Create(ctx context.Context, docType workflow.DocumentType, docID string, initial workflow.State) (*entity.WorkflowDocument, error)
}

// DocumentRepository is a document store that can also create documents
type DocumentRepository interface {
	DocumentStore
	DocumentCreator
}

// AuditLog is the append-only record of apply attempts
type AuditLog interface {
	// Append stores the entry and assigns its Seq
	Append(ctx context.Context, entry *entity.AuditEntry) error

	// ListFor returns a document's entries with Seq greater than afterSeq, oldest first
	ListFor(ctx context.Context, docType workflow.DocumentType, docID string, afterSeq int64) ([]*entity.AuditEntry, error)

	// ListByActor returns at most limit entries recorded for an actor with Seq greater than afterSeq, oldest first
	ListByActor(ctx context.Context, actorID string, afterSeq int64, limit int) ([]*entity.AuditEntry, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
