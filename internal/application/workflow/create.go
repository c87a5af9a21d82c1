package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// CreateDocument registers a new document at its type's initial state with version 0.
// Creation is not a transition and writes no audit entry.
func CreateDocument(ctx context.Context, registry *domainwf.Registry, creator port.DocumentCreator, docType domainwf.DocumentType, docID string) (*entity.WorkflowDocument, error) {
	if strings.TrimSpace(docID) == "" {
		return nil, fmt.Errorf("document id is required")
	}

	initial, err := registry.InitialState(docType)
	if err != nil {
		return nil, err
	}

	doc, err := creator.Create(ctx, docType, docID, initial)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return doc, nil
}
