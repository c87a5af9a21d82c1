package entity

import (
	"time"

	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// WorkflowDocument is the workflow view of a business document.
// Version is owned by the document store and increases by one per applied transition.
type WorkflowDocument struct {
	DocumentType workflow.DocumentType `json:"document_type"`
	DocumentID   string                `json:"document_id"`
	CurrentState workflow.State        `json:"current_state"`
	Version      int64                 `json:"version"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// Key returns the composite identifier of the document
func (d *WorkflowDocument) Key() string {
	return string(d.DocumentType) + "/" + d.DocumentID
}

// Clone returns a copy of the document
func (d *WorkflowDocument) Clone() *WorkflowDocument {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
