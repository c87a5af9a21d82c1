package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Outcome records whether an apply attempt changed state
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeRejected Outcome = "rejected"
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	return string(o)
}

// AuditEntry is one immutable record of an apply attempt.
// Seq is assigned by the audit log on append and orders entries oldest first.
type AuditEntry struct {
	Seq          int64                 `json:"seq"`
	ID           string                `json:"id"`
	DocumentType workflow.DocumentType `json:"document_type"`
	DocumentID   string                `json:"document_id"`
	ActorID      string                `json:"actor_id"`
	ActorRole    workflow.Role         `json:"actor_role"`
	FromState    workflow.State        `json:"from_state"`
	ToState      workflow.State        `json:"to_state"`
	Outcome      Outcome               `json:"outcome"`
	ReasonCode   workflow.ReasonCode   `json:"reason_code,omitempty"`
	Timestamp    time.Time             `json:"timestamp"`
}

// NewAppliedEntry creates an audit entry for a committed transition
func NewAppliedEntry(docType workflow.DocumentType, docID, actorID string, role workflow.Role, from, to workflow.State, at time.Time) *AuditEntry {
	return &AuditEntry{
		ID:           uuid.NewString(),
		DocumentType: docType,
		DocumentID:   docID,
		ActorID:      actorID,
		ActorRole:    role,
		FromState:    from,
		ToState:      to,
		Outcome:      OutcomeApplied,
		ReasonCode:   workflow.ReasonNone,
		Timestamp:    at.UTC(),
	}
}

// NewRejectedEntry creates an audit entry for a refused attempt
func NewRejectedEntry(docType workflow.DocumentType, docID, actorID string, role workflow.Role, from, to workflow.State, reason workflow.ReasonCode, at time.Time) *AuditEntry {
	return &AuditEntry{
		ID:           uuid.NewString(),
		DocumentType: docType,
		DocumentID:   docID,
		ActorID:      actorID,
		ActorRole:    role,
		FromState:    from,
		ToState:      to,
		Outcome:      OutcomeRejected,
		ReasonCode:   reason,
		Timestamp:    at.UTC(),
	}
}

// IsApplied returns true if the entry records a state change
func (e *AuditEntry) IsApplied() bool {
	return e.Outcome == OutcomeApplied
}
