package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// DocumentRepository implements port.DocumentRepository on the workflow_documents table
type DocumentRepository struct {
	db     *DB
	logger *zap.Logger
}

var _ port.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *DB, logger *zap.Logger) *DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a document at its initial state with version 0
func (r *DocumentRepository) Create(ctx context.Context, docType workflow.DocumentType, docID string, initial workflow.State) (*entity.WorkflowDocument, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO workflow_documents (
			document_type, document_id, current_state, version, created_at, updated_at
		) VALUES (?, ?, ?, 0, ?, ?)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query, string(docType), docID, string(initial), now, now)
	if err != nil {
		if isConstraint(err) {
			return nil, fmt.Errorf("%w: %s/%s", workflow.ErrDocumentExists, docType, docID)
		}
		r.logger.Error("Failed to create document",
			zap.String("document_type", docType.String()),
			zap.String("document_id", docID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	return &entity.WorkflowDocument{
		DocumentType: docType,
		DocumentID:   docID,
		CurrentState: initial,
		Version:      0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Load returns the current document
func (r *DocumentRepository) Load(ctx context.Context, docType workflow.DocumentType, docID string) (*entity.WorkflowDocument, error) {
	query := `
		SELECT document_type, document_id, current_state, version, created_at, updated_at
		FROM workflow_documents
		WHERE document_type = ? AND document_id = ?
	`

	var doc entity.WorkflowDocument
	var dt, state string
	err := r.db.conn(ctx).QueryRowContext(ctx, query, string(docType), docID).Scan(
		&dt,
		&doc.DocumentID,
		&state,
		&doc.Version,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", workflow.ErrDocumentNotFound, docType, docID)
	}
	if err != nil {
		r.logger.Error("Failed to load document",
			zap.String("document_type", docType.String()),
			zap.String("document_id", docID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	doc.DocumentType = workflow.DocumentType(dt)
	doc.CurrentState = workflow.State(state)
	return &doc, nil
}

// ConditionalWrite updates the state only when the stored version matches expectedVersion
func (r *DocumentRepository) ConditionalWrite(ctx context.Context, docType workflow.DocumentType, docID string, newState workflow.State, expectedVersion int64) (int64, error) {
	query := `
		UPDATE workflow_documents
		SET current_state = ?, version = version + 1, updated_at = ?
		WHERE document_type = ? AND document_id = ? AND version = ?
	`

	exec := r.db.conn(ctx)
	result, err := exec.ExecContext(ctx, query, string(newState), time.Now().UTC(), string(docType), docID, expectedVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to write document state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 1 {
		return expectedVersion + 1, nil
	}

	// Nothing matched: either the document is gone or its version moved
	var exists int
	err = exec.QueryRowContext(ctx,
		"SELECT 1 FROM workflow_documents WHERE document_type = ? AND document_id = ?",
		string(docType), docID,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s/%s", workflow.ErrDocumentNotFound, docType, docID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to check document existence: %w", err)
	}

	return 0, fmt.Errorf("%w: %s/%s expected version %d", workflow.ErrVersionConflict, docType, docID, expectedVersion)
}
