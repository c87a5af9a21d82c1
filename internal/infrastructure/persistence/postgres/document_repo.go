package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

const uniqueViolation = "23505"

// DocumentRepository implements port.DocumentRepository on PostgreSQL
type DocumentRepository struct {
	db     *DB
	logger *zap.Logger
}

var _ port.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *DB, logger *zap.Logger) *DocumentRepository {
	return &DocumentRepository{db: db, logger: logger}
}

// Create inserts a document at its initial state with version 0
func (r *DocumentRepository) Create(ctx context.Context, docType workflow.DocumentType, docID string, initial workflow.State) (*entity.WorkflowDocument, error) {
	doc := entity.WorkflowDocument{
		DocumentType: docType,
		DocumentID:   docID,
		CurrentState: initial,
	}

	err := r.db.conn(ctx).QueryRow(ctx, `
		INSERT INTO workflow_documents (document_type, document_id, current_state, version)
		VALUES ($1, $2, $3, 0)
		RETURNING created_at, updated_at
	`, string(docType), docID, string(initial)).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s/%s", workflow.ErrDocumentExists, docType, docID)
		}
		r.logger.Error("Failed to create document",
			zap.String("document_type", docType.String()),
			zap.String("document_id", docID),
			zap.Error(err))
		return nil, fmt.Errorf("postgres: create document: %w", err)
	}

	return &doc, nil
}

// Load returns the current document
func (r *DocumentRepository) Load(ctx context.Context, docType workflow.DocumentType, docID string) (*entity.WorkflowDocument, error) {
	var doc entity.WorkflowDocument
	var state string
	err := r.db.conn(ctx).QueryRow(ctx, `
		SELECT document_id, current_state, version, created_at, updated_at
		FROM workflow_documents
		WHERE document_type = $1 AND document_id = $2
	`, string(docType), docID).Scan(&doc.DocumentID, &state, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", workflow.ErrDocumentNotFound, docType, docID)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load document: %w", err)
	}

	doc.DocumentType = docType
	doc.CurrentState = workflow.State(state)
	return &doc, nil
}

// ConditionalWrite updates the state only when the stored version matches expectedVersion
func (r *DocumentRepository) ConditionalWrite(ctx context.Context, docType workflow.DocumentType, docID string, newState workflow.State, expectedVersion int64) (int64, error) {
	q := r.db.conn(ctx)

	var version int64
	err := q.QueryRow(ctx, `
		UPDATE workflow_documents
		SET current_state = $1, version = version + 1, updated_at = now()
		WHERE document_type = $2 AND document_id = $3 AND version = $4
		RETURNING version
	`, string(newState), string(docType), docID, expectedVersion).Scan(&version)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("postgres: write document state: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM workflow_documents WHERE document_type = $1 AND document_id = $2)",
		string(docType), docID,
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("postgres: check document existence: %w", err)
	}
	if !exists {
		return 0, fmt.Errorf("%w: %s/%s", workflow.ErrDocumentNotFound, docType, docID)
	}

	return 0, fmt.Errorf("%w: %s/%s expected version %d", workflow.ErrVersionConflict, docType, docID, expectedVersion)
}
