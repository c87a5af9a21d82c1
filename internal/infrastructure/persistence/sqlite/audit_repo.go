package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// DefaultListLimit caps actor listings when the caller passes no limit
const DefaultListLimit = 100

// AuditRepository implements port.AuditLog on the workflow_audit_entries table
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

var _ port.AuditLog = (*AuditRepository)(nil)

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores the entry and assigns its Seq
func (r *AuditRepository) Append(ctx context.Context, e *entity.AuditEntry) error {
	query := `
		INSERT INTO workflow_audit_entries (
			entry_id, document_type, document_id, actor_id, actor_role,
			from_state, to_state, outcome, reason_code, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.conn(ctx).ExecContext(ctx, query,
		e.ID,
		string(e.DocumentType),
		e.DocumentID,
		e.ActorID,
		string(e.ActorRole),
		string(e.FromState),
		string(e.ToState),
		string(e.Outcome),
		string(e.ReasonCode),
		e.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("document_type", e.DocumentType.String()),
			zap.String("document_id", e.DocumentID),
			zap.String("outcome", e.Outcome.String()),
			zap.Error(err))
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	e.Seq = seq
	return nil
}

// ListFor returns a document's entries after the cursor, oldest first
func (r *AuditRepository) ListFor(ctx context.Context, docType workflow.DocumentType, docID string, afterSeq int64) ([]*entity.AuditEntry, error) {
	query := `
		SELECT seq, entry_id, document_type, document_id, actor_id, actor_role,
			from_state, to_state, outcome, reason_code, created_at
		FROM workflow_audit_entries
		WHERE document_type = ? AND document_id = ? AND seq > ?
		ORDER BY seq ASC
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, string(docType), docID, afterSeq)
	if err != nil {
		r.logger.Error("Failed to list audit entries",
			zap.String("document_type", docType.String()),
			zap.String("document_id", docID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows)
}

// ListByActor returns an actor's entries after the cursor, oldest first
func (r *AuditRepository) ListByActor(ctx context.Context, actorID string, afterSeq int64, limit int) ([]*entity.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT seq, entry_id, document_type, document_id, actor_id, actor_role,
			from_state, to_state, outcome, reason_code, created_at
		FROM workflow_audit_entries
		WHERE actor_id = ? AND seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, actorID, afterSeq, limit)
	if err != nil {
		r.logger.Error("Failed to list audit entries by actor", zap.String("actor_id", actorID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows)
}

func scanAuditEntries(rows *sql.Rows) ([]*entity.AuditEntry, error) {
	var entries []*entity.AuditEntry
	for rows.Next() {
		var e entity.AuditEntry
		var docType, role, from, to, outcome, reason string
		if err := rows.Scan(
			&e.Seq,
			&e.ID,
			&docType,
			&e.DocumentID,
			&e.ActorID,
			&role,
			&from,
			&to,
			&outcome,
			&reason,
			&e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		e.DocumentType = workflow.DocumentType(docType)
		e.ActorRole = workflow.Role(role)
		e.FromState = workflow.State(from)
		e.ToState = workflow.State(to)
		e.Outcome = entity.Outcome(outcome)
		e.ReasonCode = workflow.ReasonCode(reason)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}

	return entries, nil
}
