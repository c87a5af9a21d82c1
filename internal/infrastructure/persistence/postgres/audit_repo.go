package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

const defaultListLimit = 100

// AuditRepository implements port.AuditLog on PostgreSQL
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

var _ port.AuditLog = (*AuditRepository)(nil)

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Append stores the entry and assigns its Seq
func (r *AuditRepository) Append(ctx context.Context, e *entity.AuditEntry) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("postgres: invalid audit entry id %q: %w", e.ID, err)
	}

	err = r.db.conn(ctx).QueryRow(ctx, `
		INSERT INTO workflow_audit_entries (
			entry_id, document_type, document_id, actor_id, actor_role,
			from_state, to_state, outcome, reason_code, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq
	`,
		id,
		string(e.DocumentType),
		e.DocumentID,
		e.ActorID,
		string(e.ActorRole),
		string(e.FromState),
		string(e.ToState),
		string(e.Outcome),
		string(e.ReasonCode),
		e.Timestamp.UTC(),
	).Scan(&e.Seq)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("document_type", e.DocumentType.String()),
			zap.String("document_id", e.DocumentID),
			zap.Error(err))
		return fmt.Errorf("postgres: append audit entry: %w", err)
	}
	return nil
}

// ListFor returns a document's entries after the cursor, oldest first
func (r *AuditRepository) ListFor(ctx context.Context, docType workflow.DocumentType, docID string, afterSeq int64) ([]*entity.AuditEntry, error) {
	rows, err := r.db.conn(ctx).Query(ctx, `
		SELECT seq, entry_id, document_type, document_id, actor_id, actor_role,
			from_state, to_state, outcome, reason_code, created_at
		FROM workflow_audit_entries
		WHERE document_type = $1 AND document_id = $2 AND seq > $3
		ORDER BY seq ASC
	`, string(docType), docID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	return collectAuditEntries(rows)
}

// ListByActor returns an actor's entries after the cursor, oldest first
func (r *AuditRepository) ListByActor(ctx context.Context, actorID string, afterSeq int64, limit int) ([]*entity.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.db.conn(ctx).Query(ctx, `
		SELECT seq, entry_id, document_type, document_id, actor_id, actor_role,
			from_state, to_state, outcome, reason_code, created_at
		FROM workflow_audit_entries
		WHERE actor_id = $1 AND seq > $2
		ORDER BY seq ASC
		LIMIT $3
	`, actorID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries by actor: %w", err)
	}
	return collectAuditEntries(rows)
}

func collectAuditEntries(rows pgx.Rows) ([]*entity.AuditEntry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.AuditEntry, error) {
		var e entity.AuditEntry
		var id uuid.UUID
		var docType, role, from, to, outcome, reason string
		if err := row.Scan(&e.Seq, &id, &docType, &e.DocumentID, &e.ActorID, &role,
			&from, &to, &outcome, &reason, &e.Timestamp); err != nil {
			return nil, err
		}
		e.ID = id.String()
		e.DocumentType = workflow.DocumentType(docType)
		e.ActorRole = workflow.Role(role)
		e.FromState = workflow.State(from)
		e.ToState = workflow.State(to)
		e.Outcome = entity.Outcome(outcome)
		e.ReasonCode = workflow.ReasonCode(reason)
		e.Timestamp = e.Timestamp.UTC()
		return &e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan audit entries: %w", err)
	}
	return entries, nil
}
