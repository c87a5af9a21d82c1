package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	registry  *domainwf.Registry
	store     port.DocumentStore
	audit     port.AuditLog
	txManager port.TransactionManager
	hook      port.NotificationHook
	logger    *zap.Logger
	now       func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithNotificationHook sets the hook that receives committed transitions
func WithNotificationHook(h port.NotificationHook) EngineOption {
	return func(e *engineImpl) {
		e.hook = h
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *engineImpl) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source used for audit timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	registry *domainwf.Registry,
	store port.DocumentStore,
	audit port.AuditLog,
	txManager port.TransactionManager,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		registry:  registry,
		store:     store,
		audit:     audit,
		txManager: txManager,
		logger:    zap.NewNop(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Registry returns the transition tables the engine enforces
func (e *engineImpl) Registry() *domainwf.Registry {
	return e.registry
}

// Apply validates and applies a transition
func (e *engineImpl) Apply(ctx context.Context, req ApplyRequest) (*entity.WorkflowDocument, error) {
	table, ok := e.registry.Table(req.DocumentType)
	if !ok {
		e.logger.Warn("Apply for unknown document type",
			zap.String("document_type", req.DocumentType.String()),
			zap.String("document_id", req.DocumentID),
			zap.String("actor_id", req.ActorID))
		return nil, e.newError(domainwf.ReasonDocumentNotFound, req, "", domainwf.ErrUnknownDocumentType)
	}

	if err := ctx.Err(); err != nil {
		return nil, e.newError(domainwf.ReasonCancelled, req, "", err)
	}

	doc, err := e.store.Load(ctx, req.DocumentType, req.DocumentID)
	if err != nil {
		return nil, e.loadError(ctx, req, err)
	}

	// Stale versions are refused before the table is consulted
	if doc.Version != req.ExpectedVersion {
		return nil, e.reject(ctx, req, doc.CurrentState, domainwf.ReasonVersionConflict,
			fmt.Errorf("expected version %d, current version %d", req.ExpectedVersion, doc.Version))
	}

	decision := domainwf.Evaluate(table, domainwf.GuardRequest{
		From:        doc.CurrentState,
		To:          req.ToState,
		Role:        req.ActorRole,
		GuardResult: req.GuardResult,
	})
	if !decision.Allowed {
		return nil, e.reject(ctx, req, doc.CurrentState, decision.Reason, nil)
	}

	if err := ctx.Err(); err != nil {
		return nil, e.newError(domainwf.ReasonCancelled, req, doc.CurrentState, err)
	}

	// Once the conditional write is issued it runs to completion
	writeCtx := context.WithoutCancel(ctx)
	now := e.now()

	var newVersion int64
	err = e.txManager.WithTransaction(writeCtx, func(txCtx context.Context) error {
		v, err := e.store.ConditionalWrite(txCtx, req.DocumentType, req.DocumentID, req.ToState, req.ExpectedVersion)
		if err != nil {
			return err
		}

		entry := entity.NewAppliedEntry(req.DocumentType, req.DocumentID, req.ActorID, req.ActorRole,
			doc.CurrentState, req.ToState, now)
		if err := e.audit.Append(txCtx, entry); err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}

		newVersion = v
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domainwf.ErrVersionConflict):
			return nil, e.reject(writeCtx, req, doc.CurrentState, domainwf.ReasonVersionConflict, err)
		case errors.Is(err, domainwf.ErrDocumentNotFound):
			e.logger.Warn("Document disappeared during apply",
				zap.String("document_type", req.DocumentType.String()),
				zap.String("document_id", req.DocumentID))
			return nil, e.newError(domainwf.ReasonDocumentNotFound, req, doc.CurrentState, err)
		default:
			e.logger.Error("Failed to commit transition",
				zap.String("document_type", req.DocumentType.String()),
				zap.String("document_id", req.DocumentID),
				zap.String("from_state", doc.CurrentState.String()),
				zap.String("to_state", req.ToState.String()),
				zap.Error(err))
			return nil, e.newError(domainwf.ReasonStorageError, req, doc.CurrentState, err)
		}
	}

	updated := doc.Clone()
	updated.CurrentState = req.ToState
	updated.Version = newVersion
	updated.UpdatedAt = now

	e.logger.Info("Transition applied",
		zap.String("document_type", req.DocumentType.String()),
		zap.String("document_id", req.DocumentID),
		zap.String("from_state", doc.CurrentState.String()),
		zap.String("to_state", req.ToState.String()),
		zap.String("actor_id", req.ActorID),
		zap.Int64("version", newVersion))

	if e.hook != nil {
		e.hook.Notify(writeCtx, port.TransitionNotice{
			DocumentType: req.DocumentType,
			DocumentID:   req.DocumentID,
			FromState:    doc.CurrentState,
			ToState:      req.ToState,
			ActorID:      req.ActorID,
			ActorRole:    req.ActorRole,
			Version:      newVersion,
			Terminal:     table.IsTerminal(req.ToState),
			NextRoles:    table.NextRoles(req.ToState),
			OccurredAt:   now,
		})
	}

	return updated, nil
}

// GetDocument returns the current workflow view of a document
func (e *engineImpl) GetDocument(ctx context.Context, docType domainwf.DocumentType, docID string) (*entity.WorkflowDocument, error) {
	req := ApplyRequest{DocumentType: docType, DocumentID: docID}
	if _, ok := e.registry.Table(docType); !ok {
		return nil, e.newError(domainwf.ReasonDocumentNotFound, req, "", domainwf.ErrUnknownDocumentType)
	}

	doc, err := e.store.Load(ctx, docType, docID)
	if err != nil {
		return nil, e.loadError(ctx, req, err)
	}
	return doc, nil
}

// ListAudit returns a document's audit entries after the cursor, oldest first
func (e *engineImpl) ListAudit(ctx context.Context, docType domainwf.DocumentType, docID string, afterSeq int64) ([]*entity.AuditEntry, error) {
	req := ApplyRequest{DocumentType: docType, DocumentID: docID}
	if _, ok := e.registry.Table(docType); !ok {
		return nil, e.newError(domainwf.ReasonDocumentNotFound, req, "", domainwf.ErrUnknownDocumentType)
	}

	entries, err := e.audit.ListFor(ctx, docType, docID, afterSeq)
	if err != nil {
		return nil, e.newError(domainwf.ReasonStorageError, req, "", err)
	}
	return entries, nil
}

// ListAuditByActor returns an actor's audit entries after the cursor, oldest first
func (e *engineImpl) ListAuditByActor(ctx context.Context, actorID string, afterSeq int64, limit int) ([]*entity.AuditEntry, error) {
	entries, err := e.audit.ListByActor(ctx, actorID, afterSeq, limit)
	if err != nil {
		return nil, &domainwf.Error{Code: domainwf.ReasonStorageError, Err: err}
	}
	return entries, nil
}

// PermittedTransitions returns the states the role may request from the document's current state
func (e *engineImpl) PermittedTransitions(ctx context.Context, docType domainwf.DocumentType, docID string, role domainwf.Role) ([]domainwf.State, error) {
	doc, err := e.GetDocument(ctx, docType, docID)
	if err != nil {
		return nil, err
	}

	table, _ := e.registry.Table(docType)
	return table.PermittedTargets(doc.CurrentState, role), nil
}

// reject records a refused attempt and returns the typed error for it
func (e *engineImpl) reject(ctx context.Context, req ApplyRequest, from domainwf.State, reason domainwf.ReasonCode, cause error) error {
	fields := []zap.Field{
		zap.String("document_type", req.DocumentType.String()),
		zap.String("document_id", req.DocumentID),
		zap.String("from_state", from.String()),
		zap.String("to_state", req.ToState.String()),
		zap.String("actor_id", req.ActorID),
		zap.String("actor_role", req.ActorRole.String()),
		zap.String("reason", reason.String()),
	}
	if reason == domainwf.ReasonAmbiguousTransition {
		e.logger.Error("Ambiguous transition rules matched", fields...)
	} else {
		e.logger.Info("Transition rejected", fields...)
	}

	entry := entity.NewRejectedEntry(req.DocumentType, req.DocumentID, req.ActorID, req.ActorRole,
		from, req.ToState, reason, e.now())

	// The rejection is recorded even if the caller has given up
	if err := e.audit.Append(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Error("Failed to append rejected audit entry", append(fields, zap.Error(err))...)
		appendErr := fmt.Errorf("%w: failed to append rejected audit entry: %w", domainwf.ErrStorage, err)
		if cause != nil {
			cause = errors.Join(cause, appendErr)
		} else {
			cause = appendErr
		}
	}

	return e.newError(reason, req, from, cause)
}

func (e *engineImpl) loadError(ctx context.Context, req ApplyRequest, err error) error {
	if errors.Is(err, domainwf.ErrDocumentNotFound) {
		e.logger.Warn("Document not found",
			zap.String("document_type", req.DocumentType.String()),
			zap.String("document_id", req.DocumentID),
			zap.String("actor_id", req.ActorID))
		return e.newError(domainwf.ReasonDocumentNotFound, req, "", err)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return e.newError(domainwf.ReasonCancelled, req, "", ctxErr)
	}

	e.logger.Error("Failed to load document",
		zap.String("document_type", req.DocumentType.String()),
		zap.String("document_id", req.DocumentID),
		zap.Error(err))
	return e.newError(domainwf.ReasonStorageError, req, "", err)
}

func (e *engineImpl) newError(code domainwf.ReasonCode, req ApplyRequest, from domainwf.State, err error) *domainwf.Error {
	wfErr := domainwf.NewError(code, req.DocumentType, req.DocumentID, err)
	wfErr.FromState = from
	wfErr.ToState = req.ToState
	return wfErr
}
