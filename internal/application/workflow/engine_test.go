package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Mock implementations

type txKey struct{}

type pendingTx struct {
	docs    map[string]*entity.WorkflowDocument
	entries []*entity.AuditEntry
}

// memBackend is an in-memory document store, audit log and transaction manager.
// Transactions are serialized and buffer their writes until commit.
type memBackend struct {
	txMu sync.Mutex
	mu   sync.Mutex

	docs    map[string]*entity.WorkflowDocument
	entries []*entity.AuditEntry
	nextSeq int64

	loadErr     error
	appendErrFn func(e *entity.AuditEntry) error
	beforeWrite func()
}

func newMemBackend() *memBackend {
	return &memBackend{docs: make(map[string]*entity.WorkflowDocument)}
}

func docKey(docType domainwf.DocumentType, docID string) string {
	return string(docType) + "/" + docID
}

func (m *memBackend) seed(docType domainwf.DocumentType, docID string, state domainwf.State, version int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[docKey(docType, docID)] = &entity.WorkflowDocument{
		DocumentType: docType,
		DocumentID:   docID,
		CurrentState: state,
		Version:      version,
	}
}

func (m *memBackend) Create(ctx context.Context, docType domainwf.DocumentType, docID string, initial domainwf.State) (*entity.WorkflowDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := docKey(docType, docID)
	if _, exists := m.docs[key]; exists {
		return nil, fmt.Errorf("document %s already exists", key)
	}
	doc := &entity.WorkflowDocument{DocumentType: docType, DocumentID: docID, CurrentState: initial}
	m.docs[key] = doc
	return doc.Clone(), nil
}

func (m *memBackend) Load(ctx context.Context, docType domainwf.DocumentType, docID string) (*entity.WorkflowDocument, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[docKey(docType, docID)]
	if !ok {
		return nil, domainwf.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

func (m *memBackend) ConditionalWrite(ctx context.Context, docType domainwf.DocumentType, docID string, newState domainwf.State, expectedVersion int64) (int64, error) {
	if m.beforeWrite != nil {
		m.beforeWrite()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := docKey(docType, docID)
	tx, _ := ctx.Value(txKey{}).(*pendingTx)

	doc, ok := m.docs[key]
	if tx != nil {
		if pending, exists := tx.docs[key]; exists {
			doc, ok = pending, true
		}
	}
	if !ok {
		return 0, domainwf.ErrDocumentNotFound
	}
	if doc.Version != expectedVersion {
		return 0, domainwf.ErrVersionConflict
	}

	updated := doc.Clone()
	updated.CurrentState = newState
	updated.Version++
	if tx != nil {
		tx.docs[key] = updated
	} else {
		m.docs[key] = updated
	}
	return updated.Version, nil
}

func (m *memBackend) Append(ctx context.Context, e *entity.AuditEntry) error {
	if m.appendErrFn != nil {
		if err := m.appendErrFn(e); err != nil {
			return err
		}
	}
	if tx, ok := ctx.Value(txKey{}).(*pendingTx); ok {
		tx.entries = append(tx.entries, e)
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq++
	e.Seq = m.nextSeq
	m.entries = append(m.entries, e)
	return nil
}

func (m *memBackend) ListFor(ctx context.Context, docType domainwf.DocumentType, docID string, afterSeq int64) ([]*entity.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*entity.AuditEntry
	for _, e := range m.entries {
		if e.DocumentType == docType && e.DocumentID == docID && e.Seq > afterSeq {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *memBackend) ListByActor(ctx context.Context, actorID string, afterSeq int64, limit int) ([]*entity.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*entity.AuditEntry
	for _, e := range m.entries {
		if e.ActorID == actorID && e.Seq > afterSeq {
			result = append(result, e)
			if limit > 0 && len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

func (m *memBackend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &pendingTx{docs: make(map[string]*entity.WorkflowDocument)}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, d := range tx.docs {
		m.docs[k] = d
	}
	for _, e := range tx.entries {
		m.nextSeq++
		e.Seq = m.nextSeq
		m.entries = append(m.entries, e)
	}
	return nil
}

func (m *memBackend) allEntries() []*entity.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.AuditEntry(nil), m.entries...)
}

type mockHook struct {
	mu      sync.Mutex
	notices []port.TransitionNotice
}

func (h *mockHook) Notify(ctx context.Context, notice port.TransitionNotice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notices = append(h.notices, notice)
}

func (h *mockHook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.notices)
}

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, backend *memBackend, hook *mockHook) WorkflowEngine {
	t.Helper()
	registry, err := BuildDefaultRegistry()
	require.NoError(t, err)

	opts := []EngineOption{WithClock(func() time.Time { return fixedNow })}
	if hook != nil {
		opts = append(opts, WithNotificationHook(hook))
	}
	return NewEngine(registry, backend, backend, backend, opts...)
}

func requireReason(t *testing.T, err error, want domainwf.ReasonCode) {
	t.Helper()
	require.Error(t, err)
	var wfErr *domainwf.Error
	require.True(t, errors.As(err, &wfErr), "expected *workflow.Error, got %T: %v", err, err)
	assert.Equal(t, want, wfErr.Code)
	assert.Equal(t, want, domainwf.ReasonOf(err))
}

// Test factory

func TestBuildDefaultRegistry(t *testing.T) {
	registry, err := BuildDefaultRegistry()
	require.NoError(t, err)

	assert.Equal(t, []domainwf.DocumentType{
		domainwf.DocOrganizationInvoice,
		domainwf.DocPaymentRequest,
		domainwf.DocProfileChange,
		domainwf.DocVendorInvoice,
	}, registry.DocumentTypes())

	for _, dt := range registry.DocumentTypes() {
		initial, err := registry.InitialState(dt)
		require.NoError(t, err)
		assert.Equal(t, domainwf.StatePending, initial, "initial state of %s", dt)
	}

	// returned_to_hr stays distinct from rejected
	payment, _ := registry.Table(domainwf.DocPaymentRequest)
	assert.True(t, payment.HasState(domainwf.StateReturnedToHR))
	assert.False(t, payment.IsTerminal(domainwf.StateReturnedToHR))
	assert.True(t, payment.IsTerminal(domainwf.StateRejected))
}

func TestLoadRegistry(t *testing.T) {
	t.Run("empty path uses built-in tables", func(t *testing.T) {
		registry, err := LoadRegistry("")
		require.NoError(t, err)
		assert.Len(t, registry.DocumentTypes(), 4)
	})

	t.Run("definitions file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "workflows.yaml")
		content := `
document_types:
  - name: leave_request
    initial: pending
    states: [pending, approved, rejected]
    terminal: [approved, rejected]
    transitions:
      - {from: pending, to: approved, roles: [hr]}
      - {from: pending, to: rejected, roles: [hr]}
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		registry, err := LoadRegistry(path)
		require.NoError(t, err)
		assert.Equal(t, []domainwf.DocumentType{"leave_request"}, registry.DocumentTypes())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

// Test engine

func TestEngine_Apply_VendorSubmitsInvoice(t *testing.T) {
	backend := newMemBackend()
	backend.seed(domainwf.DocVendorInvoice, "inv-1", domainwf.StatePending, 0)
	hook := &mockHook{}
	engine := newTestEngine(t, backend, hook)

	doc, err := engine.Apply(context.Background(), ApplyRequest{
		DocumentType:    domainwf.DocVendorInvoice,
		DocumentID:      "inv-1",
		ToState:         domainwf.StateReadyForProcessing,
		ActorID:         "vendor-7",
		ActorRole:       domainwf.RoleVendor,
		ExpectedVersion: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateReadyForProcessing, doc.CurrentState)
	assert.Equal(t, int64(1), doc.Version)

	entries := backend.allEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, entity.OutcomeApplied, entries[0].Outcome)
	assert.Equal(t, domainwf.StatePending, entries[0].FromState)
	assert.Equal(t, domainwf.StateReadyForProcessing, entries[0].ToState)
	assert.Equal(t, "vendor-7", entries[0].ActorID)
	assert.Equal(t, fixedNow, entries[0].Timestamp)

	require.Equal(t, 1, hook.count())
	notice := hook.notices[0]
	assert.Equal(t, domainwf.StatePending, notice.FromState)
	assert.Equal(t, int64(1), notice.Version)
	assert.False(t, notice.Terminal)
	assert.ElementsMatch(t, []domainwf.Role{domainwf.RoleVendor, domainwf.RoleSystem, domainwf.RoleAdmin}, notice.NextRoles)
}

func TestEngine_Apply_StaleReplay(t *testing.T) {
	backend := newMemBackend()
	backend.seed(domainwf.DocVendorInvoice, "inv-1", domainwf.StatePending, 0)
	hook := &mockHook{}
	engine := newTestEngine(t, backend, hook)
	ctx := context.Background()

	req := ApplyRequest{
		DocumentType: domainwf.DocVendorInvoice,
		DocumentID:   "inv-1",
		ToState:      domainwf.StateReadyForProcessing,
		ActorID:      "vendor-7",
		ActorRole:    domainwf.RoleVendor,
	}
	_, err := engine.Apply(ctx, req)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := engine.Apply(ctx, req)
		requireReason(t, err, domainwf.ReasonVersionConflict)
		assert.True(t, errors.Is(err, domainwf.ErrVersionConflict))
	}

	doc, err := engine.GetDocument(ctx, domainwf.DocVendorInvoice, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateReadyForProcessing, doc.CurrentState)
	assert.Equal(t, int64(1), doc.Version)

	entries := backend.allEntries()
	require.Len(t, entries, 4)
	for _, e := range entries[1:] {
		assert.Equal(t, entity.OutcomeRejected, e.Outcome)
		assert.Equal(t, domainwf.ReasonVersionConflict, e.ReasonCode)
	}
	assert.Equal(t, 1, hook.count())
}

func TestEngine_Apply_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		docType    domainwf.DocumentType
		state      domainwf.State
		version    int64
		req        ApplyRequest
		wantReason domainwf.ReasonCode
	}{
		{
			name:    "vendor cannot approve payment request",
			docType: domainwf.DocPaymentRequest,
			state:   domainwf.StatePending,
			req: ApplyRequest{
				ToState:   domainwf.StateApproved,
				ActorID:   "vendor-7",
				ActorRole: domainwf.RoleVendor,
			},
			wantReason: domainwf.ReasonRoleNotAuthorized,
		},
		{
			name:    "approved profile change cannot be rejected",
			docType: domainwf.DocProfileChange,
			state:   domainwf.StateApproved,
			version: 1,
			req: ApplyRequest{
				ToState:         domainwf.StateRejected,
				ActorID:         "hr-1",
				ActorRole:       domainwf.RoleHR,
				ExpectedVersion: 1,
			},
			wantReason: domainwf.ReasonNoSuchTransition,
		},
		{
			name:    "admin rejection without comment",
			docType: domainwf.DocVendorInvoice,
			state:   domainwf.StateSentToAdmin,
			version: 2,
			req: ApplyRequest{
				ToState:         domainwf.StateRejected,
				ActorID:         "admin-1",
				ActorRole:       domainwf.RoleAdmin,
				ExpectedVersion: 2,
				GuardResult:     domainwf.Bool(false),
			},
			wantReason: domainwf.ReasonGuardNotSatisfied,
		},
		{
			name:    "admin rejection with guard absent",
			docType: domainwf.DocOrganizationInvoice,
			state:   domainwf.StatePending,
			req: ApplyRequest{
				ToState:   domainwf.StateRejected,
				ActorID:   "admin-1",
				ActorRole: domainwf.RoleAdmin,
			},
			wantReason: domainwf.ReasonGuardNotSatisfied,
		},
		{
			name:    "skipping a step",
			docType: domainwf.DocVendorInvoice,
			state:   domainwf.StatePending,
			req: ApplyRequest{
				ToState:   domainwf.StatePaid,
				ActorID:   "acct-1",
				ActorRole: domainwf.RoleAccounting,
			},
			wantReason: domainwf.ReasonNoSuchTransition,
		},
		{
			name:    "stale expected version",
			docType: domainwf.DocProfileChange,
			state:   domainwf.StatePending,
			version: 3,
			req: ApplyRequest{
				ToState:         domainwf.StateApproved,
				ActorID:         "hr-1",
				ActorRole:       domainwf.RoleHR,
				ExpectedVersion: 2,
			},
			wantReason: domainwf.ReasonVersionConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newMemBackend()
			backend.seed(tt.docType, "doc-1", tt.state, tt.version)
			hook := &mockHook{}
			engine := newTestEngine(t, backend, hook)

			req := tt.req
			req.DocumentType = tt.docType
			req.DocumentID = "doc-1"

			doc, err := engine.Apply(context.Background(), req)
			assert.Nil(t, doc)
			requireReason(t, err, tt.wantReason)

			current, err := engine.GetDocument(context.Background(), tt.docType, "doc-1")
			require.NoError(t, err)
			assert.Equal(t, tt.state, current.CurrentState)
			assert.Equal(t, tt.version, current.Version)

			entries := backend.allEntries()
			require.Len(t, entries, 1)
			assert.Equal(t, entity.OutcomeRejected, entries[0].Outcome)
			assert.Equal(t, tt.wantReason, entries[0].ReasonCode)
			assert.Equal(t, tt.state, entries[0].FromState)
			assert.Equal(t, tt.req.ToState, entries[0].ToState)
			assert.Equal(t, tt.req.ActorRole, entries[0].ActorRole)

			assert.Equal(t, 0, hook.count())
		})
	}
}

func TestEngine_Apply_DocumentNotFound(t *testing.T) {
	backend := newMemBackend()
	engine := newTestEngine(t, backend, nil)

	t.Run("missing document", func(t *testing.T) {
		_, err := engine.Apply(context.Background(), ApplyRequest{
			DocumentType: domainwf.DocVendorInvoice,
			DocumentID:   "missing",
			ToState:      domainwf.StateReadyForProcessing,
			ActorRole:    domainwf.RoleVendor,
		})
		requireReason(t, err, domainwf.ReasonDocumentNotFound)
		assert.True(t, errors.Is(err, domainwf.ErrDocumentNotFound))
	})

	t.Run("unknown document type", func(t *testing.T) {
		_, err := engine.Apply(context.Background(), ApplyRequest{
			DocumentType: "expense_claim",
			DocumentID:   "x",
			ToState:      domainwf.StateApproved,
			ActorRole:    domainwf.RoleHR,
		})
		requireReason(t, err, domainwf.ReasonDocumentNotFound)
		assert.True(t, errors.Is(err, domainwf.ErrUnknownDocumentType))
	})

	assert.Empty(t, backend.allEntries())
}

func TestEngine_Apply_LostRace(t *testing.T) {
	backend := newMemBackend()
	backend.seed(domainwf.DocProfileChange, "p-1", domainwf.StatePending, 0)
	hook := &mockHook{}
	engine := newTestEngine(t, backend, hook)

	// Another writer commits between the load and the conditional write
	var once sync.Once
	backend.beforeWrite = func() {
		once.Do(func() {
			backend.seed(domainwf.DocProfileChange, "p-1", domainwf.StateApproved, 1)
		})
	}

	_, err := engine.Apply(context.Background(), ApplyRequest{
		DocumentType: domainwf.DocProfileChange,
		DocumentID:   "p-1",
		ToState:      domainwf.StateRejected,
		ActorID:      "hr-2",
		ActorRole:    domainwf.RoleHR,
	})
	requireReason(t, err, domainwf.ReasonVersionConflict)

	entries := backend.allEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, entity.OutcomeRejected, entries[0].Outcome)
	assert.Equal(t, domainwf.ReasonVersionConflict, entries[0].ReasonCode)
	assert.Equal(t, 0, hook.count())
}

func TestEngine_Apply_AuditFailureRollsBack(t *testing.T) {
	backend := newMemBackend()
	backend.seed(domainwf.DocProfileChange, "p-1", domainwf.StatePending, 0)
	backend.appendErrFn = func(e *entity.AuditEntry) error {
		if e.IsApplied() {
			return errors.New("disk full")
		}
		return nil
	}
	hook := &mockHook{}
	engine := newTestEngine(t, backend, hook)

	_, err := engine.Apply(context.Background(), ApplyRequest{
		DocumentType: domainwf.DocProfileChange,
		DocumentID:   "p-1",
		ToState:      domainwf.StateApproved,
		ActorID:      "hr-1",
		ActorRole:    domainwf.RoleHR,
	})
	requireReason(t, err, domainwf.ReasonStorageError)
	assert.True(t, errors.Is(err, domainwf.ErrStorage))

	doc, err := engine.GetDocument(context.Background(), domainwf.DocProfileChange, "p-1")
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatePending, doc.CurrentState)
	assert.Equal(t, int64(0), doc.Version)
	assert.Empty(t, backend.allEntries())
	assert.Equal(t, 0, hook.count())
}

func TestEngine_Apply_RejectedAppendFailure(t *testing.T) {
	backend := newMemBackend()
	backend.seed(domainwf.DocPaymentRequest, "pr-1", domainwf.StatePending, 0)
	backend.appendErrFn = func(e *entity.AuditEntry) error {
		return errors.New("audit unavailable")
	}
	engine := newTestEngine(t, backend, nil)

	_, err := engine.Apply(context.Background(), ApplyRequest{
		DocumentType: domainwf.DocPaymentRequest,
		DocumentID:   "pr-1",
		ToState:      domainwf.StateApproved,
		ActorID:      "vendor-7",
		ActorRole:    domainwf.RoleVendor,
	})
	requireReason(t, err, domainwf.ReasonRoleNotAuthorized)
	assert.True(t, errors.Is(err, domainwf.ErrRoleNotAuthorized))
	assert.True(t, errors.Is(err, domainwf.ErrStorage))
}

func TestEngine_Apply_LoadFailure(t *testing.T) {
	backend := newMemBackend()
	backend.loadErr = errors.New("connection reset")
	engine := newTestEngine(t, backend, nil)

	_, err := engine.Apply(context.Background(), ApplyRequest{
		DocumentType: domainwf.DocProfileChange,
		DocumentID:   "p-1",
		ToState:      domainwf.StateApproved,
		ActorRole:    domainwf.RoleHR,
	})
	requireReason(t, err, domainwf.ReasonStorageError)
	assert.Empty(t, backend.allEntries())
}

func TestEngine_Apply_Cancelled(t *testing.T) {
	backend := newMemBackend()
	backend.seed(domainwf.DocProfileChange, "p-1", domainwf.StatePending, 0)
	engine := newTestEngine(t, backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Apply(ctx, ApplyRequest{
		DocumentType: domainwf.DocProfileChange,
		DocumentID:   "p-1",
		ToState:      domainwf.StateApproved,
		ActorRole:    domainwf.RoleHR,
	})
	requireReason(t, err, domainwf.ReasonCancelled)
	assert.True(t, errors.Is(err, context.Canceled))

	doc, err := engine.GetDocument(context.Background(), domainwf.DocProfileChange, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), doc.Version)
	assert.Empty(t, backend.allEntries())
}

func TestEngine_Apply_FullVendorInvoicePath(t *testing.T) {
	backend := newMemBackend()
	backend.seed(domainwf.DocVendorInvoice, "inv-9", domainwf.StatePending, 0)
	hook := &mockHook{}
	engine := newTestEngine(t, backend, hook)
	ctx := context.Background()

	steps := []struct {
		to   domainwf.State
		role domainwf.Role
	}{
		{domainwf.StateReadyForProcessing, domainwf.RoleVendor},
		{domainwf.StateSentToAdmin, domainwf.RoleSystem},
		{domainwf.StateSentToAccounting, domainwf.RoleAdmin},
		{domainwf.StateReadyForPayment, domainwf.RoleAccounting},
		{domainwf.StatePaid, domainwf.RoleAccounting},
	}

	for i, step := range steps {
		doc, err := engine.Apply(ctx, ApplyRequest{
			DocumentType:    domainwf.DocVendorInvoice,
			DocumentID:      "inv-9",
			ToState:         step.to,
			ActorID:         "actor-" + step.role.String(),
			ActorRole:       step.role,
			ExpectedVersion: int64(i),
		})
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, int64(i+1), doc.Version)
		assert.Equal(t, step.to, doc.CurrentState)
	}

	require.Equal(t, len(steps), hook.count())
	last := hook.notices[len(steps)-1]
	assert.True(t, last.Terminal)
	assert.Empty(t, last.NextRoles)

	// Terminal finality
	registry := engine.Registry()
	table, _ := registry.Table(domainwf.DocVendorInvoice)
	for _, target := range table.States() {
		for _, role := range []domainwf.Role{domainwf.RoleAdmin, domainwf.RoleAccounting, domainwf.RoleVendor} {
			_, err := engine.Apply(ctx, ApplyRequest{
				DocumentType:    domainwf.DocVendorInvoice,
				DocumentID:      "inv-9",
				ToState:         target,
				ActorID:         "late",
				ActorRole:       role,
				ExpectedVersion: int64(len(steps)),
				GuardResult:     domainwf.Bool(true),
			})
			requireReason(t, err, domainwf.ReasonNoSuchTransition)
		}
	}

	entries, err := engine.ListAudit(ctx, domainwf.DocVendorInvoice, "inv-9", 0)
	require.NoError(t, err)
	applied := 0
	for i, e := range entries {
		if i > 0 {
			assert.Greater(t, e.Seq, entries[i-1].Seq)
		}
		if e.IsApplied() {
			applied++
		}
	}
	assert.Equal(t, len(steps), applied)
	assert.Equal(t, len(steps)+len(table.States())*3, len(entries))

	// Restart from a cursor
	tail, err := engine.ListAudit(ctx, domainwf.DocVendorInvoice, "inv-9", entries[2].Seq)
	require.NoError(t, err)
	assert.Equal(t, entries[3:], tail)
}

func TestEngine_Apply_ConcurrentSameDocument(t *testing.T) {
	backend := newMemBackend()
	backend.seed(domainwf.DocProfileChange, "p-1", domainwf.StatePending, 0)
	hook := &mockHook{}
	engine := newTestEngine(t, backend, hook)

	const workers = 20
	var wg sync.WaitGroup
	results := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := domainwf.StateApproved
			if i%2 == 1 {
				target = domainwf.StateRejected
			}
			_, results[i] = engine.Apply(context.Background(), ApplyRequest{
				DocumentType: domainwf.DocProfileChange,
				DocumentID:   "p-1",
				ToState:      target,
				ActorID:      fmt.Sprintf("hr-%d", i),
				ActorRole:    domainwf.RoleHR,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, domainwf.ReasonVersionConflict, domainwf.ReasonOf(err))
	}
	assert.Equal(t, 1, succeeded)

	doc, err := engine.GetDocument(context.Background(), domainwf.DocProfileChange, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Version)

	entries := backend.allEntries()
	require.Len(t, entries, workers)
	applied := 0
	for _, e := range entries {
		if e.IsApplied() {
			applied++
			assert.Equal(t, doc.CurrentState, e.ToState)
		}
	}
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, hook.count())
}

func TestEngine_Apply_ConcurrentDistinctDocuments(t *testing.T) {
	backend := newMemBackend()
	const docs = 10
	for i := 0; i < docs; i++ {
		backend.seed(domainwf.DocProfileChange, fmt.Sprintf("p-%d", i), domainwf.StatePending, 0)
	}
	engine := newTestEngine(t, backend, nil)

	var wg sync.WaitGroup
	errs := make([]error, docs)
	for i := 0; i < docs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Apply(context.Background(), ApplyRequest{
				DocumentType: domainwf.DocProfileChange,
				DocumentID:   fmt.Sprintf("p-%d", i),
				ToState:      domainwf.StateApproved,
				ActorID:      "hr-1",
				ActorRole:    domainwf.RoleHR,
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "document p-%d", i)
	}
}

func TestEngine_PermittedTransitions(t *testing.T) {
	backend := newMemBackend()
	backend.seed(domainwf.DocPaymentRequest, "pr-1", domainwf.StateReturnedToHR, 1)
	engine := newTestEngine(t, backend, nil)
	ctx := context.Background()

	states, err := engine.PermittedTransitions(ctx, domainwf.DocPaymentRequest, "pr-1", domainwf.RoleHR)
	require.NoError(t, err)
	assert.Equal(t, []domainwf.State{domainwf.StateApproved, domainwf.StateRejected}, states)

	states, err = engine.PermittedTransitions(ctx, domainwf.DocPaymentRequest, "pr-1", domainwf.RoleApprover)
	require.NoError(t, err)
	assert.Empty(t, states)

	_, err = engine.PermittedTransitions(ctx, domainwf.DocPaymentRequest, "missing", domainwf.RoleHR)
	requireReason(t, err, domainwf.ReasonDocumentNotFound)
}

func TestEngine_ListAuditByActor(t *testing.T) {
	backend := newMemBackend()
	backend.seed(domainwf.DocProfileChange, "p-1", domainwf.StatePending, 0)
	backend.seed(domainwf.DocProfileChange, "p-2", domainwf.StatePending, 0)
	engine := newTestEngine(t, backend, nil)
	ctx := context.Background()

	for _, id := range []string{"p-1", "p-2"} {
		_, err := engine.Apply(ctx, ApplyRequest{
			DocumentType: domainwf.DocProfileChange,
			DocumentID:   id,
			ToState:      domainwf.StateApproved,
			ActorID:      "hr-1",
			ActorRole:    domainwf.RoleHR,
		})
		require.NoError(t, err)
	}

	entries, err := engine.ListAuditByActor(ctx, "hr-1", 0, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "p-1", entries[0].DocumentID)

	entries, err = engine.ListAuditByActor(ctx, "hr-1", entries[0].Seq, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "p-2", entries[0].DocumentID)
}

func TestCreateDocument(t *testing.T) {
	backend := newMemBackend()
	registry, err := BuildDefaultRegistry()
	require.NoError(t, err)
	ctx := context.Background()

	doc, err := CreateDocument(ctx, registry, backend, domainwf.DocVendorInvoice, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatePending, doc.CurrentState)
	assert.Equal(t, int64(0), doc.Version)

	_, err = CreateDocument(ctx, registry, backend, "unknown", "x")
	assert.True(t, errors.Is(err, domainwf.ErrUnknownDocumentType))

	_, err = CreateDocument(ctx, registry, backend, domainwf.DocVendorInvoice, " ")
	assert.Error(t, err)

	assert.Empty(t, backend.allEntries())
}
