package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/approval-workflow/internal/application/port"
	appwf "github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
	"github.com/garyjia/approval-workflow/internal/infrastructure/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine       appwf.WorkflowEngine
	creator      port.DocumentCreator
	applyTimeout time.Duration
	logger       Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(engine appwf.WorkflowEngine, creator port.DocumentCreator, applyTimeout time.Duration, logger Logger) *Handlers {
	return &Handlers{
		engine:       engine,
		creator:      creator,
		applyTimeout: applyTimeout,
		logger:       logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	ReasonCode string      `json:"reason_code"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// DocumentTypeResponse summarizes one transition table
type DocumentTypeResponse struct {
	Name        string               `json:"name"`
	Initial     string               `json:"initial"`
	States      []string             `json:"states"`
	Terminal    []string             `json:"terminal"`
	Transitions []TransitionResponse `json:"transitions"`
}

// TransitionResponse describes one rule of a table
type TransitionResponse struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Roles []string `json:"roles"`
	Guard string   `json:"guard,omitempty"`
}

// DocumentResponse is a document with its table context
type DocumentResponse struct {
	*entity.WorkflowDocument
	Terminal bool `json:"terminal"`
}

// PermittedResponse lists the states a role may request next
type PermittedResponse struct {
	DocumentType string   `json:"document_type"`
	DocumentID   string   `json:"document_id"`
	CurrentState string   `json:"current_state"`
	Version      int64    `json:"version"`
	Role         string   `json:"role"`
	Targets      []string `json:"targets"`
}

// CreateDocumentRequest is the body of POST /api/documents
type CreateDocumentRequest struct {
	DocumentType string `json:"document_type" binding:"required"`
	DocumentID   string `json:"document_id" binding:"required"`
}

// ApplyTransitionRequest is the body of POST /api/documents/:type/:id/transitions
type ApplyTransitionRequest struct {
	ToState         string `json:"to_state" binding:"required"`
	ActorID         string `json:"actor_id" binding:"required"`
	ActorRole       string `json:"actor_role" binding:"required"`
	ExpectedVersion *int64 `json:"expected_version" binding:"required"`
	GuardResult     *bool  `json:"guard_result"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// ListDocumentTypes handles GET /api/document-types
func (h *Handlers) ListDocumentTypes(c *gin.Context) {
	registry := h.engine.Registry()

	types := make([]DocumentTypeResponse, 0)
	for _, dt := range registry.DocumentTypes() {
		table, _ := registry.Table(dt)
		def := domainwf.DefinitionOf(table)

		resp := DocumentTypeResponse{
			Name:        def.Name,
			Initial:     def.Initial,
			States:      def.States,
			Terminal:    def.Terminal,
			Transitions: make([]TransitionResponse, 0, len(def.Transitions)),
		}
		for _, t := range def.Transitions {
			resp.Transitions = append(resp.Transitions, TransitionResponse(t))
		}
		types = append(types, resp)
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: types})
}

// CreateDocument handles POST /api/documents
func (h *Handlers) CreateDocument(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.DocumentID) == "" {
		h.badRequest(c, "document_id must not be blank", nil)
		return
	}

	doc, err := appwf.CreateDocument(c.Request.Context(), h.engine.Registry(), h.creator,
		domainwf.DocumentType(req.DocumentType), req.DocumentID)
	if err != nil {
		switch {
		case errors.Is(err, domainwf.ErrDocumentExists):
			c.JSON(http.StatusConflict, Response{Error: err.Error(), ReasonCode: ReasonDocumentExists})
		case errors.Is(err, domainwf.ErrUnknownDocumentType):
			c.JSON(http.StatusNotFound, Response{Error: err.Error(), ReasonCode: domainwf.ReasonDocumentNotFound.String()})
		default:
			h.logger.Error("Failed to create document", "document_type", req.DocumentType, "document_id", req.DocumentID, "error", err)
			c.JSON(http.StatusServiceUnavailable, Response{Error: err.Error(), ReasonCode: domainwf.ReasonStorageError.String()})
		}
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: h.documentResponse(doc)})
}

// GetDocument handles GET /api/documents/:type/:id
func (h *Handlers) GetDocument(c *gin.Context) {
	doc, err := h.engine.GetDocument(c.Request.Context(), documentType(c), c.Param("id"))
	if err != nil {
		h.workflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.documentResponse(doc)})
}

// PermittedTransitions handles GET /api/documents/:type/:id/transitions?role=
func (h *Handlers) PermittedTransitions(c *gin.Context) {
	role := c.Query("role")
	if role == "" {
		h.badRequest(c, "role query parameter is required", nil)
		return
	}

	ctx := c.Request.Context()
	doc, err := h.engine.GetDocument(ctx, documentType(c), c.Param("id"))
	if err != nil {
		h.workflowError(c, err)
		return
	}

	targets, err := h.engine.PermittedTransitions(ctx, doc.DocumentType, doc.DocumentID, domainwf.Role(role))
	if err != nil {
		h.workflowError(c, err)
		return
	}

	names := make([]string, 0, len(targets))
	for _, s := range targets {
		names = append(names, s.String())
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: PermittedResponse{
		DocumentType: doc.DocumentType.String(),
		DocumentID:   doc.DocumentID,
		CurrentState: doc.CurrentState.String(),
		Version:      doc.Version,
		Role:         role,
		Targets:      names,
	}})
}

// ApplyTransition handles POST /api/documents/:type/:id/transitions
func (h *Handlers) ApplyTransition(c *gin.Context) {
	var req ApplyTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	ctx := c.Request.Context()
	if h.applyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.applyTimeout)
		defer cancel()
	}

	doc, err := h.engine.Apply(ctx, appwf.ApplyRequest{
		DocumentType:    documentType(c),
		DocumentID:      c.Param("id"),
		ToState:         domainwf.State(req.ToState),
		ActorID:         req.ActorID,
		ActorRole:       domainwf.Role(req.ActorRole),
		ExpectedVersion: *req.ExpectedVersion,
		GuardResult:     req.GuardResult,
	})
	if err != nil {
		h.workflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: h.documentResponse(doc)})
}

// ListAudit handles GET /api/documents/:type/:id/audit?after=
func (h *Handlers) ListAudit(c *gin.Context) {
	after, ok := h.cursor(c)
	if !ok {
		return
	}

	entries, err := h.engine.ListAudit(c.Request.Context(), documentType(c), c.Param("id"), after)
	if err != nil {
		h.workflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: nonNil(entries)})
}

// ListActorAudit handles GET /api/actors/:actor/audit?after=&limit=
func (h *Handlers) ListActorAudit(c *gin.Context) {
	after, ok := h.cursor(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.badRequest(c, "limit must be a non-negative integer", err)
			return
		}
		limit = n
	}

	entries, err := h.engine.ListAuditByActor(c.Request.Context(), c.Param("actor"), after, limit)
	if err != nil {
		h.workflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: nonNil(entries)})
}

// ExportAudit handles GET /api/documents/:type/:id/audit/export
func (h *Handlers) ExportAudit(c *gin.Context) {
	docType := documentType(c)
	docID := c.Param("id")

	entries, err := h.engine.ListAudit(c.Request.Context(), docType, docID, 0)
	if err != nil {
		h.workflowError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteAuditWorkbook(&buf, entries); err != nil {
		h.logger.Error("Failed to render audit workbook", "document_type", docType, "document_id", docID, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Error: "failed to render audit workbook"})
		return
	}

	filename := fmt.Sprintf("%s_%s_audit.xlsx", docType, docID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handlers) documentResponse(doc *entity.WorkflowDocument) DocumentResponse {
	return DocumentResponse{
		WorkflowDocument: doc,
		Terminal:         h.engine.Registry().IsTerminal(doc.DocumentType, doc.CurrentState),
	}
}

func (h *Handlers) cursor(c *gin.Context) (int64, bool) {
	raw := c.Query("after")
	if raw == "" {
		return 0, true
	}
	after, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || after < 0 {
		h.badRequest(c, "after must be a non-negative integer", err)
		return 0, false
	}
	return after, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	c.JSON(http.StatusBadRequest, Response{Error: msg, ReasonCode: ReasonInvalidRequest})
}

func (h *Handlers) workflowError(c *gin.Context, err error) {
	code := domainwf.ReasonOf(err)
	status := StatusForReason(code)
	if status >= http.StatusInternalServerError && code != domainwf.ReasonCancelled {
		h.logger.Error("Workflow request failed", "path", c.Request.URL.Path, "reason", code.String(), "error", err)
	}
	c.JSON(status, Response{Error: err.Error(), ReasonCode: code.String()})
}

func documentType(c *gin.Context) domainwf.DocumentType {
	return domainwf.DocumentType(c.Param("type"))
}

func nonNil(entries []*entity.AuditEntry) []*entity.AuditEntry {
	if entries == nil {
		return []*entity.AuditEntry{}
	}
	return entries
}
