package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/application/workflow"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and close in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure
	stores    *StoreBundle
	messenger port.LarkMessageSender

	// Application
	registry   *domainwf.Registry
	dispatcher dispatcher.Dispatcher
	workflow   workflow.WorkflowEngine

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components:
// 1. Transition tables
// 2. Database and stores
// 3. External clients (Lark)
// 4. Event dispatcher and subscribers
// 5. Workflow engine
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	registry, err := ProvideRegistry(&c.config.Workflow, c.logger)
	if err != nil {
		return err
	}
	c.registry = registry

	stores, err := ProvideStores(ctx, &c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.stores = stores
	c.logger.Info("Database initialized", zap.String("driver", c.config.Database.Driver))

	c.messenger = ProvideLarkMessenger(&c.config.Notification, c.logger)
	if c.messenger != nil {
		c.logger.Info("Lark notifications enabled")
	}

	disp, err := ProvideDispatcher(&c.config.Workflow, c.logger)
	if err != nil {
		c.closeStores()
		return err
	}
	c.dispatcher = disp
	RegisterSubscribers(c.dispatcher, &c.config.Notification, c.messenger, c.logger)

	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Registry:   c.registry,
		Stores:     c.stores,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		_ = c.dispatcher.Close()
		c.closeStores()
		return fmt.Errorf("failed to initialize workflow engine: %w", err)
	}
	c.workflow = engine

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Drain in-flight notifications before the database goes away
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if err := c.closeStores(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return errors.Join(errs...)
	}

	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) closeStores() error {
	if c.stores == nil || c.stores.Close == nil {
		return nil
	}
	if err := c.stores.Close(); err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
		return err
	}
	c.logger.Info("Database closed")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if c.stores != nil && c.stores.Ping != nil {
		if err := c.stores.Ping(ctx); err != nil {
			status.Components["database"] = ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.dispatcher != nil {
		status.Components["dispatcher"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["dispatcher"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.registry != nil {
		status.Components["tables"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("document types: %d", len(c.registry.DocumentTypes())),
		}
	} else {
		status.Components["tables"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	return status
}

// Getters for accessing container components

// Registry returns the transition tables.
func (c *Container) Registry() *domainwf.Registry {
	return c.registry
}

// Documents returns the document repository.
func (c *Container) Documents() port.DocumentRepository {
	if c.stores == nil {
		return nil
	}
	return c.stores.Documents
}

// AuditLog returns the audit log.
func (c *Container) AuditLog() port.AuditLog {
	if c.stores == nil {
		return nil
	}
	return c.stores.Audit
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.WorkflowEngine {
	return c.workflow
}

// LarkMessenger returns the Lark message sender, nil when notifications are disabled.
func (c *Container) LarkMessenger() port.LarkMessageSender {
	return c.messenger
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// HTTPLogger returns a key-value logger backed by the container's zap logger.
func (c *Container) HTTPLogger() *ZapLoggerAdapter {
	return &ZapLoggerAdapter{logger: c.logger}
}

// ZapLoggerAdapter adapts zap.Logger to the minimal key-value Logger interfaces.
type ZapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *ZapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *ZapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// dispatcherLoggerAdapter adapts zap.Logger to the dispatcher.Logger interface.
type dispatcherLoggerAdapter struct {
	logger *zap.Logger
}

func (a *dispatcherLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *dispatcherLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
