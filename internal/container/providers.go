package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/application/workflow"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
	infraLark "github.com/garyjia/approval-workflow/internal/infrastructure/external/lark"
	"github.com/garyjia/approval-workflow/internal/infrastructure/notification"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/postgres"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/approval-workflow/migrations"
	"github.com/garyjia/approval-workflow/pkg/database"
)

// StoreBundle holds the storage adapters for the configured driver.
type StoreBundle struct {
	Documents port.DocumentRepository
	Audit     port.AuditLog
	TxManager port.TransactionManager

	// Ping reports whether the backing database is reachable
	Ping func(ctx context.Context) error
	// Close releases the database connections
	Close func() error
}

// ProvideStores opens the configured database, runs pending migrations and
// returns the document store, audit log and transaction manager on top of it.
func ProvideStores(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*StoreBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Driver {
	case DriverSQLite, "":
		return provideSQLiteStores(ctx, cfg, logger)
	case DriverPostgres:
		return providePostgresStores(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func provideSQLiteStores(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*StoreBundle, error) {
	raw, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(raw, logger).Run(ctx, migrations.FS, migrations.SQLiteDir); err != nil {
		raw.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db := sqlite.NewDB(raw.DB, logger)
	return &StoreBundle{
		Documents: sqlite.NewDocumentRepository(db, logger),
		Audit:     sqlite.NewAuditRepository(db, logger),
		TxManager: db,
		Ping:      raw.PingContext,
		Close:     raw.Close,
	}, nil
}

func providePostgresStores(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*StoreBundle, error) {
	pool, err := postgres.NewPool(ctx, cfg.DSN, postgres.PoolConfig{
		MaxConns:        int32(cfg.MaxOpenConns), // #nosec G115 -- small configured value
		MinConns:        int32(cfg.MaxIdleConns), // #nosec G115 -- small configured value
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	db := postgres.NewDB(pool, logger)
	if err := db.Migrate(ctx, migrations.FS, migrations.PostgresDir); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &StoreBundle{
		Documents: postgres.NewDocumentRepository(db, logger),
		Audit:     postgres.NewAuditRepository(db, logger),
		TxManager: db,
		Ping:      pool.Ping,
		Close: func() error {
			pool.Close()
			return nil
		},
	}, nil
}

// ProvideRegistry loads the transition tables, from file when configured.
func ProvideRegistry(cfg *WorkflowConfig, logger *zap.Logger) (*domainwf.Registry, error) {
	registry, err := workflow.LoadRegistry(cfg.DefinitionsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load transition tables: %w", err)
	}

	source := "built-in"
	if cfg.DefinitionsPath != "" {
		source = cfg.DefinitionsPath
	}
	logger.Info("Transition tables loaded",
		zap.String("source", source),
		zap.Int("document_types", len(registry.DocumentTypes())))

	return registry, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *WorkflowConfig, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&dispatcherLoggerAdapter{logger: logger}),
		dispatcher.WithHandlerTimeout(cfg.HandlerTimeout),
	), nil
}

// ProvideLarkMessenger creates the Lark message sender, or nil when notifications are disabled.
func ProvideLarkMessenger(cfg *NotificationConfig, logger *zap.Logger) port.LarkMessageSender {
	if !cfg.Enabled {
		return nil
	}

	client := infraLark.NewClient(infraLark.Config{
		AppID:         cfg.Lark.AppID,
		AppSecret:     cfg.Lark.AppSecret,
		ReceiveIDType: cfg.Lark.ReceiveIDType,
	})
	return infraLark.NewMessenger(client, cfg.Lark.ReceiveIDType, logger)
}

// RegisterSubscribers attaches the notification subscribers to the dispatcher.
func RegisterSubscribers(d dispatcher.Dispatcher, cfg *NotificationConfig, messenger port.LarkMessageSender, logger *zap.Logger) {
	subscribers := []dispatcher.Subscriber{notification.NewLoggingSubscriber(logger)}

	if messenger != nil {
		recipients := make(map[domainwf.Role][]string, len(cfg.Lark.Recipients))
		for role, ids := range cfg.Lark.Recipients {
			recipients[domainwf.Role(role)] = ids
		}

		subscribers = append(subscribers, notification.NewLarkNotifier(messenger, notification.LarkNotifierConfig{
			Recipients:         recipients,
			TerminalRecipients: cfg.Lark.TerminalRecipients,
			MaxAttempts:        cfg.MaxAttempts,
			InitialDelay:       cfg.InitialDelay,
		}, logger))
	}

	dispatcher.RegisterAll(d, subscribers...)
}

// WorkflowDeps holds dependencies for the workflow engine.
type WorkflowDeps struct {
	Registry   *domainwf.Registry
	Stores     *StoreBundle
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine with its notification hook.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps == nil || deps.Registry == nil || deps.Stores == nil {
		return nil, fmt.Errorf("registry and stores are required")
	}

	opts := []workflow.EngineOption{workflow.WithLogger(deps.Logger)}
	if deps.Dispatcher != nil {
		opts = append(opts, workflow.WithNotificationHook(dispatcher.NewHook(deps.Dispatcher)))
	}

	return workflow.NewEngine(deps.Registry, deps.Stores.Documents, deps.Stores.Audit, deps.Stores.TxManager, opts...), nil
}
