// Package container provides dependency injection and lifecycle management
// for the approval workflow service.
package container

import (
	"fmt"
	"time"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all configuration for the Container.
type Config struct {
	Database     DatabaseConfig
	Workflow     WorkflowConfig
	Notification NotificationConfig
	Server       ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver selects the storage backend: sqlite or postgres
	Driver string

	// Path to the SQLite database file
	Path string

	// DSN is the PostgreSQL connection string
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// WorkflowConfig holds engine settings.
type WorkflowConfig struct {
	// DefinitionsPath points at a YAML table definitions file; empty uses the built-in tables
	DefinitionsPath string

	// ApplyTimeout bounds the pre-write phase of HTTP transition requests
	ApplyTimeout time.Duration

	// HandlerTimeout bounds each asynchronous notification handler run
	HandlerTimeout time.Duration
}

// NotificationConfig holds notification delivery settings.
type NotificationConfig struct {
	Enabled bool
	Lark    LarkConfig

	// MaxAttempts and InitialDelay drive exponential retry of each delivery
	MaxAttempts  int
	InitialDelay time.Duration
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	AppID     string
	AppSecret string

	// ReceiveIDType is open_id, user_id, union_id, email or chat_id
	ReceiveIDType string

	// Recipients maps a role name to the receiver ids acting for it
	Recipients map[string][]string

	// TerminalRecipients are messaged when a document reaches a terminal state
	TerminalRecipients []string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            "data/workflow.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Workflow: WorkflowConfig{
			ApplyTimeout:   5 * time.Second,
			HandlerTimeout: 30 * time.Second,
		},
		Notification: NotificationConfig{
			Lark: LarkConfig{
				ReceiveIDType: "open_id",
			},
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}

	if c.Workflow.ApplyTimeout < 0 {
		return fmt.Errorf("workflow.apply_timeout must not be negative")
	}

	if c.Notification.Enabled {
		if c.Notification.Lark.AppID == "" {
			return fmt.Errorf("notification.lark.app_id is required when notifications are enabled")
		}
		if c.Notification.Lark.AppSecret == "" {
			return fmt.Errorf("notification.lark.app_secret is required when notifications are enabled")
		}
	}

	return nil
}
