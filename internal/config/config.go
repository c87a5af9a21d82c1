package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Workflow     WorkflowConfig     `mapstructure:"workflow"`
	Notification NotificationConfig `mapstructure:"notification"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// WorkflowConfig holds engine configuration
type WorkflowConfig struct {
	DefinitionsPath string        `mapstructure:"definitions_path"`
	ApplyTimeout    time.Duration `mapstructure:"apply_timeout"`
	HandlerTimeout  time.Duration `mapstructure:"handler_timeout"`
}

// NotificationConfig holds notification delivery configuration
type NotificationConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Lark         LarkConfig    `mapstructure:"lark"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID              string              `mapstructure:"app_id"`
	AppSecret          string              `mapstructure:"app_secret"`
	ReceiveIDType      string              `mapstructure:"receive_id_type"`
	Recipients         map[string][]string `mapstructure:"recipients"`
	TerminalRecipients []string            `mapstructure:"terminal_recipients"`
}

// Load loads configuration from file and environment variables.
// A .env file next to the working directory is read first when present.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/workflow.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Workflow defaults
	v.SetDefault("workflow.apply_timeout", 5*time.Second)
	v.SetDefault("workflow.handler_timeout", 30*time.Second)

	// Notification defaults
	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.lark.receive_id_type", "open_id")
	v.SetDefault("notification.max_attempts", 3)
	v.SetDefault("notification.initial_delay", 500*time.Millisecond)
}

// bindEnvVars binds secrets to their conventional environment variable names
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"database.dsn":                 "DATABASE_URL",
		"notification.lark.app_id":     "LARK_APP_ID",
		"notification.lark.app_secret": "LARK_APP_SECRET",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn (or DATABASE_URL) is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
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
		if c.Notification.MaxAttempts <= 0 {
			return fmt.Errorf("notification.max_attempts must be positive")
		}
	}

	return nil
}
