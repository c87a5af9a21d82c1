package config

import (
	"github.com/garyjia/approval-workflow/internal/container"
)

// ToContainerConfig converts the file-based Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			DSN:             c.Database.DSN,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Workflow: container.WorkflowConfig{
			DefinitionsPath: c.Workflow.DefinitionsPath,
			ApplyTimeout:    c.Workflow.ApplyTimeout,
			HandlerTimeout:  c.Workflow.HandlerTimeout,
		},
		Notification: container.NotificationConfig{
			Enabled: c.Notification.Enabled,
			Lark: container.LarkConfig{
				AppID:              c.Notification.Lark.AppID,
				AppSecret:          c.Notification.Lark.AppSecret,
				ReceiveIDType:      c.Notification.Lark.ReceiveIDType,
				Recipients:         c.Notification.Lark.Recipients,
				TerminalRecipients: c.Notification.Lark.TerminalRecipients,
			},
			MaxAttempts:  c.Notification.MaxAttempts,
			InitialDelay: c.Notification.InitialDelay,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
	}
}
