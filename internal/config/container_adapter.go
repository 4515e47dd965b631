package config

import (
	"github.com/garyjia/credit-approvals/internal/container"
	"github.com/garyjia/credit-approvals/internal/infrastructure/external/lark"
	"github.com/garyjia/credit-approvals/internal/infrastructure/external/zendesk"
	"github.com/garyjia/credit-approvals/internal/infrastructure/worker"
	httpif "github.com/garyjia/credit-approvals/internal/interfaces/http"
	"github.com/garyjia/credit-approvals/pkg/database"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: database.Config{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
		},
		Server: httpif.ServerConfig{
			Host:           c.Server.Host,
			Port:           c.Server.Port,
			ReadTimeout:    c.Server.ReadTimeout,
			WriteTimeout:   c.Server.WriteTimeout,
			WebhookSecret:  c.Server.WebhookSecret,
			MaxUploadBytes: c.Server.MaxUploadBytes,
		},
		Workflow: container.WorkflowConfig{
			SaveSettleDelay:   c.Workflow.SaveSettleDelay,
			InitialCheckDelay: c.Workflow.InitialCheckDelay,
			CacheExpiry:       c.Workflow.ControllerCacheExpiry,
		},
		Zendesk: container.ZendeskConfig{
			Enabled: c.Zendesk.Enabled,
			Config: zendesk.Config{
				BaseURL:         c.Zendesk.BaseURL,
				Email:           c.Zendesk.Email,
				APIToken:        c.Zendesk.APIToken,
				Timeout:         c.Zendesk.Timeout,
				ScopeFieldTerms: c.Workflow.ScopeFieldTerms,
			},
		},
		Lark: container.LarkConfig{
			Enabled: c.Lark.Enabled,
			ChatID:  c.Lark.ChatID,
			Config: lark.Config{
				AppID:     c.Lark.AppID,
				AppSecret: c.Lark.AppSecret,
				BaseURL:   c.Lark.BaseURL,
			},
		},
		Reconcile: container.ReconcileConfig{
			Enabled: c.Reconcile.Enabled,
			ReconcileWorkerConfig: worker.ReconcileWorkerConfig{
				Schedule:  c.Reconcile.Schedule,
				BatchSize: c.Reconcile.BatchSize,
				Timeout:   c.Reconcile.Timeout,
			},
		},
	}
}
