// Package container wires the approval service together and manages its
// lifecycle.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/credit-approvals/internal/infrastructure/external/lark"
	"github.com/garyjia/credit-approvals/internal/infrastructure/external/zendesk"
	"github.com/garyjia/credit-approvals/internal/infrastructure/worker"
	httpif "github.com/garyjia/credit-approvals/internal/interfaces/http"
	"github.com/garyjia/credit-approvals/pkg/database"
)

// Config holds all configuration for the Container
type Config struct {
	Database  database.Config
	Server    httpif.ServerConfig
	Workflow  WorkflowConfig
	Zendesk   ZendeskConfig
	Lark      LarkConfig
	Reconcile ReconcileConfig
}

// WorkflowConfig holds controller timing settings
type WorkflowConfig struct {
	SaveSettleDelay   time.Duration
	InitialCheckDelay time.Duration

	// CacheExpiry is how long an idle controller stays attached
	CacheExpiry time.Duration
}

// ZendeskConfig selects the host platform adapter
type ZendeskConfig struct {
	Enabled bool
	zendesk.Config
}

// LarkConfig holds chat notification settings
type LarkConfig struct {
	Enabled bool
	ChatID  string
	lark.Config
}

// ReconcileConfig holds reconcile sweep settings
type ReconcileConfig struct {
	Enabled bool
	worker.ReconcileWorkerConfig
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: database.Config{
			Path:         "data/approvals.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
			BusyTimeout:  5 * time.Second,
		},
		Server: httpif.DefaultServerConfig(),
		Workflow: WorkflowConfig{
			SaveSettleDelay:   1 * time.Second,
			InitialCheckDelay: 2 * time.Second,
			CacheExpiry:       30 * time.Minute,
		},
		Zendesk: ZendeskConfig{
			Config: zendesk.Config{
				Timeout:         15 * time.Second,
				ScopeFieldTerms: zendesk.DefaultScopeFieldTerms(),
			},
		},
		Reconcile: ReconcileConfig{
			Enabled:               true,
			ReconcileWorkerConfig: worker.DefaultReconcileWorkerConfig(),
		},
	}
}

// Validate checks that required configuration values are present
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Zendesk.Enabled && (c.Zendesk.BaseURL == "" || c.Zendesk.APIToken == "") {
		return fmt.Errorf("zendesk.base_url and zendesk.api_token are required")
	}
	if c.Lark.Enabled && (c.Lark.AppID == "" || c.Lark.AppSecret == "" || c.Lark.ChatID == "") {
		return fmt.Errorf("lark.app_id, lark.app_secret and lark.chat_id are required")
	}
	return nil
}
