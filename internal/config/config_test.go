package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 9090
database:
  path: /tmp/approvals-test.db
workflow:
  save_settle_delay: 500ms
  scope_field_terms: ["credit", "category"]
zendesk:
  enabled: true
  base_url: https://acme.zendesk.com
  email: bot@acme.com
  api_token: file-token
reconcile:
  schedule: "*/10 * * * *"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, int64(8<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 500*time.Millisecond, cfg.Workflow.SaveSettleDelay)
	assert.Equal(t, 2*time.Second, cfg.Workflow.InitialCheckDelay)
	assert.Equal(t, []string{"credit", "category"}, cfg.Workflow.ScopeFieldTerms)
	assert.Equal(t, "file-token", cfg.Zendesk.APIToken)
	assert.Equal(t, 15*time.Second, cfg.Zendesk.Timeout)
	assert.True(t, cfg.Reconcile.Enabled)
	assert.Equal(t, "*/10 * * * *", cfg.Reconcile.Schedule)
	assert.Equal(t, 50, cfg.Reconcile.BatchSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ZENDESK_API_TOKEN", "env-token")
	t.Setenv("WEBHOOK_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Zendesk.APIToken)
	assert.Equal(t, "s3cret", cfg.Server.WebhookSecret)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: 8080},
			Database:  DatabaseConfig{Path: "data/approvals.db"},
			Reconcile: ReconcileConfig{Enabled: true, Schedule: "*/5 * * * *"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"no database path", func(c *Config) { c.Database.Path = "" }, true},
		{"zendesk without url", func(c *Config) {
			c.Zendesk = ZendeskConfig{Enabled: true, Email: "bot@acme.com", APIToken: "t"}
		}, true},
		{"zendesk bad email", func(c *Config) {
			c.Zendesk = ZendeskConfig{Enabled: true, BaseURL: "https://acme.zendesk.com", Email: "bot", APIToken: "t"}
		}, true},
		{"zendesk complete", func(c *Config) {
			c.Zendesk = ZendeskConfig{Enabled: true, BaseURL: "https://acme.zendesk.com", Email: "bot@acme.com", APIToken: "t"}
		}, false},
		{"lark without chat", func(c *Config) {
			c.Lark = LarkConfig{Enabled: true, AppID: "cli_a", AppSecret: "s"}
		}, true},
		{"reconcile without schedule", func(c *Config) { c.Reconcile.Schedule = "" }, true},
		{"negative delay", func(c *Config) { c.Workflow.SaveSettleDelay = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestToContainerConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	cc := cfg.ToContainerConfig()
	require.NoError(t, cc.Validate())
	assert.Equal(t, cfg.Database.Path, cc.Database.Path)
	assert.Equal(t, 9090, cc.Server.Port)
	assert.Equal(t, 30*time.Minute, cc.Workflow.CacheExpiry)
	assert.True(t, cc.Zendesk.Enabled)
	assert.Equal(t, []string{"credit", "category"}, cc.Zendesk.ScopeFieldTerms)
	assert.Equal(t, "*/10 * * * *", cc.Reconcile.Schedule)
	assert.False(t, cc.Lark.Enabled)
}
