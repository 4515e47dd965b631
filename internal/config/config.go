package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/garyjia/credit-approvals/pkg/utils"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Zendesk   ZendeskConfig   `mapstructure:"zendesk"`
	Lark      LarkConfig      `mapstructure:"lark"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// WorkflowConfig tunes the approval controllers
type WorkflowConfig struct {
	SaveSettleDelay       time.Duration `mapstructure:"save_settle_delay"`
	InitialCheckDelay     time.Duration `mapstructure:"initial_check_delay"`
	ControllerCacheExpiry time.Duration `mapstructure:"controller_cache_expiry"`
	ScopeFieldTerms       []string      `mapstructure:"scope_field_terms"`
}

// ZendeskConfig holds Zendesk API configuration. When disabled the local
// ticket tables stand in for the platform.
type ZendeskConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BaseURL  string        `mapstructure:"base_url"`
	Email    string        `mapstructure:"email"`
	APIToken string        `mapstructure:"api_token"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	ChatID    string `mapstructure:"chat_id"`
	BaseURL   string `mapstructure:"base_url"`
}

// ReconcileConfig holds the reconcile sweep configuration
type ReconcileConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Schedule  string        `mapstructure:"schedule"`
	BatchSize int           `mapstructure:"batch_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from an optional .env file, the config file and
// environment variables
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
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
		return nil, err
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
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.max_upload_bytes", 8<<20)

	v.SetDefault("database.path", "data/approvals.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("workflow.save_settle_delay", 1*time.Second)
	v.SetDefault("workflow.initial_check_delay", 2*time.Second)
	v.SetDefault("workflow.controller_cache_expiry", 30*time.Minute)
	v.SetDefault("workflow.scope_field_terms", []string{"type", "credit"})

	v.SetDefault("zendesk.timeout", 15*time.Second)

	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.schedule", "*/5 * * * *")
	v.SetDefault("reconcile.batch_size", 50)
	v.SetDefault("reconcile.timeout", 2*time.Minute)
}

// bindEnvVars binds credentials to their conventional environment names
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"zendesk.base_url":      "ZENDESK_BASE_URL",
		"zendesk.email":         "ZENDESK_EMAIL",
		"zendesk.api_token":     "ZENDESK_API_TOKEN",
		"lark.app_id":           "LARK_APP_ID",
		"lark.app_secret":       "LARK_APP_SECRET",
		"lark.chat_id":          "LARK_CHAT_ID",
		"server.webhook_secret": "WEBHOOK_SECRET",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Zendesk.Enabled {
		if err := utils.ValidateBaseURL(c.Zendesk.BaseURL); err != nil {
			return fmt.Errorf("zendesk.base_url: %w", err)
		}
		if err := utils.ValidateEmail(c.Zendesk.Email); err != nil {
			return fmt.Errorf("zendesk.email: %w", err)
		}
		if c.Zendesk.APIToken == "" {
			return fmt.Errorf("zendesk.api_token is required")
		}
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required")
		}
		if c.Lark.ChatID == "" {
			return fmt.Errorf("lark.chat_id is required")
		}
	}

	if c.Reconcile.Enabled && c.Reconcile.Schedule == "" {
		return fmt.Errorf("reconcile.schedule is required")
	}
	if c.Workflow.SaveSettleDelay < 0 || c.Workflow.InitialCheckDelay < 0 {
		return fmt.Errorf("workflow delays must not be negative")
	}

	return nil
}
