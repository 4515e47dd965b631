package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/credit-approvals/internal/application/dispatcher"
	"github.com/garyjia/credit-approvals/internal/application/port"
	"github.com/garyjia/credit-approvals/internal/application/workflow"
	"github.com/garyjia/credit-approvals/internal/infrastructure/worker"
	httpif "github.com/garyjia/credit-approvals/internal/interfaces/http"
	"github.com/garyjia/credit-approvals/pkg/utils"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and are torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure
	db           *DatabaseBundle
	repositories *RepositoryBundle
	platform     *PlatformBundle
	messenger    port.Messenger

	// Application
	dispatcher dispatcher.Dispatcher
	workflow   workflow.WorkflowEngine
	services   *ServiceBundle

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component
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

// Start initializes all components in dependency order:
// database, platform adapters, dispatcher and workflow engine, services, workers.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	db, err := ProvideDatabase(ctx, c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.db = db
	c.repositories = ProvideRepositories(db.Conn.DB, c.logger)
	c.logger.Info("Database initialized", zap.String("path", c.config.Database.Path))

	c.platform = ProvidePlatform(c.config.Zendesk, c.repositories, c.logger)
	c.messenger = ProvideMessenger(c.config.Lark, c.logger)
	c.logger.Info("External clients initialized",
		zap.String("platform", c.platform.Name),
		zap.Bool("notifications", c.messenger != nil))

	c.dispatcher = ProvideDispatcher(c.logger)
	c.workflow = ProvideWorkflowEngine(&WorkflowDeps{
		Config:     c.config.Workflow,
		DB:         c.db,
		Repos:      c.repositories,
		Platform:   c.platform,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	c.logger.Info("Dispatcher and workflow engine initialized")

	c.services = ProvideServices(&ServiceDeps{
		DB:         c.db,
		Repos:      c.repositories,
		Messenger:  c.messenger,
		ChatID:     c.config.Lark.ChatID,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	c.logger.Info("Application services initialized")

	c.workers = ProvideWorkers(c.config.Reconcile, c.workflow, c.logger)
	if err := c.workers.StartAll(ctx); err != nil {
		c.logger.Error("Some workers failed to start", zap.Error(err))
	}
	c.logger.Info("Workers started", zap.Int("count", c.workers.GetWorkerCount()))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	if c.workflow != nil {
		if err := c.workflow.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close workflow engine: %w", err))
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.cancel != nil {
		c.cancel()
	}

	if c.db != nil {
		if err := c.db.Conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		for _, err := range errs {
			c.logger.Error("Shutdown error", zap.Error(err))
		}
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.db == nil:
		set("database", false, "not initialized")
	default:
		if err := c.db.Conn.Health(ctx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	if c.workers == nil {
		set("workers", false, "not initialized")
	} else {
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()))
	}

	if c.platform == nil {
		set("platform", false, "not initialized")
	} else {
		set("platform", true, c.platform.Name)
	}

	return status
}

// NewHTTPServer builds the HTTP server on the started container
func (c *Container) NewHTTPServer() (*httpif.Server, error) {
	if !c.ready.Load() {
		return nil, fmt.Errorf("container not started")
	}
	return httpif.NewServer(
		c.config.Server,
		c.workflow,
		c.services.Rules,
		c.dispatcher,
		c.db.Conn,
		utils.NewKVLogger(c.logger.Named("http")),
	), nil
}

// WorkflowEngine returns the workflow engine
func (c *Container) WorkflowEngine() workflow.WorkflowEngine {
	return c.workflow
}

// Dispatcher returns the event dispatcher
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Repositories returns the repository bundle
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns the application services
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Config returns the container configuration
func (c *Container) Config() *Config {
	return c.config
}
