package container

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/credit-approvals/internal/application/dispatcher"
	"github.com/garyjia/credit-approvals/internal/application/port"
	"github.com/garyjia/credit-approvals/internal/application/service"
	"github.com/garyjia/credit-approvals/internal/application/workflow"
	"github.com/garyjia/credit-approvals/internal/domain/event"
	"github.com/garyjia/credit-approvals/internal/infrastructure/external/lark"
	"github.com/garyjia/credit-approvals/internal/infrastructure/external/zendesk"
	"github.com/garyjia/credit-approvals/internal/infrastructure/persistence/repository"
	"github.com/garyjia/credit-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/credit-approvals/internal/infrastructure/spreadsheet"
	"github.com/garyjia/credit-approvals/internal/infrastructure/worker"
	"github.com/garyjia/credit-approvals/migrations"
	"github.com/garyjia/credit-approvals/pkg/database"
	"github.com/garyjia/credit-approvals/pkg/utils"
	"go.uber.org/zap"
)

// DatabaseBundle holds the connection and its transaction manager
type DatabaseBundle struct {
	Conn *database.DB
	Tx   *sqlite.DB
}

// RepositoryBundle groups all repositories for convenient access
type RepositoryBundle struct {
	Rules         port.RuleStore
	States        port.WorkflowStateRepository
	History       port.HistoryRepository
	Notifications port.NotificationRepository
	Tickets       *repository.TicketRepository
	Groups        *repository.GroupRepository
}

// PlatformBundle holds the host platform adapters the workflow works through
type PlatformBundle struct {
	Records port.RecordProvider
	Groups  port.GroupDirectory
	Sink    port.MutationSink
	Name    string
}

// ServiceBundle groups all application services
type ServiceBundle struct {
	Rules        service.RuleService
	Notification service.NotificationService
}

// ProvideDatabase opens the database and applies the embedded migrations
func ProvideDatabase(ctx context.Context, cfg database.Config, logger *zap.Logger) (*DatabaseBundle, error) {
	conn, err := database.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(conn, logger).Run(ctx, migrations.FS); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn: conn,
		Tx:   sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories on db
func ProvideRepositories(db *sql.DB, logger *zap.Logger) *RepositoryBundle {
	return &RepositoryBundle{
		Rules:         repository.NewRuleRepository(db, logger),
		States:        repository.NewWorkflowStateRepository(db, logger),
		History:       repository.NewHistoryRepository(db, logger),
		Notifications: repository.NewNotificationRepository(db, logger),
		Tickets:       repository.NewTicketRepository(db, logger),
		Groups:        repository.NewGroupRepository(db, logger),
	}
}

// ProvidePlatform returns the Zendesk adapters, or the local ticket tables when
// Zendesk is disabled
func ProvidePlatform(cfg ZendeskConfig, repos *RepositoryBundle, logger *zap.Logger) *PlatformBundle {
	if !cfg.Enabled {
		logger.Info("Zendesk disabled, using local ticket store")
		return &PlatformBundle{
			Records: repos.Tickets,
			Groups:  repos.Groups,
			Sink:    repos.Tickets,
			Name:    "local",
		}
	}

	client := zendesk.NewClient(cfg.Config, logger.Named("zendesk"))
	return &PlatformBundle{
		Records: client,
		Groups:  client,
		Sink:    client,
		Name:    "zendesk",
	}
}

// ProvideMessenger returns the Lark messenger, or nil when Lark is disabled
func ProvideMessenger(cfg LarkConfig, logger *zap.Logger) port.Messenger {
	if !cfg.Enabled {
		return nil
	}
	client := lark.NewSDKClient(cfg.Config, logger)
	return lark.NewMessenger(client, logger.Named("lark"))
}

// ProvideDispatcher creates the event dispatcher
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger.Named("dispatcher"))))
}

// WorkflowDeps holds the collaborators of the workflow engine
type WorkflowDeps struct {
	Config     WorkflowConfig
	DB         *DatabaseBundle
	Repos      *RepositoryBundle
	Platform   *PlatformBundle
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine. It subscribes itself to
// record saved events on the dispatcher.
func ProvideWorkflowEngine(deps *WorkflowDeps) workflow.WorkflowEngine {
	opts := workflow.DefaultOptions()
	if deps.Config.SaveSettleDelay > 0 {
		opts.SaveSettleDelay = deps.Config.SaveSettleDelay
	}
	if deps.Config.InitialCheckDelay > 0 {
		opts.InitialCheckDelay = deps.Config.InitialCheckDelay
	}

	engineOpts := []workflow.EngineOption{workflow.WithOptions(opts)}
	if deps.Config.CacheExpiry > 0 {
		engineOpts = append(engineOpts, workflow.WithCacheExpiry(deps.Config.CacheExpiry))
	}

	return workflow.NewEngine(workflow.Dependencies{
		Rules:     deps.Repos.Rules,
		Records:   deps.Platform.Records,
		Groups:    deps.Platform.Groups,
		Sink:      deps.Platform.Sink,
		States:    deps.Repos.States,
		History:   deps.Repos.History,
		Tx:        deps.DB.Tx,
		Events:    deps.Dispatcher,
		Publisher: deps.Dispatcher,
		Logger:    utils.NewKVLogger(deps.Logger.Named("workflow")),
	}, engineOpts...)
}

// ServiceDeps holds the collaborators of the application services
type ServiceDeps struct {
	DB         *DatabaseBundle
	Repos      *RepositoryBundle
	Messenger  port.Messenger
	ChatID     string
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices creates the application services. The notification service
// is only created and subscribed when a messenger is configured.
func ProvideServices(deps *ServiceDeps) *ServiceBundle {
	kv := utils.NewKVLogger(deps.Logger.Named("service"))

	bundle := &ServiceBundle{
		Rules: service.NewRuleService(
			deps.Repos.Rules,
			spreadsheet.NewRuleWorkbook(deps.Logger.Named("workbook")),
			deps.DB.Tx,
			deps.Dispatcher,
			kv,
		),
	}

	if deps.Messenger != nil {
		bundle.Notification = service.NewNotificationService(deps.Repos.Notifications, deps.Messenger, deps.ChatID, kv)
		deps.Dispatcher.SubscribeNamed(event.TypeStatusChanged, "lark-notification", bundle.Notification.HandleEvent)
		deps.Dispatcher.SubscribeNamed(event.TypeStatusReverted, "lark-notification", bundle.Notification.HandleEvent)
	}

	return bundle
}

// ProvideWorkers registers the background workers
func ProvideWorkers(cfg ReconcileConfig, engine workflow.WorkflowEngine, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger.Named("worker"))
	if cfg.Enabled {
		manager.Register(worker.NewReconcileWorker(cfg.ReconcileWorkerConfig, engine, logger.Named("reconcile")))
	}
	return manager
}
