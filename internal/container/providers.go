package container

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/approver"
	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/application/service"
	"github.com/garyjia/travel-approval/internal/application/workflow"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
	"github.com/garyjia/travel-approval/internal/infrastructure/catalog"
	"github.com/garyjia/travel-approval/internal/infrastructure/external/directory"
	infraLark "github.com/garyjia/travel-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/travel-approval/internal/infrastructure/external/travelrequest"
	"github.com/garyjia/travel-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/travel-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-approval/internal/infrastructure/queue"
	"github.com/garyjia/travel-approval/internal/infrastructure/worker"
	"github.com/garyjia/travel-approval/pkg/database"
	"github.com/garyjia/travel-approval/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// CatalogBundle holds the live step catalog and where it is reloaded from.
type CatalogBundle struct {
	Catalog *domainwf.Catalog
	Router  *domainwf.Router
	// Source is nil when the steps file is absent and storage is authoritative.
	Source port.CatalogSource
}

// ExternalBundle holds the collaborator adapters.
type ExternalBundle struct {
	Requests  port.RequestTracker
	Directory port.Directory
	Notifier  port.Notifier
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Run(database.Schema()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &RepositoryBundle{
		Workflow:     repository.NewWorkflowRepository(sqlDB, logger),
		Action:       repository.NewActionRepository(sqlDB, logger),
		StepConfig:   repository.NewStepConfigRepository(sqlDB, logger),
		Notification: repository.NewNotificationRepository(sqlDB, logger),
	}, nil
}

// ProvideCatalog seeds storage from the steps file when it exists, then
// builds the catalog and router. Without the file the stored
// configuration is used and the built-in routes apply.
func ProvideCatalog(ctx context.Context, cfg *WorkflowConfig, steps port.StepConfigRepository, tx port.TransactionManager, logger *zap.Logger) (*CatalogBundle, error) {
	var (
		configs []entity.StepConfig
		routes  = domainwf.DefaultRoutes()
		source  port.CatalogSource
	)

	_, statErr := os.Stat(cfg.StepsFile)
	switch {
	case statErr == nil:
		fileSource := catalog.NewFileSource(cfg.StepsFile)
		loaded, err := fileSource.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load step catalog: %w", err)
		}
		if routes, err = fileSource.Routes(); err != nil {
			return nil, fmt.Errorf("failed to load routes: %w", err)
		}
		if err := tx.WithTransaction(ctx, func(ctx context.Context) error {
			return steps.ReplaceAll(ctx, loaded)
		}); err != nil {
			return nil, fmt.Errorf("failed to seed step configuration: %w", err)
		}
		configs, source = loaded, fileSource
		logger.Info("Step catalog seeded from file",
			zap.String("path", cfg.StepsFile),
			zap.Int("steps", len(loaded)))

	case errors.Is(statErr, fs.ErrNotExist):
		stored, err := steps.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read stored step configuration: %w", err)
		}
		configs = stored
		logger.Warn("Steps file not found, using stored configuration",
			zap.String("path", cfg.StepsFile),
			zap.Int("steps", len(stored)))

	default:
		return nil, fmt.Errorf("failed to stat steps file: %w", statErr)
	}

	cat := domainwf.NewCatalog(configs)
	types := cat.WorkflowTypes()
	if len(types) == 0 {
		return nil, fmt.Errorf("step catalog has no active steps")
	}
	for _, t := range types {
		if _, err := cat.StepsFor(t); err != nil {
			return nil, err
		}
	}

	router, err := domainwf.NewRouter(routes, domainwf.NewPredicateEvaluator())
	if err != nil {
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	logger.Info("Step catalog ready", zap.String("workflow_types", strings.Join(types, ",")))
	return &CatalogBundle{Catalog: cat, Router: router, Source: source}, nil
}

// ProvideExternal builds the request tracker, directory and notifier.
// Lark backs the directory and notifier when configured; otherwise the
// static directory and a logging notifier are used.
func ProvideExternal(cfg *Config, logger *zap.Logger) (*ExternalBundle, error) {
	bundle := &ExternalBundle{
		Requests: travelrequest.NewClient(travelrequest.Config{
			BaseURL: cfg.TravelRequest.BaseURL,
			Timeout: cfg.TravelRequest.Timeout,
		}, logger),
	}

	if cfg.Lark.Enabled() {
		client := infraLark.NewClient(infraLark.Config{
			AppID:      cfg.Lark.AppID,
			AppSecret:  cfg.Lark.AppSecret,
			UserIDType: cfg.Lark.UserIDType,
			RoleChats:  cfg.Lark.RoleChats,
		}, logger)
		bundle.Directory = infraLark.NewDirectory(client, logger)
		bundle.Notifier = infraLark.NewMessenger(client, logger)
		logger.Info("Lark directory and messenger enabled")
		return bundle, nil
	}

	bundle.Directory = directory.NewStatic(cfg.Directory)
	bundle.Notifier = &logNotifier{logger: logger}
	logger.Info("Lark disabled, using static directory", zap.Int("employees", len(cfg.Directory)))
	return bundle, nil
}

// ProvideQueue creates the notification outbox queue.
func ProvideQueue(cfg *Config) (port.NotificationQueue, error) {
	switch cfg.Notification.Queue {
	case QueueRedis:
		q, err := queue.NewRedisQueue(queue.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return queue.NewMemoryQueue(cfg.Notification.QueueCapacity), nil
	}
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger.Named("dispatcher"))))
}

// EngineDeps are the inputs of ProvideWorkflowEngine.
type EngineDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Catalog    *CatalogBundle
	External   *ExternalBundle
	Dispatcher dispatcher.Dispatcher
	Workflow   *WorkflowConfig
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the approval engine.
func ProvideWorkflowEngine(deps *EngineDeps) (workflow.Engine, error) {
	kv := utils.NewKVLogger(deps.Logger.Named("workflow"))

	resolver := approver.NewResolver(deps.External.Directory, deps.Workflow.FallbackApproverID, kv)

	policy := domainwf.DefaultPolicy()
	if deps.Workflow.HighCostThreshold > 0 {
		policy.HighCostThreshold = deps.Workflow.HighCostThreshold
	}
	if deps.Workflow.LongTripDays > 0 {
		policy.LongTripDays = deps.Workflow.LongTripDays
	}
	if deps.Workflow.DefaultDueWindow > 0 {
		policy.DefaultDueWindow = deps.Workflow.DefaultDueWindow
	}

	return workflow.NewEngine(workflow.Dependencies{
		Workflows:     deps.Repos.Workflow,
		Actions:       deps.Repos.Action,
		StepConfigs:   deps.Repos.StepConfig,
		TxManager:     deps.TxManager,
		Requests:      deps.External.Requests,
		Resolver:      resolver,
		Catalog:       deps.Catalog.Catalog,
		CatalogSource: deps.Catalog.Source,
	},
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithRouter(deps.Catalog.Router),
		workflow.WithPolicy(policy),
		workflow.WithLogger(kv),
	)
}

// ProvideServices creates the notification and report services and
// subscribes notifications to every workflow event.
func ProvideServices(repos *RepositoryBundle, q port.NotificationQueue, ext *ExternalBundle, engine workflow.Engine, disp dispatcher.Dispatcher, logger *zap.Logger) *ServiceBundle {
	kv := utils.NewKVLogger(logger.Named("service"))

	notifications := service.NewNotificationService(repos.Notification, q, ext.Notifier, ext.Requests, kv)
	notifications.Register(disp)

	return &ServiceBundle{
		Notification: notifications,
		Report:       service.NewReportService(engine, kv),
	}
}

// ProvideWorkers creates the worker manager with the notification delivery pool.
func ProvideWorkers(cfg *NotificationConfig, q port.NotificationQueue, deliverer worker.Deliverer, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)
	manager.Register(worker.NewNotificationWorker(worker.NotificationWorkerConfig{
		Concurrency:     cfg.Workers,
		DeliveryTimeout: cfg.DeliveryTimeout,
	}, q, deliverer, logger))
	return manager
}

// logNotifier records notifications in the log when no messenger is configured.
type logNotifier struct {
	logger *zap.Logger
}

func (n *logNotifier) Send(ctx context.Context, msg *entity.Notification) error {
	n.logger.Info("Notification",
		zap.String("notification_id", msg.ID),
		zap.String("workflow_id", msg.WorkflowID),
		zap.String("type", msg.NotificationType),
		zap.String("recipient_id", msg.RecipientID),
		zap.String("recipient_role", msg.RecipientRole),
		zap.String("subject", msg.Subject))
	return nil
}
