package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/application/service"
	"github.com/garyjia/travel-approval/internal/application/workflow"
	"github.com/garyjia/travel-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-approval/internal/infrastructure/worker"
)

// Container manages all application dependencies and lifecycle.
// Initialization is ordered and teardown runs in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle
	catalog      *CatalogBundle

	// Infrastructure - External
	external *ExternalBundle
	queue    port.NotificationQueue

	// Application
	dispatcher dispatcher.Dispatcher
	engine     workflow.Engine
	services   *ServiceBundle

	// Workers
	workers *worker.Manager

	mu     sync.Mutex
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Workflow     port.WorkflowRepository
	Action       port.ActionRepository
	StepConfig   port.StepConfigRepository
	Notification port.NotificationRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Notification service.NotificationService
	Report       service.ReportService
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
// database, step catalog, collaborators and queue, dispatcher and
// engine, services, then workers. A failed start releases what was
// already opened.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	var runCtx context.Context
	runCtx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.start(runCtx); err != nil {
		c.teardown()
		return err
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

func (c *Container) start(ctx context.Context) error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr

	if c.repositories, err = ProvideRepositories(c.sqlDB, c.logger); err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	c.logger.Info("Database initialized")

	if c.catalog, err = ProvideCatalog(ctx, &c.config.Workflow, c.repositories.StepConfig, c.db, c.logger); err != nil {
		return fmt.Errorf("failed to initialize step catalog: %w", err)
	}

	if c.external, err = ProvideExternal(c.config, c.logger); err != nil {
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	if c.queue, err = ProvideQueue(c.config); err != nil {
		return fmt.Errorf("failed to initialize notification queue: %w", err)
	}
	c.logger.Info("External clients initialized", zap.String("queue", c.config.Notification.Queue))

	c.dispatcher = ProvideDispatcher(c.logger)
	c.engine, err = ProvideWorkflowEngine(&EngineDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Catalog:    c.catalog,
		External:   c.external,
		Dispatcher: c.dispatcher,
		Workflow:   &c.config.Workflow,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize workflow engine: %w", err)
	}

	c.services = ProvideServices(c.repositories, c.queue, c.external, c.engine, c.dispatcher, c.logger)
	c.logger.Info("Application services initialized")

	c.workers = ProvideWorkers(&c.config.Notification, c.queue, c.services.Notification, c.logger)
	if err := c.workers.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.logger.Info("Workers started", zap.Int("count", c.workers.WorkerCount()))

	return nil
}

// Close shuts down all components in reverse order. The dispatcher is
// drained before the workers stop so queued events still reach the outbox.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}
	c.logger.Info("Closing container")

	errs := c.teardown()
	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %w", len(errs), errs[0])
	}
	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) teardown() []error {
	var errs []error

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	if c.cancel != nil {
		c.cancel()
	}

	if c.queue != nil {
		if err := c.queue.Close(); err != nil {
			c.logger.Error("Failed to close notification queue", zap.Error(err))
			errs = append(errs, fmt.Errorf("close queue: %w", err))
		}
	}

	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.dispatcher, c.workers, c.queue, c.sqlDB = nil, nil, nil, nil
	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns the failing components; an empty map means healthy.
func (c *Container) Health(ctx context.Context) map[string]error {
	failures := make(map[string]error)

	if c.sqlDB == nil {
		failures["database"] = fmt.Errorf("not initialized")
	} else if err := c.sqlDB.PingContext(ctx); err != nil {
		failures["database"] = fmt.Errorf("ping failed: %w", err)
	}

	if c.workers == nil || !c.workers.IsRunning() {
		failures["workers"] = fmt.Errorf("not running")
	}

	if !c.ready.Load() {
		failures["container"] = fmt.Errorf("not ready")
	}
	return failures
}

// TransactionManager returns the transaction manager.
func (c *Container) TransactionManager() port.TransactionManager {
	return c.db
}

func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

func (c *Container) WorkflowEngine() workflow.Engine {
	return c.engine
}

func (c *Container) Services() *ServiceBundle {
	return c.services
}

func (c *Container) Workers() *worker.Manager {
	return c.workers
}

func (c *Container) Logger() *zap.Logger {
	return c.logger
}

func (c *Container) Config() *Config {
	return c.config
}
