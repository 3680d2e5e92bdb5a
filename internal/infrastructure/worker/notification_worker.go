package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/infrastructure/queue"
)

// Deliverer sends one queued notification and records its outcome
type Deliverer interface {
	Deliver(ctx context.Context, n *entity.Notification) error
}

// NotificationWorkerConfig holds the delivery pool settings
type NotificationWorkerConfig struct {
	Concurrency int
	// DeliveryTimeout bounds a single Deliver call.
	DeliveryTimeout time.Duration
	// RetryBackoff is the pause after a queue error before polling again.
	RetryBackoff time.Duration
}

func DefaultNotificationWorkerConfig() NotificationWorkerConfig {
	return NotificationWorkerConfig{
		Concurrency:     2,
		DeliveryTimeout: 15 * time.Second,
		RetryBackoff:    time.Second,
	}
}

// NotificationWorker drains the notification queue with a fixed pool of goroutines
type NotificationWorker struct {
	config    NotificationWorkerConfig
	queue     port.NotificationQueue
	deliverer Deliverer
	logger    *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	delivered atomic.Int64
	failed    atomic.Int64
}

func NewNotificationWorker(config NotificationWorkerConfig, queue port.NotificationQueue, deliverer Deliverer, logger *zap.Logger) *NotificationWorker {
	defaults := DefaultNotificationWorkerConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = defaults.DeliveryTimeout
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}
	return &NotificationWorker{
		config:    config,
		queue:     queue,
		deliverer: deliverer,
		logger:    logger,
	}
}

func (w *NotificationWorker) Name() string {
	return "NotificationWorker"
}

func (w *NotificationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("notification worker already running")
	}

	var runCtx context.Context
	runCtx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.loop(runCtx, i)
	}

	w.logger.Info("NotificationWorker started", zap.Int("concurrency", w.config.Concurrency))
	return nil
}

// Stop cancels the pool and waits for in-flight deliveries to finish.
func (w *NotificationWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel := w.cancel
	w.mu.Unlock()

	cancel()
	w.wg.Wait()

	w.logger.Info("NotificationWorker stopped",
		zap.Int64("delivered", w.delivered.Load()),
		zap.Int64("failed", w.failed.Load()))
	return nil
}

// Stats returns delivered and failed counts since construction.
func (w *NotificationWorker) Stats() (delivered, failed int64) {
	return w.delivered.Load(), w.failed.Load()
}

func (w *NotificationWorker) loop(ctx context.Context, id int) {
	defer w.wg.Done()

	for {
		n, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, queue.ErrClosed) {
				w.logger.Info("Notification queue closed", zap.Int("worker", id))
				return
			}
			w.logger.Warn("Failed to dequeue notification", zap.Int("worker", id), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.config.RetryBackoff):
			}
			continue
		}

		w.deliver(ctx, n)
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, n *entity.Notification) {
	// An in-flight delivery finishes even when shutdown starts.
	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.config.DeliveryTimeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			w.failed.Add(1)
			w.logger.Error("Notification delivery panicked",
				zap.String("notification_id", n.ID),
				zap.Any("panic", p))
		}
	}()

	if err := w.deliverer.Deliver(deliverCtx, n); err != nil {
		w.failed.Add(1)
		w.logger.Warn("Notification delivery failed",
			zap.String("notification_id", n.ID),
			zap.String("workflow_id", n.WorkflowID),
			zap.Error(err))
		return
	}
	w.delivered.Add(1)
}
