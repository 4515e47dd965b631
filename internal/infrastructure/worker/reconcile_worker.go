package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reconciler routes requests that were submitted while nobody was watching
type Reconciler interface {
	Reconcile(ctx context.Context, limit int) (int, error)
}

// ReconcileWorkerConfig holds configuration for the reconcile worker
type ReconcileWorkerConfig struct {
	// Schedule is a standard five-field cron expression
	Schedule  string
	BatchSize int
	Timeout   time.Duration
}

// DefaultReconcileWorkerConfig returns default configuration
func DefaultReconcileWorkerConfig() ReconcileWorkerConfig {
	return ReconcileWorkerConfig{
		Schedule:  "*/5 * * * *",
		BatchSize: 50,
		Timeout:   2 * time.Minute,
	}
}

// ReconcileWorker periodically sweeps requests left in Submit for Approval
type ReconcileWorker struct {
	config     ReconcileWorkerConfig
	reconciler Reconciler
	logger     *zap.Logger

	mu        sync.Mutex
	scheduler *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
	running   atomic.Bool

	runs      atomic.Int64
	routed    atomic.Int64
	lastError atomic.Value
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(config ReconcileWorkerConfig, reconciler Reconciler, logger *zap.Logger) *ReconcileWorker {
	defaults := DefaultReconcileWorkerConfig()
	if config.Schedule == "" {
		config.Schedule = defaults.Schedule
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return &ReconcileWorker{
		config:     config,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Start registers the sweep with the cron scheduler
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.scheduler != nil {
		return fmt.Errorf("reconcile worker already running")
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(w.config.Schedule, w.tick); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", w.config.Schedule, err)
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.scheduler = scheduler
	scheduler.Start()

	w.logger.Info("ReconcileWorker started",
		zap.String("schedule", w.config.Schedule),
		zap.Int("batch_size", w.config.BatchSize))
	return nil
}

// Stop waits for a running sweep to finish
func (w *ReconcileWorker) Stop() error {
	w.mu.Lock()
	scheduler := w.scheduler
	cancel := w.cancel
	w.scheduler = nil
	w.mu.Unlock()

	if scheduler == nil {
		return nil
	}

	<-scheduler.Stop().Done()
	if cancel != nil {
		cancel()
	}

	w.logger.Info("ReconcileWorker stopped",
		zap.Int64("runs", w.runs.Load()),
		zap.Int64("routed", w.routed.Load()))
	return nil
}

// Name returns the worker name for identification
func (w *ReconcileWorker) Name() string {
	return "ReconcileWorker"
}

func (w *ReconcileWorker) tick() {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	_, _ = w.RunOnce(ctx)
}

// RunOnce performs one sweep. Overlapping sweeps are skipped.
func (w *ReconcileWorker) RunOnce(ctx context.Context) (int, error) {
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Debug("Reconcile sweep already running, skipping")
		return 0, nil
	}
	defer w.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	start := time.Now()
	n, err := w.reconciler.Reconcile(ctx, w.config.BatchSize)
	w.runs.Add(1)
	w.routed.Add(int64(n))
	if err != nil {
		w.lastError.Store(err.Error())
		w.logger.Error("Reconcile sweep failed",
			zap.Int("routed", n),
			zap.Error(err))
		return n, err
	}

	if n > 0 {
		w.logger.Info("Reconcile sweep routed requests",
			zap.Int("routed", n),
			zap.Duration("elapsed", time.Since(start)))
	}
	return n, nil
}

// Stats returns the number of sweeps, routed requests and the last error message
func (w *ReconcileWorker) Stats() (runs, routed int64, lastError string) {
	if v, ok := w.lastError.Load().(string); ok {
		lastError = v
	}
	return w.runs.Load(), w.routed.Load(), lastError
}
