package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-svc/middleware"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("sync queue is full")
	ErrQueueClosed = errors.New("sync queue is closed")
)

// Task is one outbound synchronisation request.
type Task struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

func NewTask(kind, key string, payload any) (Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	return Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		Key:        key,
		Payload:    data,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

type Queue interface {
	Enqueue(ctx context.Context, task Task) error
}

type Handler func(ctx context.Context, task Task) error

// Backoff returns the wait before retry number attempt (1-based).
type Backoff func(attempt int) time.Duration

func LinearBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * base
	}
}

// Process runs handler up to maxRetries times, sleeping between attempts.
// It gives up early when ctx is cancelled.
func Process(ctx context.Context, task Task, handler Handler, maxRetries int, backoff Backoff, logger *zap.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := handler(ctx, task)
		if err == nil {
			middleware.RecordSyncTask(task.Kind, "ok")
			return nil
		}
		lastErr = err
		if attempt < maxRetries {
			wait := backoff(attempt)
			logger.Warn("Retrying sync task",
				zap.String("task_id", task.ID),
				zap.String("kind", task.Kind),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				middleware.RecordSyncTask(task.Kind, "failed")
				return fmt.Errorf("sync task %s cancelled after %d attempts: %w", task.ID, attempt, ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	middleware.RecordSyncTask(task.Kind, "failed")
	return fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

type Worker struct {
	tasks      chan Task
	handler    Handler
	logger     *zap.Logger
	workers    int
	maxRetries int
	backoff    Backoff

	mu     sync.RWMutex
	closed bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type WorkerConfig struct {
	Workers    int
	Buffer     int
	MaxRetries int
	Backoff    Backoff
}

func NewWorker(handler Handler, cfg WorkerConfig, logger *zap.Logger) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = LinearBackoff(time.Second)
	}
	return &Worker{
		tasks:      make(chan Task, cfg.Buffer),
		handler:    handler,
		logger:     logger,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

// Enqueue never blocks; a saturated buffer yields ErrQueueFull.
func (w *Worker) Enqueue(_ context.Context, task Task) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrQueueClosed
	}
	select {
	case w.tasks <- task:
		return nil
	default:
		middleware.RecordSyncTask(task.Kind, "dropped")
		return ErrQueueFull
	}
}

func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
	w.logger.Info("Sync worker started", zap.Int("workers", w.workers))
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for task := range w.tasks {
		if err := Process(ctx, task, w.handler, w.maxRetries, w.backoff, w.logger); err != nil {
			w.logger.Error("Sync task failed permanently",
				zap.String("task_id", task.ID),
				zap.String("kind", task.Kind),
				zap.String("key", task.Key),
				zap.Error(err),
			)
		}
	}
}

// Stop refuses new tasks, drains the buffer and waits for the workers. When
// ctx expires first, in-flight retries are cancelled.
func (w *Worker) Stop(ctx context.Context) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.tasks)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if w.cancel != nil {
			w.cancel()
		}
		<-done
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.logger.Info("Sync worker stopped")
}
