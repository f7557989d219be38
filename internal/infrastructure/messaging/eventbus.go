// Package messaging delivers domain events to their handlers once the
// producing transaction has committed. Delivery is in-process: the state an
// event describes is already durable, so a lost notification never loses
// progress.
package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/pkg/logger"
	"github.com/recoverly/progress-hub/pkg/retry"
)

// ErrEventBusClosed is returned by Subscribe after Close.
var ErrEventBusClosed = errors.New("event bus is closed")

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// Bus is an in-memory EventBus with a bounded worker pool.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]registration
	middlewares []Middleware
	closed      bool

	async      bool
	workerPool chan struct{}
	timeout    time.Duration
	retrier    *retry.Retrier

	logger  *logger.Logger
	metrics *Metrics
	dlq     *DeadLetterQueue

	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type registration struct {
	name    string
	handler shared.EventHandler
}

var _ shared.EventBus = (*Bus)(nil)

// BusConfig contains configuration for Bus.
type BusConfig struct {
	// Async runs handlers on the worker pool. Sync mode runs them inline,
	// which tests use to observe side effects right after Publish.
	Async bool

	// Workers is the number of handlers that may run at once.
	Workers int

	// HandlerTimeout bounds one handler attempt.
	HandlerTimeout time.Duration

	// Retrier retries failed handlers. Nil means a single attempt.
	Retrier *retry.Retrier

	// DeadLetterSize caps the dead letter queue. 0 disables it.
	DeadLetterSize int

	Logger *logger.Logger
}

// DefaultBusConfig returns sensible defaults.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		Async:          true,
		Workers:        10,
		HandlerTimeout: 10 * time.Second,
		Retrier: retry.New(
			retry.WithMaxAttempts(3),
			retry.WithInitialDelay(100*time.Millisecond),
			retry.WithMaxDelay(2*time.Second),
			retry.WithRetryIf(func(err error) bool { return shared.KindOf(err) == shared.KindInternal }),
		),
		DeadLetterSize: 1000,
	}
}

// NewBus creates a new in-memory event bus with the recovery, logging,
// metrics and timeout middleware installed.
func NewBus(cfg BusConfig) *Bus {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 10 * time.Second
	}

	log := cfg.Logger.With(logger.Component("event_bus"))
	b := &Bus{
		handlers:   make(map[shared.EventType][]registration),
		async:      cfg.Async,
		workerPool: make(chan struct{}, cfg.Workers),
		timeout:    cfg.HandlerTimeout,
		retrier:    cfg.Retrier,
		logger:     log,
		metrics:    NewMetrics(),
		closeCh:    make(chan struct{}),
	}
	if cfg.DeadLetterSize > 0 {
		b.dlq = NewDeadLetterQueue(cfg.DeadLetterSize)
	}

	b.middlewares = []Middleware{
		RecoveryMiddleware(log),
		LoggingMiddleware(log),
		MetricsMiddleware(b.metrics),
		TimeoutMiddleware(b.timeout),
	}
	return b
}

// Use appends a middleware. Middlewares run in the order they were added.
func (b *Bus) Use(mw Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middlewares = append(b.middlewares, mw)
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.SubscribeNamed(eventType, string(eventType), handler)
}

// SubscribeNamed registers a handler under a name used in logs and the
// dead letter queue.
func (b *Bus) SubscribeNamed(eventType shared.EventType, name string, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], registration{name: name, handler: handler})
	b.logger.Debug("subscribed handler",
		logger.String("event_type", string(eventType)),
		logger.String("handler", name),
	)
	return nil
}

// Publish hands events to their handlers. Handlers run detached from the
// caller's cancellation: the request that produced the event may already
// have returned. Events published after Close are dropped.
func (b *Bus) Publish(ctx context.Context, events ...shared.Event) {
	if len(events) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		b.logger.Warn("event bus closed, dropping events", logger.Int("count", len(events)))
		return
	}
	middlewares := b.middlewares
	type job struct {
		event shared.Event
		reg   registration
	}
	var jobs []job
	for _, e := range events {
		if e == nil {
			continue
		}
		b.metrics.RecordPublish(e.EventType())
		for _, reg := range b.handlers[e.EventType()] {
			jobs = append(jobs, job{event: e, reg: reg})
		}
	}
	if b.async {
		b.wg.Add(len(jobs))
	}
	b.mu.RUnlock()

	for _, j := range jobs {
		handler := chain(j.reg.handler, middlewares)
		if !b.async {
			b.execute(ctx, j.event, j.reg.name, handler)
			continue
		}
		go func(event shared.Event, name string) {
			defer b.wg.Done()
			select {
			case b.workerPool <- struct{}{}:
				defer func() { <-b.workerPool }()
			case <-b.closeCh:
				b.logger.Warn("event bus closing, handler skipped",
					logger.String("event_type", string(event.EventType())),
					logger.String("handler", name),
				)
				return
			}
			b.execute(ctx, event, name, handler)
		}(j.event, j.reg.name)
	}
}

func (b *Bus) execute(ctx context.Context, event shared.Event, name string, handler shared.EventHandler) {
	start := time.Now()
	attempts := 0
	run := func(ctx context.Context) error {
		attempts++
		return handler(ctx, event)
	}

	var err error
	if b.retrier != nil {
		err = b.retrier.Do(ctx, run)
	} else {
		err = run(ctx)
	}
	b.metrics.RecordExecution(event.EventType(), time.Since(start), err == nil, attempts)

	if err == nil {
		return
	}
	if b.dlq != nil {
		b.dlq.Add(DeadLetterEntry{
			Event:       event,
			HandlerName: name,
			Error:       err,
			Attempts:    attempts,
			FailedAt:    time.Now(),
		})
	}
}

// Close stops accepting events and waits for running handlers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	b.stopWorkers()

	b.logger.Info("event bus closed")
	return nil
}

// Shutdown closes the bus and gives up waiting when ctx ends. Handlers
// still queued at that point are skipped.
func (b *Bus) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = b.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		b.stopWorkers()
		return ctx.Err()
	}
}

func (b *Bus) stopWorkers() {
	b.closeOnce.Do(func() { close(b.closeCh) })
}

// Metrics returns the bus metrics.
func (b *Bus) Metrics() *Metrics {
	return b.metrics
}

// DeadLetters returns the dead letter queue, nil when disabled.
func (b *Bus) DeadLetters() *DeadLetterQueue {
	return b.dlq
}
