// Package workerpool runs fire-and-forget tasks on a fixed set of goroutines
// fed by a bounded queue.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Saltoleto/consulta-produtos/pkg/workerpool"

var (
	// ErrPoolClosed is returned by Submit after Shutdown has been called.
	ErrPoolClosed = errors.New("workerpool: pool closed")
	// ErrQueueFull is returned by Submit under the reject policy when the queue has no room.
	ErrQueueFull = errors.New("workerpool: queue full")
	// ErrSubmitTimeout is returned by Submit under the block policy when no slot frees up in time.
	ErrSubmitTimeout = errors.New("workerpool: submit timed out")
)

// OverflowPolicy decides what Submit does when the queue is full.
type OverflowPolicy string

const (
	PolicyBlock  OverflowPolicy = "block"
	PolicyReject OverflowPolicy = "reject"
)

// ParsePolicy maps a configuration string onto an OverflowPolicy.
func ParsePolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(s) {
	case PolicyBlock, "":
		return PolicyBlock, nil
	case PolicyReject:
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("workerpool: unknown overflow policy %q", s)
	}
}

// Task is a unit of work. The context carries the submitter's values but not
// its cancellation; it is cancelled only when a shutdown deadline expires.
type Task func(ctx context.Context) error

// Config holds the pool settings.
type Config struct {
	Name          string
	Workers       int
	QueueSize     int
	Policy        OverflowPolicy
	SubmitTimeout time.Duration
	TaskTimeout   time.Duration
}

type job struct {
	ctx  context.Context
	name string
	fn   Task
}

type instruments struct {
	tasks    metric.Int64Counter
	dropped  metric.Int64Counter
	duration metric.Float64Histogram
}

// Pool is a fixed-size worker pool. It must be created with New and released
// with Shutdown.
type Pool struct {
	cfg    Config
	jobs   chan job
	logger *slog.Logger
	tracer trace.Tracer
	inst   instruments
	attrs  metric.MeasurementOption

	mu     sync.RWMutex
	closed bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New starts cfg.Workers goroutines consuming a queue of cfg.QueueSize slots.
func New(cfg Config, logger *slog.Logger) (*Pool, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("workerpool: workers must be positive, got %d", cfg.Workers)
	}
	if cfg.QueueSize < 0 {
		return nil, fmt.Errorf("workerpool: queue size must not be negative, got %d", cfg.QueueSize)
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyBlock
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}

	meter := otel.Meter(instrumentationName)
	inst, err := newInstruments(meter)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:    cfg,
		jobs:   make(chan job, cfg.QueueSize),
		logger: logger.With("component", "workerpool", "pool", cfg.Name),
		tracer: otel.Tracer(instrumentationName),
		inst:   inst,
		attrs:  metric.WithAttributes(attribute.String("pool", cfg.Name)),
		ctx:    ctx,
		cancel: cancel,
	}

	_, err = meter.Int64ObservableGauge("workerpool.queue.depth",
		metric.WithDescription("Tasks waiting in the queue"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(len(p.jobs)), metric.WithAttributes(attribute.String("pool", cfg.Name)))
			return nil
		}),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("workerpool: register queue gauge: %w", err)
	}

	for i := 1; i <= cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started", "workers", cfg.Workers, "queue_size", cfg.QueueSize, "policy", string(cfg.Policy))
	return p, nil
}

func newInstruments(meter metric.Meter) (instruments, error) {
	var (
		inst instruments
		err  error
	)
	inst.tasks, err = meter.Int64Counter("workerpool.tasks",
		metric.WithDescription("Tasks executed, by status"))
	if err != nil {
		return inst, fmt.Errorf("workerpool: create task counter: %w", err)
	}
	inst.dropped, err = meter.Int64Counter("workerpool.tasks.dropped",
		metric.WithDescription("Tasks not accepted by the queue, by reason"))
	if err != nil {
		return inst, fmt.Errorf("workerpool: create dropped counter: %w", err)
	}
	inst.duration, err = meter.Float64Histogram("workerpool.task.duration",
		metric.WithDescription("Task execution duration in seconds"), metric.WithUnit("s"))
	if err != nil {
		return inst, fmt.Errorf("workerpool: create duration histogram: %w", err)
	}
	return inst, nil
}

// Submit queues fn for execution. Under PolicyBlock it waits for a free slot
// until SubmitTimeout (zero waits indefinitely) or ctx is done; under
// PolicyReject it fails immediately with ErrQueueFull. A task is accepted
// whenever a slot is free, even if ctx is already done.
func (p *Pool) Submit(ctx context.Context, name string, fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.drop(ctx, "closed")
		return ErrPoolClosed
	}

	j := job{ctx: context.WithoutCancel(ctx), name: name, fn: fn}

	// A free slot always wins over an expired caller context.
	select {
	case p.jobs <- j:
		return nil
	default:
	}

	if p.cfg.Policy == PolicyReject {
		p.drop(ctx, "queue_full")
		return ErrQueueFull
	}

	var timeout <-chan time.Time
	if p.cfg.SubmitTimeout > 0 {
		timer := time.NewTimer(p.cfg.SubmitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case p.jobs <- j:
		return nil
	case <-timeout:
		p.drop(ctx, "submit_timeout")
		return ErrSubmitTimeout
	case <-ctx.Done():
		p.drop(ctx, "cancelled")
		return ctx.Err()
	}
}

func (p *Pool) drop(ctx context.Context, reason string) {
	p.inst.dropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pool", p.cfg.Name),
		attribute.String("reason", reason),
	))
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(id, j)
	}
}

func (p *Pool) run(workerID int, j job) {
	ctx, cancel := context.WithCancel(j.ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	if p.cfg.TaskTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, p.cfg.TaskTimeout)
		defer cancelTimeout()
	}

	ctx, span := p.tracer.Start(ctx, "workerpool.task",
		trace.WithAttributes(
			attribute.String("pool", p.cfg.Name),
			attribute.Int("worker.id", workerID),
			attribute.String("task.name", j.name),
		),
	)
	defer span.End()

	start := time.Now()
	err := p.execute(ctx, j.fn)
	p.inst.duration.Record(ctx, time.Since(start).Seconds(), p.attrs)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.inst.tasks.Add(ctx, 1, metric.WithAttributes(
			attribute.String("pool", p.cfg.Name),
			attribute.String("status", "error"),
		))
		p.logger.ErrorContext(ctx, "task failed", "task", j.name, "worker", workerID, "error", err)
		return
	}
	p.inst.tasks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pool", p.cfg.Name),
		attribute.String("status", "success"),
	))
}

func (p *Pool) execute(ctx context.Context, fn Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workerpool: task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Shutdown stops accepting tasks and waits for the queue to drain. If ctx
// expires first, running tasks are cancelled and ctx.Err() is returned.
// Calling Shutdown more than once is safe.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.logger.Info("worker pool draining", "pending", len(p.jobs))

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		p.logger.Warn("worker pool shutdown deadline exceeded, tasks cancelled")
		return ctx.Err()
	}
}

// Pending returns the number of queued tasks not yet picked up by a worker.
func (p *Pool) Pending() int {
	return len(p.jobs)
}
