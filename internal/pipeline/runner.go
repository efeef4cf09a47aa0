// Package pipeline drives a polling source on a fixed interval and hands
// every non-empty batch to a sink.
//
// The execution flow of a cycle:
//  1. Source.Poll reads one bounded window (never fails)
//  2. the sink receives the batch, retried with the reliability policy
//  3. the cursor is checkpointed once the sink accepted the batch
//
// A sink that keeps failing stops the runner. The cursor of the failed batch
// was never checkpointed, so a restart reads that window again: delivery is
// at-least-once.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sqlpoller/pkg/checkpoint"
	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/base"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
	"github.com/ajitpratap0/sqlpoller/pkg/logger"
	"github.com/ajitpratap0/sqlpoller/pkg/metrics"
)

// closeTimeout bounds sink shutdown once the run context is gone.
const closeTimeout = 30 * time.Second

// Runner serializes the cycles of one source.
type Runner struct {
	source     core.Source
	sink       core.Sink
	store      checkpoint.Store
	interval   time.Duration
	retry      *base.RetryPolicy
	health     *base.HealthChecker
	throughput *metrics.ThroughputTracker
	sampler    *metrics.ProcessSampler
	logger     *zap.Logger

	started   bool
	closeOnce sync.Once
	lastSaved string

	cycles           int64
	batchesDelivered int64
	rowsDelivered    int64
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRetryPolicy replaces the policy built from the reliability section.
func WithRetryPolicy(rp *base.RetryPolicy) Option {
	return func(r *Runner) {
		if rp != nil {
			r.retry = rp
		}
	}
}

// WithInterval overrides schedule.poll_interval.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// NewRunner wires a source, a sink and a checkpoint store together.
func NewRunner(cfg *config.Config, source core.Source, sink core.Sink, store checkpoint.Store, opts ...Option) *Runner {
	r := &Runner{
		source:     source,
		sink:       sink,
		store:      store,
		interval:   cfg.Schedule.PollInterval,
		retry:      base.RetryPolicyFromConfig(cfg.Reliability),
		health:     base.NewHealthChecker(source.Name(), cfg.Observability.HealthInterval),
		throughput: metrics.NewThroughputTracker(source.Name(), sink.Name()),
		logger:     logger.Get().With(zap.String("component", "runner")),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.interval <= 0 {
		r.interval = 10 * time.Second
	}
	r.logger = r.logger.With(zap.String("source", source.Name()), zap.String("sink", sink.Name()))
	r.health.SetLogger(r.logger)
	if sampler, err := metrics.NewProcessSampler(); err == nil {
		r.sampler = sampler
	}
	r.health.SetCheckFunc(r.check)

	rp := *r.retry
	rp.OnRetry = func(attempt int, err error, delay time.Duration) {
		r.logger.Warn("retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	r.retry = &rp
	return r
}

// check backs the health checker: the source session must be healthy.
// Process usage is attached to the status as a side effect.
func (r *Runner) check(context.Context) error {
	if r.sampler != nil {
		if usage, err := r.sampler.Sample(); err == nil {
			r.health.UpdateStatus(map[string]interface{}{
				"rss_bytes":   usage.RSSBytes,
				"cpu_percent": usage.CPUPercent,
			})
		}
	}
	if !r.source.Healthy() {
		return errors.New(errors.ErrorTypeConnection, "database session unhealthy")
	}
	return nil
}

// Start restores the checkpointed cursor and establishes the source.
// Configuration errors return at once. Other establish failures are retried
// and, once the attempts are used up, left to the polling loop: a cycle that
// finds the session unhealthy reopens it.
func (r *Runner) Start(ctx context.Context) error {
	if r.started {
		return nil
	}

	cursor, found, err := r.store.Load(ctx, r.source.Name())
	if err != nil {
		return errors.Wrap(err, errors.GetType(err), "failed to load checkpoint")
	}
	if found {
		if err := r.source.RestoreCursor(cursor); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid checkpoint").WithDetail("cursor", cursor)
		}
		r.lastSaved = cursor
	}

	if err := r.retry.ExecuteRetryable(ctx, func() error { return r.source.Establish(ctx) }); err != nil {
		if errors.IsConfiguration(err) || ctx.Err() != nil {
			return err
		}
		r.logger.Warn("source not established, polling will retry", zap.Error(err))
	}

	r.started = true
	r.health.Start(ctx)
	r.logger.Info("runner started",
		zap.String("cursor", r.source.Cursor()),
		zap.Bool("restored", found),
		zap.Duration("interval", r.interval))
	return nil
}

// RunOnce runs one cycle. The returned error is fatal: the sink did not
// accept a batch after retries.
func (r *Runner) RunOnce(ctx context.Context) error {
	atomic.AddInt64(&r.cycles, 1)

	batch := r.source.Poll(ctx)
	if batch.Empty() {
		return nil
	}

	err := r.retry.ExecuteRetryable(ctx, func() error { return r.sink.Write(ctx, batch) })
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "sink did not accept batch").
			WithDetail("window", batch.Window.String()).
			WithDetail("rows", batch.Len())
	}
	atomic.AddInt64(&r.batchesDelivered, 1)
	atomic.AddInt64(&r.rowsDelivered, int64(batch.Len()))
	r.throughput.Increment(int64(batch.Len()))

	cursor := r.source.Cursor()
	if err := r.store.Save(ctx, r.source.Name(), cursor); err != nil {
		// the next successful cycle saves a newer cursor
		r.logger.Error("failed to save checkpoint", zap.String("cursor", cursor), zap.Error(err))
		return nil
	}
	r.lastSaved = cursor
	r.health.UpdateStatus(map[string]interface{}{"cursor": cursor})
	return nil
}

// Run starts the runner and polls every interval until ctx is cancelled or a
// cycle fails. The source, sink and store are closed on return.
func (r *Runner) Run(ctx context.Context) error {
	defer r.Close()

	if err := r.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("stopping after sink failure",
				zap.String("checkpoint", r.lastSaved),
				zap.Error(err))
			return err
		}

		select {
		case <-ctx.Done():
			r.logger.Info("runner stopped",
				zap.Int64("cycles", atomic.LoadInt64(&r.cycles)),
				zap.Int64("rows_delivered", atomic.LoadInt64(&r.rowsDelivered)),
				zap.Float64("rows_per_second", r.throughput.GetAndReset()))
			return nil
		case <-ticker.C:
		}
	}
}

// Close stops the health checker and releases the source, sink and store.
func (r *Runner) Close() {
	r.closeOnce.Do(func() {
		r.health.Stop()

		if err := r.source.Close(); err != nil {
			r.logger.Warn("failed to close source", zap.Error(err))
		}

		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := r.sink.Close(ctx); err != nil {
			r.logger.Warn("failed to close sink", zap.Error(err))
		}

		if err := r.store.Close(); err != nil {
			r.logger.Warn("failed to close checkpoint store", zap.Error(err))
		}
	})
}

// Health returns the health checker status. It is safe to call from other
// goroutines.
func (r *Runner) Health() core.HealthStatus {
	return r.health.GetStatus()
}

// Healthy reports whether the runner should be considered serving.
func (r *Runner) Healthy() bool {
	return r.health.IsHealthy()
}

// Stats returns the cycles run, batches delivered and rows delivered.
func (r *Runner) Stats() (cycles, batches, rows int64) {
	return atomic.LoadInt64(&r.cycles), atomic.LoadInt64(&r.batchesDelivered), atomic.LoadInt64(&r.rowsDelivered)
}
