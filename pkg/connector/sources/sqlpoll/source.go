// Package sqlpoll implements the incremental SQL polling source: every cycle
// reads the database clock, bounds a query window starting at the cursor,
// runs the configured query for that window and advances the cursor when rows
// come back. Database failures never escape a cycle; they reset the session
// and the cycle yields an empty batch.
package sqlpoll

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
	"github.com/ajitpratap0/sqlpoller/pkg/logger"
	"github.com/ajitpratap0/sqlpoller/pkg/metrics"
	"github.com/ajitpratap0/sqlpoller/pkg/observability"
)

// Session is what the extraction loop needs from a database session.
// ConnectionManager is the production implementation.
type Session interface {
	Open(ctx context.Context) error
	Close() error
	IsHealthy() bool
	Invalidate()
	Reset(ctx context.Context) (ResetAction, error)
	Now(ctx context.Context) (int64, error)
	Execute(ctx context.Context, query string, fetchSize int) (*ResultSet, error)
}

// State is a step of the extraction cycle
type State int

const (
	StateIdle State = iota
	StateFetchingTime
	StateQuerying
	StateSuccess
	StateEmpty
	StateFailed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingTime:
		return "fetching_time"
	case StateQuerying:
		return "querying"
	case StateSuccess:
		return "success"
	case StateEmpty:
		return "empty"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SourceOption configures a Source
type SourceOption func(*Source)

// WithSession replaces the connection manager built from the configuration
func WithSession(session Session) SourceOption {
	return func(s *Source) {
		s.session = session
	}
}

// WithSourceLogger sets the logger of the source
func WithSourceLogger(l *zap.Logger) SourceOption {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// Source is the extraction loop of one polling source. Cycles must be
// serialized by the caller; Healthy is the only method safe to call from
// other goroutines.
type Source struct {
	name      string
	template  string
	fetchSize int

	session Session
	window  WindowCalculator
	cursor  *CursorStore
	attempt int64

	state       State
	lastOutcome State
	cycles      uint64

	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewSource creates a source from a configuration. The session is not opened
// until Establish.
func NewSource(cfg *config.Config, opts ...SourceOption) (*Source, error) {
	if cfg == nil {
		return nil, errors.Configuration("configuration is required")
	}

	start, err := ParseCursor(cfg.Window.StartCursor)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid window.start_cursor")
	}

	s := &Source{
		name:      cfg.Name,
		template:  cfg.Query.Template,
		fetchSize: cfg.Performance.FetchSize,
		window:    NewWindowCalculator(cfg.Window.StepSeconds, cfg.Window.SafetyMarginSeconds),
		cursor:    NewCursorStore(start),
		attempt:   1,
		metrics:   metrics.NewCollector(cfg.Name),
		logger:    logger.Get().With(zap.String("component", "sqlpoll_source")),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("source", cfg.Name))

	if s.session == nil {
		cm, err := NewConnectionManager(cfg.Connection,
			WithLogger(s.logger),
			WithNowQuery(cfg.Query.NowQuery),
			WithQueryTimeout(cfg.Performance.QueryTimeout))
		if err != nil {
			return nil, err
		}
		s.session = cm
	}

	s.metrics.SetCursor(int64(start), 0)
	s.metrics.SetAttempt(s.attempt)
	return s, nil
}

// Name returns the source name
func (s *Source) Name() string {
	return s.name
}

// Establish checks the query template and opens the database session.
// A missing template is a configuration error; a failed open is a
// connection error that may be retried.
func (s *Source) Establish(ctx context.Context) error {
	q := config.QueryConfig{Template: s.template}
	if err := q.Validate(); err != nil {
		return err
	}
	if err := s.session.Open(ctx); err != nil {
		return err
	}
	s.logger.Info("source established",
		zap.String("cursor", s.cursor.Get().String()),
		zap.Int64("step_seconds", s.window.StepSeconds),
		zap.Int64("safety_margin_seconds", s.window.SafetyMarginSeconds),
		zap.Int("fetch_size", s.fetchSize))
	return nil
}

// Close closes the database session
func (s *Source) Close() error {
	return s.session.Close()
}

// Cursor returns the string encoded cursor for checkpointing
func (s *Source) Cursor() string {
	return s.cursor.Get().String()
}

// CursorValue returns the current cursor
func (s *Source) CursorValue() Cursor {
	return s.cursor.Get()
}

// RestoreCursor sets the cursor from a checkpoint. It is rejected once a
// cycle has run.
func (s *Source) RestoreCursor(cursor string) error {
	if s.cycles > 0 {
		return errors.New(errors.ErrorTypeValidation, "cursor can only be restored before the first cycle")
	}
	c, err := ParseCursor(cursor)
	if err != nil {
		return err
	}
	s.cursor.Set(c)
	s.metrics.SetCursor(int64(c), 0)
	s.logger.Info("cursor restored", zap.String("cursor", c.String()))
	return nil
}

// Attempt returns the attempt counter
func (s *Source) Attempt() int64 {
	return s.attempt
}

// LastOutcome returns the terminal state of the latest cycle. A cycle skipped
// for an unhealthy session reports StateIdle.
func (s *Source) LastOutcome() State {
	return s.lastOutcome
}

// Healthy reports the session health flag
func (s *Source) Healthy() bool {
	return s.session.IsHealthy()
}

// Poll runs one extraction cycle. It never returns nil and never fails;
// errors are logged, the session is reset and the batch is empty.
func (s *Source) Poll(ctx context.Context) *core.RowBatch {
	s.cycles++
	ctx = context.WithValue(ctx, logger.SourceKey, s.name)
	ctx = context.WithValue(ctx, logger.CycleKey, s.cycles)
	log := s.logger.With(zap.Uint64("cycle", s.cycles))

	ctx, span := observability.NewSpan(ctx, "sqlpoll.poll")
	defer span.End()

	lower := s.cursor.Get()
	span.SetAttribute("source", s.name)
	span.SetAttribute("cursor", int64(lower))
	span.SetAttribute("attempt", s.attempt)

	batch := &core.RowBatch{
		Source:      s.name,
		Window:      Window{Lower: int64(lower), Upper: int64(lower)},
		ExtractedAt: time.Now(),
	}

	if !s.session.IsHealthy() {
		log.Warn("database session unhealthy, skipping cycle")
		s.reset(ctx, log, span)
		s.finish(span, StateIdle, "skipped", 0)
		return batch
	}

	if strings.TrimSpace(s.template) == "" {
		log.Error("no extraction query configured")
		s.session.Invalidate()
		s.reset(ctx, log, span)
		s.finish(span, StateFailed, "misconfigured", 0)
		return batch
	}

	s.state = StateFetchingTime
	start := time.Now()
	now, err := s.session.Now(ctx)
	s.metrics.ObserveQuery("now", time.Since(start))
	if err != nil {
		s.fail(ctx, log, span, err)
		return batch
	}

	window, final := s.window.Next(lower, now, s.attempt)
	batch.Window = window
	span.SetAttribute("upper_bound", window.Upper)
	span.SetAttribute("final", final)

	s.state = StateQuerying
	var rs *ResultSet
	if window.Empty() {
		rs = &ResultSet{}
	} else {
		query := BuildQuery(s.template, window)
		start = time.Now()
		rs, err = s.session.Execute(ctx, query, s.fetchSize)
		s.metrics.ObserveQuery("extract", time.Since(start))
		if err != nil {
			s.fail(ctx, log, span, err)
			return batch
		}
	}

	if len(rs.Rows) == 0 {
		if !final {
			s.attempt++
		}
		log.Debug("no rows in window",
			zap.Int64("cursor", window.Lower),
			zap.Int64("upper_bound", window.Upper),
			zap.Bool("final", final),
			zap.Int64("attempt", s.attempt))
		s.metrics.SetCursor(int64(lower), now)
		s.finish(span, StateEmpty, StateEmpty.String(), 0)
		return batch
	}

	if err := s.cursor.Advance(Cursor(window.Upper)); err != nil {
		s.fail(ctx, log, span, err)
		return batch
	}
	s.attempt = 1

	batch.Columns = rs.Columns
	batch.Rows = rs.Rows

	log.Info("rows extracted",
		zap.Int64("cursor", window.Lower),
		zap.Int64("upper_bound", window.Upper),
		zap.Int("rows", len(rs.Rows)))
	s.metrics.RowsExtracted(len(rs.Rows))
	s.metrics.SetCursor(window.Upper, now)
	s.finish(span, StateSuccess, StateSuccess.String(), len(rs.Rows))
	return batch
}

func (s *Source) fail(ctx context.Context, log *zap.Logger, span *observability.Span, err error) {
	// a failed cycle always tears the session down, whatever stage failed
	s.session.Invalidate()
	log.Warn("extraction cycle failed",
		zap.String("stage", s.state.String()),
		zap.String("cursor", s.cursor.Get().String()),
		zap.Int64("attempt", s.attempt),
		zap.Error(err))
	span.RecordError(err)
	s.reset(ctx, log, span)
	s.finish(span, StateFailed, StateFailed.String(), 0)
}

func (s *Source) reset(ctx context.Context, log *zap.Logger, span *observability.Span) {
	action, err := s.session.Reset(ctx)
	s.metrics.ConnectionReset(action.String())
	span.AddEvent("connection_reset", attribute.String("action", action.String()))
	if err != nil {
		log.Warn("connection reset failed", zap.String("action", action.String()), zap.Error(err))
		return
	}
	log.Info("connection reset", zap.String("action", action.String()))
}

func (s *Source) finish(span *observability.Span, outcome State, label string, rows int) {
	s.state = StateIdle
	s.lastOutcome = outcome
	s.metrics.CycleCompleted(label)
	s.metrics.SetAttempt(s.attempt)
	span.SetAttribute("outcome", label)
	span.SetAttribute("rows", rows)
}

// BuildQuery substitutes the window bounds into a query template: the cursor
// placeholder becomes the lower bound and the upper bound placeholder the
// upper bound, both as integer literals.
func BuildQuery(template string, w Window) string {
	return strings.NewReplacer(
		config.CursorPlaceholder, Cursor(w.Lower).String(),
		config.UpperBoundPlaceholder, Cursor(w.Upper).String(),
	).Replace(template)
}
