package sqlpoll

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
	"github.com/ajitpratap0/sqlpoller/pkg/logger"
)

const (
	serverCursorName = "sqlpoll_cursor"
	// maxPrealloc caps the row slice capacity derived from the fetch size
	maxPrealloc = 1 << 14
)

// ResetAction is the branch taken by ConnectionManager.Reset
type ResetAction int

const (
	// ResetNone means the session was open and healthy; nothing was done
	ResetNone ResetAction = iota
	// ResetClose means an open but broken session was torn down
	ResetClose
	// ResetReopen means a closed session was established again
	ResetReopen
)

// String returns the action name used in logs and metric labels
func (a ResetAction) String() string {
	switch a {
	case ResetClose:
		return "close"
	case ResetReopen:
		return "reopen"
	default:
		return "none"
	}
}

// ResultSet is a fully materialized query result
type ResultSet struct {
	Columns []string
	Rows    []core.Row
}

// ConnectionOption configures a ConnectionManager
type ConnectionOption func(*ConnectionManager)

// WithLogger sets the logger of the connection manager
func WithLogger(l *zap.Logger) ConnectionOption {
	return func(m *ConnectionManager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithNowQuery overrides the dialect's server time query
func WithNowQuery(query string) ConnectionOption {
	return func(m *ConnectionManager) {
		if strings.TrimSpace(query) != "" {
			m.nowQuery = query
		}
	}
}

// WithQueryTimeout bounds Now and Execute; zero disables the bound
func WithQueryTimeout(d time.Duration) ConnectionOption {
	return func(m *ConnectionManager) {
		m.queryTimeout = d
	}
}

// ConnectionManager owns the database session of one source. At most one
// session is live at a time and it is never shared with other managers.
type ConnectionManager struct {
	cfg          config.ConnectionConfig
	dialect      Dialect
	nowQuery     string
	queryTimeout time.Duration
	logger       *zap.Logger

	mu sync.Mutex
	db *sql.DB
	// suspect is set when a failure was observed on the open session
	suspect bool
}

// NewConnectionManager creates a closed manager for the configured driver
func NewConnectionManager(cfg config.ConnectionConfig, opts ...ConnectionOption) (*ConnectionManager, error) {
	dialect, err := LookupDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	m := &ConnectionManager{
		cfg:      cfg,
		dialect:  dialect,
		nowQuery: dialect.NowQuery,
		logger:   logger.Get().With(zap.String("component", "connection_manager")),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("driver", dialect.Name))
	return m, nil
}

// Dialect returns the resolved dialect
func (m *ConnectionManager) Dialect() Dialect {
	return m.dialect
}

// Open establishes the session. Opening an open manager is a no-op.
func (m *ConnectionManager) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return nil
	}
	return m.openLocked(ctx)
}

func (m *ConnectionManager) openLocked(ctx context.Context) error {
	db, err := m.dialect.open(m.cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to open database session").
			WithDetail("driver", m.dialect.Name)
	}

	if m.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(m.cfg.MaxOpenConns)
		db.SetMaxIdleConns(m.cfg.MaxOpenConns)
	}
	if m.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(m.cfg.ConnMaxLifetime)
	}

	pingCtx := ctx
	if m.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, m.cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to ping database").
			WithDetail("driver", m.dialect.Name)
	}

	m.db = db
	m.suspect = false
	m.logger.Info("database session opened",
		zap.Bool("read_only", m.cfg.ReadOnly),
		zap.Int("max_open_conns", m.cfg.MaxOpenConns))
	return nil
}

// Close releases the session and its pool. Closing a closed manager is a no-op.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *ConnectionManager) closeLocked() error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	m.suspect = false
	m.logger.Info("database session closed")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close database session")
	}
	return nil
}

// IsHealthy reports the local health flag: the session is open and no failure
// has been observed on it. No I/O is performed.
func (m *ConnectionManager) IsHealthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db != nil && !m.suspect
}

// IsOpen reports whether a session exists, healthy or not
func (m *ConnectionManager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db != nil
}

// Invalidate flags an open session as broken so the next Reset tears it down
func (m *ConnectionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		m.suspect = true
	}
}

// Reset is the recovery primitive. An open session that observed a failure is
// closed and its pool dropped. A closed session is established again. A
// healthy open session is left alone.
func (m *ConnectionManager) Reset(ctx context.Context) (ResetAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.db != nil && m.suspect:
		m.logger.Warn("closing broken database session")
		return ResetClose, m.closeLocked()
	case m.db == nil:
		m.logger.Info("re-establishing database session")
		return ResetReopen, m.openLocked(ctx)
	default:
		return ResetNone, nil
	}
}

// Now returns the database server time in seconds since epoch
func (m *ConnectionManager) Now(ctx context.Context) (int64, error) {
	db, err := m.session()
	if err != nil {
		return 0, err
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var value interface{}
	if err := db.QueryRowContext(ctx, m.nowQuery).Scan(&value); err != nil {
		m.markSuspect()
		return 0, errors.Query(err, "failed to read database time").
			WithDetail("query", m.nowQuery)
	}

	now, err := epochSeconds(value)
	if err != nil {
		m.markSuspect()
		return 0, errors.Query(err, "database time is not an epoch value").
			WithDetail("query", m.nowQuery)
	}
	return now, nil
}

// Execute runs a read query and materializes every row. fetchSize bounds the
// rows fetched per round trip on dialects with server cursors and is a
// capacity hint elsewhere. A failure flags the session as broken; recovering
// is left to the caller.
func (m *ConnectionManager) Execute(ctx context.Context, query string, fetchSize int) (*ResultSet, error) {
	db, err := m.session()
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	rs, err := m.execute(ctx, db, query, fetchSize)
	if err != nil {
		m.markSuspect()
		return nil, errors.Query(err, "extraction query failed").
			WithDetail("query", query).
			WithDetail("fetch_size", fetchSize)
	}
	return rs, nil
}

func (m *ConnectionManager) execute(ctx context.Context, db *sql.DB, query string, fetchSize int) (*ResultSet, error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: m.cfg.ReadOnly && m.dialect.ReadOnlyTx})
	if err != nil {
		return nil, err
	}
	// extraction never writes, rolling back just ends the transaction
	defer func() { _ = tx.Rollback() }()

	if m.dialect.ServerCursor && fetchSize > 0 {
		return fetchWithCursor(ctx, tx, query, fetchSize)
	}

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	cols, batch, err := scanRows(rows, fetchSize)
	if err != nil {
		return nil, err
	}
	return &ResultSet{Columns: cols, Rows: batch}, nil
}

func fetchWithCursor(ctx context.Context, tx *sql.Tx, query string, fetchSize int) (*ResultSet, error) {
	query = strings.TrimRight(strings.TrimSpace(query), ";")
	if _, err := tx.ExecContext(ctx, "DECLARE "+serverCursorName+" NO SCROLL CURSOR FOR "+query); err != nil {
		return nil, err
	}

	fetch := "FETCH FORWARD " + strconv.Itoa(fetchSize) + " FROM " + serverCursorName
	rs := &ResultSet{}
	for {
		rows, err := tx.QueryContext(ctx, fetch)
		if err != nil {
			return nil, err
		}
		cols, batch, err := scanRows(rows, fetchSize)
		if err != nil {
			return nil, err
		}
		if rs.Columns == nil {
			rs.Columns = cols
		}
		rs.Rows = append(rs.Rows, batch...)
		if len(batch) < fetchSize {
			break
		}
	}

	if _, err := tx.ExecContext(ctx, "CLOSE "+serverCursorName); err != nil {
		return nil, err
	}
	return rs, nil
}

func scanRows(rows *sql.Rows, capacity int) ([]string, []core.Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	if capacity < 0 {
		capacity = 0
	} else if capacity > maxPrealloc {
		capacity = maxPrealloc
	}
	out := make([]core.Row, 0, capacity)

	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make(core.Row, len(cols))
		for i, v := range values {
			row[i] = core.CellFromValue(v)
			values[i] = nil
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, out, nil
}

func (m *ConnectionManager) session() (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil, errors.New(errors.ErrorTypeQuery, "database session is not open")
	}
	return m.db, nil
}

func (m *ConnectionManager) markSuspect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		m.suspect = true
	}
}

func (m *ConnectionManager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.queryTimeout)
}

// epochSeconds converts whatever the driver returned for the time query
func epochSeconds(v interface{}) (int64, error) {
	cell := core.CellFromValue(v)
	switch cell.Kind {
	case core.KindInt:
		i, _ := cell.Int()
		return i, nil
	case core.KindFloat:
		f, _ := cell.Float()
		return int64(f), nil
	case core.KindTimestamp:
		t, _ := cell.Timestamp()
		return t.Unix(), nil
	case core.KindText:
		s, _ := cell.Text()
		s = strings.TrimSpace(s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	default:
		return 0, errors.New(errors.ErrorTypeData, "database time is NULL")
	}
}
