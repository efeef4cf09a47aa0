package sqlpoll

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
	"github.com/ajitpratap0/sqlpoller/pkg/testutil"
)

func newSQLiteManager(t *testing.T, dsn string, opts ...ConnectionOption) *ConnectionManager {
	t.Helper()
	cfg := config.NewConfig("test").Connection
	cfg.Driver = "sqlite"
	cfg.DSN = dsn

	opts = append([]ConnectionOption{WithLogger(testutil.TestLogger(t))}, opts...)
	m, err := NewConnectionManager(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestNewConnectionManager_UnsupportedDriver(t *testing.T) {
	_, err := NewConnectionManager(config.ConnectionConfig{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestLookupDialect(t *testing.T) {
	for _, name := range []string{"mysql", "pgx", "postgres", "sqlite", "snowflake"} {
		d, err := LookupDialect(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, d.Name)
		assert.NotEmpty(t, d.NowQuery)
	}

	pg, _ := LookupDialect("PGX")
	assert.True(t, pg.ServerCursor)
	assert.Equal(t, []string{"mysql", "pgx", "postgres", "snowflake", "sqlite"}, Dialects())
}

func TestConnectionManager_OpenClose(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	dsn := testutil.NewSQLiteDSN(t)
	testutil.OpenSQLite(t, dsn)
	m := newSQLiteManager(t, dsn)

	assert.False(t, m.IsHealthy())
	require.NoError(t, m.Close(), "closing a closed manager is a no-op")

	require.NoError(t, m.Open(ctx))
	assert.True(t, m.IsHealthy())
	require.NoError(t, m.Open(ctx), "opening an open manager is a no-op")

	require.NoError(t, m.Close())
	assert.False(t, m.IsHealthy())
	assert.False(t, m.IsOpen())
	require.NoError(t, m.Close())
}

func TestConnectionManager_OpenFailure(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	m := newSQLiteManager(t, filepath.Join(t.TempDir(), "missing", "dir", "db.sqlite"))

	err := m.Open(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsConnection(err))
	assert.True(t, errors.IsRetryable(err))
	assert.False(t, m.IsOpen())
}

func TestConnectionManager_ResetPolicy(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	dsn := testutil.NewSQLiteDSN(t)
	testutil.OpenSQLite(t, dsn)
	m := newSQLiteManager(t, dsn)

	// closed: reopen
	action, err := m.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResetReopen, action)
	assert.True(t, m.IsHealthy())

	// healthy and open: nothing to do
	action, err = m.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResetNone, action)
	assert.True(t, m.IsHealthy())

	// open but broken: tear down
	m.Invalidate()
	assert.False(t, m.IsHealthy())
	assert.True(t, m.IsOpen())
	action, err = m.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResetClose, action)
	assert.False(t, m.IsOpen())

	action, err = m.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResetReopen, action)
	assert.True(t, m.IsHealthy())
}

func TestConnectionManager_ResetIdempotence(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	dsn := testutil.NewSQLiteDSN(t)
	testutil.OpenSQLite(t, dsn)
	m := newSQLiteManager(t, dsn)

	require.NoError(t, m.Open(ctx))
	require.NoError(t, m.Close())

	_, err := m.Reset(ctx)
	require.NoError(t, err)
	_, err = m.Reset(ctx)
	require.NoError(t, err)

	assert.True(t, m.IsHealthy())
	now, err := m.Now(ctx)
	require.NoError(t, err)
	assert.Positive(t, now)
}

func TestConnectionManager_Now(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	dsn := testutil.NewSQLiteDSN(t)
	testutil.OpenSQLite(t, dsn)

	t.Run("dialect query", func(t *testing.T) {
		m := newSQLiteManager(t, dsn)
		require.NoError(t, m.Open(ctx))

		now, err := m.Now(ctx)
		require.NoError(t, err)
		assert.InDelta(t, time.Now().Unix(), now, 5)
	})

	t.Run("override", func(t *testing.T) {
		m := newSQLiteManager(t, dsn, WithNowQuery("SELECT 2000"))
		require.NoError(t, m.Open(ctx))

		now, err := m.Now(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2000), now)
	})

	t.Run("text epoch", func(t *testing.T) {
		m := newSQLiteManager(t, dsn, WithNowQuery("SELECT '1700000000.75'"))
		require.NoError(t, m.Open(ctx))

		now, err := m.Now(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000), now)
	})

	t.Run("closed session", func(t *testing.T) {
		m := newSQLiteManager(t, dsn)
		_, err := m.Now(ctx)
		require.Error(t, err)
		assert.True(t, errors.IsQuery(err))
	})

	t.Run("failing query flags the session", func(t *testing.T) {
		m := newSQLiteManager(t, dsn, WithNowQuery("SELECT now_is_not_a_function()"))
		require.NoError(t, m.Open(ctx))

		_, err := m.Now(ctx)
		require.Error(t, err)
		assert.True(t, errors.IsQuery(err))
		assert.False(t, m.IsHealthy())
	})

	t.Run("null time flags the session", func(t *testing.T) {
		m := newSQLiteManager(t, dsn, WithNowQuery("SELECT NULL"))
		require.NoError(t, m.Open(ctx))

		_, err := m.Now(ctx)
		require.Error(t, err)
		assert.True(t, errors.IsQuery(err))
		assert.False(t, m.IsHealthy())

		action, err := m.Reset(ctx)
		require.NoError(t, err)
		assert.Equal(t, ResetClose, action)
	})
}

func TestConnectionManager_Execute(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	dsn := testutil.NewSQLiteDSN(t)
	db := testutil.OpenSQLite(t, dsn)
	testutil.InsertEvent(t, db, 1, "signup", 9.5, 1100)
	testutil.InsertEvent(t, db, 2, "login", 0, 1200)
	_, err := db.Exec("UPDATE events SET amount = NULL WHERE id = 2")
	require.NoError(t, err)

	m := newSQLiteManager(t, dsn)
	require.NoError(t, m.Open(ctx))

	rs, err := m.Execute(ctx, BuildQuery(testutil.EventsQuery, Window{Lower: 1000, Upper: 1600}), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "amount", "created_at"}, rs.Columns)
	require.Len(t, rs.Rows, 2)

	first := rs.Rows[0]
	assert.Equal(t, core.Int(1), first[0])
	assert.Equal(t, core.Text("signup"), first[1])
	assert.Equal(t, core.Float(9.5), first[2])
	assert.Equal(t, core.Int(1100), first[3])
	assert.True(t, rs.Rows[1][2].IsNull())

	empty, err := m.Execute(ctx, BuildQuery(testutil.EventsQuery, Window{Lower: 5000, Upper: 6000}), 1000)
	require.NoError(t, err)
	assert.Empty(t, empty.Rows)
	assert.True(t, m.IsHealthy())
}

func TestConnectionManager_ExecuteFailure(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	dsn := testutil.NewSQLiteDSN(t)
	testutil.OpenSQLite(t, dsn)
	m := newSQLiteManager(t, dsn)
	require.NoError(t, m.Open(ctx))

	_, err := m.Execute(ctx, "SELECT * FROM no_such_table", 10)
	require.Error(t, err)
	assert.True(t, errors.IsQuery(err))
	assert.Equal(t, "SELECT * FROM no_such_table", errors.GetDetails(err)["query"])

	assert.False(t, m.IsHealthy(), "failure is observed")
	assert.True(t, m.IsOpen(), "execute never resets by itself")

	action, err := m.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResetClose, action)
}

func TestConnectionManager_ReadOnly(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	dsn := testutil.NewSQLiteDSN(t)
	db := testutil.OpenSQLite(t, dsn)
	testutil.InsertEvent(t, db, 1, "signup", 1, 1100)

	m := newSQLiteManager(t, dsn)
	require.NoError(t, m.Open(ctx))

	_, err := m.Execute(ctx, "DELETE FROM events", 0)
	require.Error(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count))
	assert.Equal(t, 1, count)
}
