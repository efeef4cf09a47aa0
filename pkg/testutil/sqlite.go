package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// EventsSchema is the table used by extraction tests: one row per event with
// a created_at column in seconds since epoch.
const EventsSchema = `CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	amount REAL,
	created_at INTEGER NOT NULL
)`

// EventsQuery is an extraction template over EventsSchema
const EventsQuery = "SELECT id, name, amount, created_at FROM events WHERE created_at >= $@$ AND created_at < $#$ ORDER BY id"

// NewSQLiteDSN returns the DSN of a fresh sqlite database in the test's temp dir
func NewSQLiteDSN(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "source.db")
}

// OpenSQLite opens a writable handle on dsn and creates the events table.
// The handle is closed when the test completes.
func OpenSQLite(t *testing.T, dsn string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(EventsSchema)
	require.NoError(t, err)
	return db
}

// InsertEvent adds one row to the events table
func InsertEvent(t *testing.T, db *sql.DB, id int64, name string, amount float64, createdAt int64) {
	t.Helper()
	_, err := db.Exec("INSERT INTO events (id, name, amount, created_at) VALUES (?, ?, ?, ?)",
		id, name, amount, createdAt)
	require.NoError(t, err)
}

// SQLiteSuite provides a seeded sqlite database per test
type SQLiteSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc
	DSN    string
	DB     *sql.DB
}

// SetupTest creates a fresh database for every test
func (s *SQLiteSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), time.Minute)
	s.DSN = NewSQLiteDSN(s.T())
	s.DB = OpenSQLite(s.T(), s.DSN)
}

// TearDownTest cancels the test context
func (s *SQLiteSuite) TearDownTest() {
	s.cancel()
}

// Context returns the test context
func (s *SQLiteSuite) Context() context.Context {
	return s.ctx
}

// Insert adds one row to the events table
func (s *SQLiteSuite) Insert(id int64, name string, amount float64, createdAt int64) {
	InsertEvent(s.T(), s.DB, id, name, amount, createdAt)
}
