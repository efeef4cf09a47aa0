package sqlpoll

import (
	"database/sql"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/snowflakedb/gosnowflake"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
)

// Dialect captures what the connection manager needs to know about a database
// family: how to open it, how to ask it for the time and which session
// features it supports.
type Dialect struct {
	// Name is the value of connection.driver
	Name string
	// NowQuery returns the server time in seconds since epoch
	NowQuery string
	// ServerCursor runs extraction queries through DECLARE/FETCH so the fetch
	// size bounds what the server sends per round trip
	ServerCursor bool
	// ReadOnlyTx reports whether database/sql read-only transactions are supported
	ReadOnlyTx bool

	open func(cfg config.ConnectionConfig) (*sql.DB, error)
}

var dialects = map[string]Dialect{
	"mysql": {
		Name:       "mysql",
		NowQuery:   "SELECT UNIX_TIMESTAMP(NOW())",
		ReadOnlyTx: true,
		open:       openMySQL,
	},
	"pgx": {
		Name:         "pgx",
		NowQuery:     "SELECT CAST(EXTRACT(EPOCH FROM NOW()) AS BIGINT)",
		ServerCursor: true,
		ReadOnlyTx:   true,
		open:         openPgx,
	},
	"postgres": {
		Name:         "postgres",
		NowQuery:     "SELECT CAST(EXTRACT(EPOCH FROM NOW()) AS BIGINT)",
		ServerCursor: true,
		ReadOnlyTx:   true,
		open:         openPostgres,
	},
	"sqlite": {
		Name:     "sqlite",
		NowQuery: "SELECT CAST(strftime('%s','now') AS INTEGER)",
		open:     openSQLite,
	},
	"snowflake": {
		Name:     "snowflake",
		NowQuery: "SELECT DATE_PART(EPOCH_SECOND, CURRENT_TIMESTAMP())",
		open:     openSnowflake,
	},
}

// LookupDialect returns the dialect registered for a driver name
func LookupDialect(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Dialect{}, errors.Configuration("unsupported connection.driver").
			WithDetail("driver", name).
			WithDetail("supported", Dialects())
	}
	return d, nil
}

// Dialects lists the supported driver names
func Dialects() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func openMySQL(cfg config.ConnectionConfig) (*sql.DB, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if mc.Timeout == 0 {
		mc.Timeout = cfg.ConnectTimeout
	}
	// DATETIME columns come back as time.Time instead of raw bytes
	mc.ParseTime = true
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

func openPgx(cfg config.ConnectionConfig) (*sql.DB, error) {
	pc, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if pc.ConnectTimeout == 0 {
		pc.ConnectTimeout = cfg.ConnectTimeout
	}
	return stdlib.OpenDB(*pc), nil
}

func openPostgres(cfg config.ConnectionConfig) (*sql.DB, error) {
	dsn := cfg.DSN
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		converted, err := pq.ParseURL(dsn)
		if err != nil {
			return nil, err
		}
		dsn = converted
	}
	if cfg.ConnectTimeout >= time.Second && !strings.Contains(dsn, "connect_timeout=") {
		dsn += " connect_timeout=" + strconv.Itoa(int(cfg.ConnectTimeout.Seconds()))
	}
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

func openSQLite(cfg config.ConnectionConfig) (*sql.DB, error) {
	dsn := cfg.DSN
	if cfg.ReadOnly {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=query_only(1)"
	}
	return sql.Open("sqlite", dsn)
}

func openSnowflake(cfg config.ConnectionConfig) (*sql.DB, error) {
	sc, err := gosnowflake.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if sc.LoginTimeout == 0 {
		sc.LoginTimeout = cfg.ConnectTimeout
	}
	return sql.OpenDB(gosnowflake.NewConnector(&gosnowflake.SnowflakeDriver{}, *sc)), nil
}
