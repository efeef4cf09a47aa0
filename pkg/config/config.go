// Package config provides the configuration system for sqlpoller.
// A single Config structure describes one polling source: how to reach the
// database, which query to run, how the query window moves, where rows go and
// where the cursor is checkpointed.
//
// The configuration is organized into logical sections:
//   - Connection: driver, DSN, pool limits, read-only sessions
//   - Query: the extraction query template and an optional server-time query
//   - Window: step size, safety margin and initial cursor
//   - Performance: fetch size and query timeout
//   - Schedule: polling interval
//   - Checkpoint: cursor persistence
//   - Sink: downstream delivery
//   - Reliability: retry behaviour for startup and sink writes
//   - Observability: logging, metrics and tracing
//
// Example usage:
//
//	cfg := config.NewConfig("orders")
//	cfg.Connection.Driver = "mysql"
//	cfg.Connection.DSN = "reader:secret@tcp(db:3306)/shop?parseTime=true"
//	cfg.Query.Template = "SELECT * FROM orders WHERE ts >= $@$ AND ts < $#$"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/sqlpoller/pkg/errors"
)

const (
	// CursorPlaceholder is replaced by the window lower bound (the current cursor)
	CursorPlaceholder = "$@$"
	// UpperBoundPlaceholder is replaced by the window upper bound
	UpperBoundPlaceholder = "$#$"
)

// Config is the complete configuration of one polling source.
type Config struct {
	// Name identifies the source in logs, metrics and checkpoints
	Name string `yaml:"name" json:"name" mapstructure:"name"`

	// Connection settings for the database session
	Connection ConnectionConfig `yaml:"connection" json:"connection" mapstructure:"connection"`

	// Query holds the extraction query template
	Query QueryConfig `yaml:"query" json:"query" mapstructure:"query"`

	// Window controls how far each query reaches
	Window WindowConfig `yaml:"window" json:"window" mapstructure:"window"`

	// Performance settings for result materialization
	Performance PerformanceConfig `yaml:"performance" json:"performance" mapstructure:"performance"`

	// Schedule owns the polling interval
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule" mapstructure:"schedule"`

	// Checkpoint configures cursor persistence
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint" mapstructure:"checkpoint"`

	// Sink configures the downstream collaborator
	Sink SinkConfig `yaml:"sink" json:"sink" mapstructure:"sink"`

	// Reliability settings for retries
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability" mapstructure:"reliability"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// ConnectionConfig describes how the database session is established.
type ConnectionConfig struct {
	// Driver selects the dialect (mysql, pgx, postgres, sqlite, snowflake)
	Driver string `yaml:"driver" json:"driver" mapstructure:"driver"`
	// DSN is the driver specific data source name
	DSN string `yaml:"dsn" json:"dsn" mapstructure:"dsn"`
	// ReadOnly runs extraction queries in read-only sessions
	ReadOnly bool `yaml:"read_only" json:"read_only" mapstructure:"read_only"`
	// MaxOpenConns caps the pool size of the session
	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns" mapstructure:"max_open_conns"`
	// ConnMaxLifetime recycles pooled connections
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	// ConnectTimeout bounds session establishment
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" mapstructure:"connect_timeout"`
}

// QueryConfig holds the extraction query.
type QueryConfig struct {
	// Template is the extraction query; $@$ and $#$ are replaced by the window bounds
	Template string `yaml:"template" json:"template" mapstructure:"template"`
	// NowQuery overrides the dialect's server time query; it must return epoch seconds
	NowQuery string `yaml:"now_query" json:"now_query" mapstructure:"now_query"`
}

// WindowConfig controls the query window.
type WindowConfig struct {
	// StepSeconds is how far the window reaches per attempt
	StepSeconds int64 `yaml:"step_seconds" json:"step_seconds" mapstructure:"step_seconds"`
	// SafetyMarginSeconds keeps the window away from not yet committed rows
	SafetyMarginSeconds int64 `yaml:"safety_margin_seconds" json:"safety_margin_seconds" mapstructure:"safety_margin_seconds"`
	// StartCursor is used when no checkpoint exists (string encoded epoch seconds)
	StartCursor string `yaml:"start_cursor" json:"start_cursor" mapstructure:"start_cursor"`
}

// PerformanceConfig contains result materialization settings.
type PerformanceConfig struct {
	// FetchSize is the server side fetch size hint (0 lets the driver decide)
	FetchSize int `yaml:"fetch_size" json:"fetch_size" mapstructure:"fetch_size"`
	// QueryTimeout bounds a single extraction query (0 disables the timeout)
	QueryTimeout time.Duration `yaml:"query_timeout" json:"query_timeout" mapstructure:"query_timeout"`
}

// ScheduleConfig belongs to the scheduler collaborator.
type ScheduleConfig struct {
	// PollInterval is the delay between extraction cycles
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" mapstructure:"poll_interval"`
}

// CheckpointConfig configures where the cursor is persisted.
type CheckpointConfig struct {
	// Type selects the store (memory, file, sqlite)
	Type string `yaml:"type" json:"type" mapstructure:"type"`
	// Path is the file or sqlite database path
	Path string `yaml:"path" json:"path" mapstructure:"path"`
}

// ReliabilityConfig contains retry settings.
type ReliabilityConfig struct {
	// RetryAttempts sets maximum attempts for session establishment and sink writes
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts" mapstructure:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay" mapstructure:"retry_delay"`
	// MaxRetryDelay caps the retry delay
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay" mapstructure:"max_retry_delay"`
	// RetryMultiplier increases delay exponentially
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier" mapstructure:"retry_multiplier"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	// LogEncoding selects json or console output
	LogEncoding string `yaml:"log_encoding" json:"log_encoding" mapstructure:"log_encoding"`
	// Development enables development logging
	Development bool `yaml:"development" json:"development" mapstructure:"development"`
	// MetricsAddr serves /metrics and /healthz when set (e.g. ":9102")
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
	// EnableTracing activates cycle tracing
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate" mapstructure:"tracing_sample_rate"`
	// HealthInterval is how often the session health flag is sampled
	HealthInterval time.Duration `yaml:"health_interval" json:"health_interval" mapstructure:"health_interval"`
}

// NewConfig creates a Config with the defaults of the original connector:
// a 600 second window step, a 10 second safety margin and a 1000 row fetch size.
func NewConfig(name string) *Config {
	return &Config{
		Name: name,
		Connection: ConnectionConfig{
			ReadOnly:        true,
			MaxOpenConns:    2,
			ConnMaxLifetime: time.Hour,
			ConnectTimeout:  10 * time.Second,
		},
		Window: WindowConfig{
			StepSeconds:         600,
			SafetyMarginSeconds: 10,
			StartCursor:         "0",
		},
		Performance: PerformanceConfig{
			FetchSize:    1000,
			QueryTimeout: 5 * time.Minute,
		},
		Schedule: ScheduleConfig{
			PollInterval: 10 * time.Second,
		},
		Checkpoint: CheckpointConfig{
			Type: "memory",
		},
		Sink: SinkConfig{
			Type:        "stdout",
			Format:      "jsonl",
			Compression: "none",
			File: FileSinkConfig{
				Path: "-",
			},
			Kafka: KafkaSinkConfig{
				Acks:        "all",
				Compression: "none",
				MaxRetries:  3,
			},
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   3,
			RetryDelay:      time.Second,
			MaxRetryDelay:   30 * time.Second,
			RetryMultiplier: 2.0,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogEncoding:       "json",
			TracingSampleRate: 0.1,
			HealthInterval:    30 * time.Second,
		},
	}
}

// Validate performs the mandatory-field check. It is meant to run once at
// startup; every failure is a ConfigurationError.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.Configuration("name is required")
	}
	if c.Connection.Driver == "" {
		return errors.Configuration("connection.driver is required")
	}
	if c.Connection.DSN == "" {
		return errors.Configuration("connection.dsn is required")
	}
	if err := c.Query.Validate(); err != nil {
		return err
	}
	if c.Window.StepSeconds <= 0 {
		return errors.Configuration("window.step_seconds must be positive")
	}
	if c.Window.SafetyMarginSeconds < 0 {
		return errors.Configuration("window.safety_margin_seconds cannot be negative")
	}
	if _, err := strconv.ParseInt(c.Window.StartCursor, 10, 64); err != nil {
		return errors.Configuration("window.start_cursor must be an integer").
			WithDetail("start_cursor", c.Window.StartCursor)
	}
	if c.Performance.FetchSize < 0 {
		return errors.Configuration("performance.fetch_size cannot be negative")
	}
	if c.Schedule.PollInterval <= 0 {
		return errors.Configuration("schedule.poll_interval must be positive")
	}
	if c.Reliability.RetryAttempts < 0 {
		return errors.Configuration("reliability.retry_attempts cannot be negative")
	}
	if c.Checkpoint.Type != "" && c.Checkpoint.Type != "memory" && c.Checkpoint.Path == "" {
		return errors.Configuration("checkpoint.path is required for " + c.Checkpoint.Type + " checkpoints")
	}
	return c.Sink.Validate()
}

// IsSet reports whether an extraction query is configured.
func (q *QueryConfig) IsSet() bool {
	return strings.TrimSpace(q.Template) != ""
}

// Validate checks the template is present and carries both window placeholders.
func (q *QueryConfig) Validate() error {
	if !q.IsSet() {
		return errors.Configuration("query.template is required")
	}
	if !strings.Contains(q.Template, CursorPlaceholder) {
		return errors.Configuration("query.template must contain the cursor placeholder " + CursorPlaceholder)
	}
	if !strings.Contains(q.Template, UpperBoundPlaceholder) {
		return errors.Configuration("query.template must contain the upper bound placeholder " + UpperBoundPlaceholder)
	}
	return nil
}

// Redacted returns a copy safe for printing: credentials are masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Connection.DSN != "" {
		out.Connection.DSN = "****"
	}
	if out.Sink.Kafka.SASLPassword != "" {
		out.Sink.Kafka.SASLPassword = "****"
	}
	if out.Sink.GCS.AccessToken != "" {
		out.Sink.GCS.AccessToken = "****"
	}
	out.Sink.Kafka.Brokers = append([]string(nil), c.Sink.Kafka.Brokers...)
	return &out
}
