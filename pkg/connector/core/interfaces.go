// Package core defines the data model and contracts shared by sources, sinks
// and the scheduler.
package core

import (
	"context"
	"time"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	ConnectorTypeSource ConnectorType = "source"
	ConnectorTypeSink   ConnectorType = "sink"
)

// Source is a polling source driven by a single scheduler goroutine.
type Source interface {
	// Name identifies the source in logs, metrics and checkpoints
	Name() string
	// Establish validates the configuration and opens the database session
	Establish(ctx context.Context) error
	// Poll runs one extraction cycle. It never fails: per-cycle errors are
	// recovered internally and surface as an empty batch.
	Poll(ctx context.Context) *RowBatch
	// Cursor returns the string encoded progress cursor
	Cursor() string
	// RestoreCursor sets the cursor from a checkpoint; only valid before the first Poll
	RestoreCursor(cursor string) error
	// Healthy reports the local session health flag without network I/O
	Healthy() bool
	// Close releases the database session
	Close() error
}

// Sink receives row batches from the scheduler.
type Sink interface {
	// Name identifies the sink in logs and metrics
	Name() string
	// Write delivers one batch; a returned error means nothing may be assumed delivered
	Write(ctx context.Context, batch *RowBatch) error
	// Close flushes and releases the sink
	Close(ctx context.Context) error
}

// Health states reported by HealthStatus
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// HealthStatus represents the health status of a source
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}
