// Package destinations links every sink into the binary. Importing it
// registers the file, stdout, kafka, s3 and gcs sinks with the registry.
package destinations

import (
	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/registry"

	// Import all sinks to trigger init() registration
	_ "github.com/ajitpratap0/sqlpoller/pkg/connector/destinations/file"
	_ "github.com/ajitpratap0/sqlpoller/pkg/connector/destinations/gcs"
	_ "github.com/ajitpratap0/sqlpoller/pkg/connector/destinations/kafka"
	_ "github.com/ajitpratap0/sqlpoller/pkg/connector/destinations/s3"
)

// New creates the sink selected by sink.type.
func New(cfg *config.Config) (core.Sink, error) {
	return registry.CreateSink(cfg)
}
