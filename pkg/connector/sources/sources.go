// Package sources links every source connector into the binary and creates
// the polling source for a configuration.
package sources

import (
	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/registry"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/sources/sqlpoll"
)

// New creates the SQL polling source of cfg
func New(cfg *config.Config) (core.Source, error) {
	return registry.CreateSource(sqlpoll.ConnectorName, cfg)
}
