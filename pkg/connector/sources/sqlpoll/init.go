package sqlpoll

import (
	"strings"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/registry"
)

// ConnectorName is the registry name of the polling source
const ConnectorName = "sqlpoll"

func init() {
	_ = registry.RegisterSource(ConnectorName, func(cfg *config.Config) (core.Source, error) {
		return NewSource(cfg)
	})

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:        ConnectorName,
		Type:        core.ConnectorTypeSource,
		Description: "Incremental SQL polling source with bounded time windows",
		Capabilities: []string{
			"incremental",
			"bounded_windows",
			"server_time",
			"connection_reset",
			"checkpointing",
		},
		ConfigKeys: map[string]string{
			"connection.driver":            "one of " + strings.Join(Dialects(), ", "),
			"connection.dsn":               "driver specific data source name",
			"query.template":               "extraction query with $@$ and $#$ placeholders",
			"query.now_query":              "optional server time query returning epoch seconds",
			"window.step_seconds":          "window growth per attempt",
			"window.safety_margin_seconds": "distance kept from the database clock",
			"performance.fetch_size":       "rows per server round trip",
		},
	})
}
