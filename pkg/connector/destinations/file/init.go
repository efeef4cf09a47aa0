package file

import (
	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/registry"
)

func init() {
	factory := func(cfg *config.Config) (core.Sink, error) {
		return NewFileDestination(cfg)
	}
	_ = registry.RegisterSink("file", factory)
	_ = registry.RegisterSink("stdout", factory)

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:         "file",
		Type:         core.ConnectorTypeSink,
		Description:  "Appends batches to a local file or stdout",
		Capabilities: []string{"jsonl", "csv", "compression"},
		ConfigKeys: map[string]string{
			"sink.file.path":        `output path, "-" for stdout`,
			"sink.file.create_dirs": "create missing parent directories",
			"sink.format":           "jsonl or csv",
			"sink.compression":      "none, gzip, snappy, lz4, zstd, s2, deflate",
		},
	})
}
