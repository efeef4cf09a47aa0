package gcs

import (
	"context"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSink("gcs", func(cfg *config.Config) (core.Sink, error) {
		return NewGCSDestination(context.Background(), cfg)
	})

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:         "gcs",
		Type:         core.ConnectorTypeSink,
		Description:  "Writes one object per batch to Google Cloud Storage",
		Capabilities: []string{"jsonl", "csv", "avro", "parquet", "compression"},
		ConfigKeys: map[string]string{
			"sink.gcs.bucket":           "bucket name",
			"sink.gcs.prefix":           "object name prefix",
			"sink.gcs.credentials_file": "service account key (application default credentials when empty)",
			"sink.gcs.access_token":     "static OAuth2 access token, exclusive with credentials_file",
		},
	})
}
