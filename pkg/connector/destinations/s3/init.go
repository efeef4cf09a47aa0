package s3

import (
	"context"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSink("s3", func(cfg *config.Config) (core.Sink, error) {
		return NewS3Destination(context.Background(), cfg)
	})

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:         "s3",
		Type:         core.ConnectorTypeSink,
		Description:  "Uploads one object per batch to Amazon S3",
		Capabilities: []string{"jsonl", "csv", "avro", "parquet", "compression", "multipart"},
		ConfigKeys: map[string]string{
			"sink.s3.bucket":    "S3 bucket name",
			"sink.s3.region":    "AWS region (default chain when empty)",
			"sink.s3.prefix":    "object key prefix",
			"sink.s3.endpoint":  "custom endpoint for S3 compatible stores",
			"sink.s3.part_size": "multipart upload part size in bytes",
		},
	})
}
