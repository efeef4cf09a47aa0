package kafka

import (
	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSink("kafka", func(cfg *config.Config) (core.Sink, error) {
		return NewKafkaDestination(cfg)
	})

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:         "kafka",
		Type:         core.ConnectorTypeSink,
		Description:  "Produces one JSON message per row to a Kafka topic",
		Capabilities: []string{"streaming", "ordered_per_source", "compression", "trace_propagation"},
		ConfigKeys: map[string]string{
			"sink.kafka.brokers":     "bootstrap brokers",
			"sink.kafka.topic":       "destination topic",
			"sink.kafka.acks":        "all, 1 or 0",
			"sink.kafka.compression": "none, gzip, snappy, lz4, zstd",
			"sink.kafka.enable_tls":  "connect with TLS",
			"sink.kafka.sasl_user":   "SASL/PLAIN user",
		},
	})
}
