package config

import (
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
)

// SinkConfig selects and configures the downstream sink.
type SinkConfig struct {
	// Type selects the sink (stdout, file, kafka, s3, gcs)
	Type string `yaml:"type" json:"type" mapstructure:"type"`
	// Format selects the batch encoding (jsonl, csv, avro, parquet); avro and
	// parquet produce one file per batch and need an object sink
	Format string `yaml:"format" json:"format" mapstructure:"format"`
	// Compression applies to file and object sinks (none, gzip, snappy, lz4, zstd, s2)
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`

	File  FileSinkConfig  `yaml:"file" json:"file" mapstructure:"file"`
	Kafka KafkaSinkConfig `yaml:"kafka" json:"kafka" mapstructure:"kafka"`
	S3    S3SinkConfig    `yaml:"s3" json:"s3" mapstructure:"s3"`
	GCS   GCSSinkConfig   `yaml:"gcs" json:"gcs" mapstructure:"gcs"`
}

// FileSinkConfig contains configuration for the file sink
type FileSinkConfig struct {
	// Path of the output file; "-" writes to stdout
	Path string `yaml:"path" json:"path" mapstructure:"path"`
	// CreateDirs creates missing parent directories
	CreateDirs bool `yaml:"create_dirs" json:"create_dirs" mapstructure:"create_dirs"`
}

// KafkaSinkConfig contains configuration for the Kafka sink
type KafkaSinkConfig struct {
	Brokers      []string `yaml:"brokers" json:"brokers" mapstructure:"brokers"`
	Topic        string   `yaml:"topic" json:"topic" mapstructure:"topic"`
	Acks         string   `yaml:"acks" json:"acks" mapstructure:"acks"`
	Compression  string   `yaml:"compression" json:"compression" mapstructure:"compression"`
	MaxRetries   int      `yaml:"max_retries" json:"max_retries" mapstructure:"max_retries"`
	EnableTLS    bool     `yaml:"enable_tls" json:"enable_tls" mapstructure:"enable_tls"`
	SASLUser     string   `yaml:"sasl_user" json:"sasl_user" mapstructure:"sasl_user"`
	SASLPassword string   `yaml:"sasl_password" json:"sasl_password" mapstructure:"sasl_password"`
}

// S3SinkConfig contains configuration for the S3 sink
type S3SinkConfig struct {
	Bucket   string `yaml:"bucket" json:"bucket" mapstructure:"bucket"`
	Region   string `yaml:"region" json:"region" mapstructure:"region"`
	Prefix   string `yaml:"prefix" json:"prefix" mapstructure:"prefix"`
	Endpoint string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
	// PartSize is the multipart upload part size in bytes
	PartSize int64 `yaml:"part_size" json:"part_size" mapstructure:"part_size"`
}

// GCSSinkConfig contains configuration for the Google Cloud Storage sink
type GCSSinkConfig struct {
	Bucket          string `yaml:"bucket" json:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix" json:"prefix" mapstructure:"prefix"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file" mapstructure:"credentials_file"`
	// AccessToken is a short lived OAuth2 token used instead of a credentials file
	AccessToken string `yaml:"access_token" json:"access_token" mapstructure:"access_token"`
}

// Validate checks the settings required by the selected sink type.
func (s *SinkConfig) Validate() error {
	switch s.Format {
	case "", "jsonl", "csv":
	case "avro", "parquet":
		if s.Type != "s3" && s.Type != "gcs" {
			return errors.Configuration("sink.format "+s.Format+" requires an s3 or gcs sink").
				WithDetail("type", s.Type)
		}
	default:
		return errors.Configuration("sink.format must be jsonl, csv, avro or parquet").WithDetail("format", s.Format)
	}

	switch s.Type {
	case "", "stdout":
		return nil
	case "file":
		if s.File.Path == "" {
			return errors.Configuration("sink.file.path is required")
		}
	case "kafka":
		if len(s.Kafka.Brokers) == 0 {
			return errors.Configuration("sink.kafka.brokers is required")
		}
		if s.Kafka.Topic == "" {
			return errors.Configuration("sink.kafka.topic is required")
		}
	case "s3":
		if s.S3.Bucket == "" {
			return errors.Configuration("sink.s3.bucket is required")
		}
	case "gcs":
		if s.GCS.Bucket == "" {
			return errors.Configuration("sink.gcs.bucket is required")
		}
		if s.GCS.CredentialsFile != "" && s.GCS.AccessToken != "" {
			return errors.Configuration("sink.gcs.credentials_file and sink.gcs.access_token are mutually exclusive")
		}
	}
	return nil
}
