package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/sqlpoller/pkg/errors"
)

// EnvPrefix is the prefix of environment overrides, e.g. SQLPOLLER_CONNECTION_DSN.
const EnvPrefix = "SQLPOLLER"

// envKeys lists the settings that may be overridden from the environment
// even when the file does not mention them.
var envKeys = []string{
	"name",
	"connection.driver",
	"connection.dsn",
	"connection.read_only",
	"query.template",
	"query.now_query",
	"window.step_seconds",
	"window.safety_margin_seconds",
	"window.start_cursor",
	"performance.fetch_size",
	"performance.query_timeout",
	"schedule.poll_interval",
	"checkpoint.type",
	"checkpoint.path",
	"sink.type",
	"sink.format",
	"sink.compression",
	"sink.file.path",
	"sink.kafka.brokers",
	"sink.kafka.topic",
	"sink.kafka.sasl_user",
	"sink.kafka.sasl_password",
	"sink.s3.bucket",
	"sink.s3.region",
	"sink.gcs.bucket",
	"sink.gcs.credentials_file",
	"sink.gcs.access_token",
	"observability.log_level",
	"observability.metrics_addr",
	"observability.enable_tracing",
}

// Load loads a configuration from a YAML file. ${VAR} references in the file
// are substituted first, then SQLPOLLER_* environment variables override
// individual keys. Unset keys keep the defaults of NewConfig.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", filePath)
	}
	return Parse(data)
}

// Parse decodes a YAML document the same way Load does.
func Parse(data []byte) (*Config, error) {
	content := substituteEnvVars(string(data))

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to bind environment key").
				WithDetail("key", key)
		}
	}

	if err := v.ReadConfig(bytes.NewReader([]byte(content))); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML")
	}

	cfg := NewConfig("")
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode configuration")
	}

	return cfg, nil
}

// Marshal renders the configuration as YAML
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var out strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		out.WriteString(content[:start])
		out.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	out.WriteString(content)
	return out.String()
}
