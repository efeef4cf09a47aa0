// Package kafka publishes extracted rows to a Kafka topic, one message per
// row, keyed by the source name so a source's rows stay ordered within a
// partition.
package kafka

import (
	"context"
	"crypto/tls"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
	"github.com/ajitpratap0/sqlpoller/pkg/formats/rows"
	"github.com/ajitpratap0/sqlpoller/pkg/logger"
	"github.com/ajitpratap0/sqlpoller/pkg/metrics"
	"github.com/ajitpratap0/sqlpoller/pkg/observability"
)

// Message headers carried with every row.
const (
	HeaderSource      = "source"
	HeaderWindowLower = "window-lower"
	HeaderWindowUpper = "window-upper"
	HeaderContentType = "content-type"
)

// KafkaDestination produces row messages with a sync producer.
type KafkaDestination struct {
	topic    string
	producer sarama.SyncProducer
	logger   *zap.Logger

	messagesProduced int64
	bytesProduced    int64
}

// Option configures a KafkaDestination.
type Option func(*KafkaDestination)

// WithProducer replaces the sarama producer.
func WithProducer(p sarama.SyncProducer) Option {
	return func(d *KafkaDestination) { d.producer = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *KafkaDestination) { d.logger = l }
}

// NewKafkaDestination connects the producer to sink.kafka.brokers.
func NewKafkaDestination(cfg *config.Config, opts ...Option) (*KafkaDestination, error) {
	if cfg == nil {
		return nil, errors.Configuration("kafka sink requires a configuration")
	}
	kc := cfg.Sink.Kafka
	if kc.Topic == "" {
		return nil, errors.Configuration("sink.kafka.topic is required")
	}

	d := &KafkaDestination{topic: kc.Topic}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Get().With(zap.String("component", "kafka_sink"))
	}
	if d.producer != nil {
		return d, nil
	}

	if len(kc.Brokers) == 0 {
		return nil, errors.Configuration("sink.kafka.brokers is required")
	}
	producer, err := sarama.NewSyncProducer(kc.Brokers, BuildSaramaConfig(kc))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create Kafka producer").
			WithDetail("brokers", kc.Brokers)
	}
	d.producer = producer

	d.logger.Info("connected to Kafka",
		zap.Strings("brokers", kc.Brokers),
		zap.String("topic", kc.Topic))
	return d, nil
}

// BuildSaramaConfig maps the sink settings onto a sarama configuration.
func BuildSaramaConfig(kc config.KafkaSinkConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.ClientID = "sqlpoller"

	switch kc.Acks {
	case "1":
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	case "0":
		sc.Producer.RequiredAcks = sarama.NoResponse
	default:
		sc.Producer.RequiredAcks = sarama.WaitForAll
	}

	sc.Producer.Retry.Max = kc.MaxRetries
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Partitioner = sarama.NewHashPartitioner

	switch kc.Compression {
	case "gzip":
		sc.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		sc.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		sc.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		sc.Producer.Compression = sarama.CompressionZSTD
		sc.Version = sarama.V2_1_0_0
	default:
		sc.Producer.Compression = sarama.CompressionNone
	}

	if kc.EnableTLS {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if kc.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User = kc.SASLUser
		sc.Net.SASL.Password = kc.SASLPassword
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	}
	return sc
}

// Name implements core.Sink.
func (d *KafkaDestination) Name() string { return "kafka" }

// Write sends every row of the batch. The batch is acknowledged only when
// all messages were accepted by the brokers.
func (d *KafkaDestination) Write(ctx context.Context, batch *core.RowBatch) error {
	if batch.Empty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	messages, size, err := d.buildMessages(ctx, batch)
	if err != nil {
		metrics.SinkWrite(d.Name(), err)
		return err
	}

	if err := d.producer.SendMessages(messages); err != nil {
		err = errors.Wrap(err, errors.ErrorTypeSink, "failed to produce messages").
			WithDetail("topic", d.topic).
			WithDetail("messages", len(messages))
		metrics.SinkWrite(d.Name(), err)
		return err
	}

	d.messagesProduced += int64(len(messages))
	d.bytesProduced += int64(size)
	metrics.SinkWrite(d.Name(), nil)

	d.logger.Debug("batch produced",
		zap.String("topic", d.topic),
		zap.Int("messages", len(messages)),
		zap.Int("bytes", size),
		zap.String("window", batch.Window.String()))
	return nil
}

func (d *KafkaDestination) buildMessages(ctx context.Context, batch *core.RowBatch) ([]*sarama.ProducerMessage, int, error) {
	headers := []sarama.RecordHeader{
		{Key: []byte(HeaderSource), Value: []byte(batch.Source)},
		{Key: []byte(HeaderWindowLower), Value: []byte(strconv.FormatInt(batch.Window.Lower, 10))},
		{Key: []byte(HeaderWindowUpper), Value: []byte(strconv.FormatInt(batch.Window.Upper, 10))},
		{Key: []byte(HeaderContentType), Value: []byte(rows.JSONL.ContentType())},
	}
	carrier := map[string]string{}
	observability.InjectContext(ctx, carrier)
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	timestamp := batch.ExtractedAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	key := sarama.StringEncoder(batch.Source)
	messages := make([]*sarama.ProducerMessage, 0, batch.Len())
	size := 0
	for _, row := range batch.Rows {
		value, err := rows.MarshalRow(batch.Columns, row, batch.Window)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrorTypeData, "failed to encode row")
		}
		size += len(value)
		messages = append(messages, &sarama.ProducerMessage{
			Topic:     d.topic,
			Key:       key,
			Value:     sarama.ByteEncoder(value),
			Headers:   headers,
			Timestamp: timestamp,
		})
	}
	return messages, size, nil
}

// Close closes the producer.
func (d *KafkaDestination) Close(ctx context.Context) error {
	if d.producer == nil {
		return nil
	}
	err := d.producer.Close()
	d.producer = nil

	d.logger.Info("Kafka sink closed",
		zap.String("topic", d.topic),
		zap.Int64("messages_produced", d.messagesProduced),
		zap.Int64("bytes_produced", d.bytesProduced))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to close Kafka producer")
	}
	return nil
}
