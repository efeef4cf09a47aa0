package kafka

import (
	"context"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
	"github.com/ajitpratap0/sqlpoller/pkg/testutil"
)

func kafkaConfig() *config.Config {
	cfg := config.NewConfig("orders")
	cfg.Sink.Type = "kafka"
	cfg.Sink.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Sink.Kafka.Topic = "orders.raw"
	return cfg
}

func rowBatch(ids ...int64) *core.RowBatch {
	b := &core.RowBatch{
		Source:  "orders",
		Columns: []string{"id"},
		Window:  core.Window{Lower: 1000, Upper: 1600},
	}
	for _, id := range ids {
		b.Rows = append(b.Rows, core.Row{core.Int(id)})
	}
	return b
}

func TestKafkaDestination_OneMessagePerRow(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"id":1,"_window_lower":1000,"_window_upper":1600}` {
			return fmt.Errorf("unexpected value %s", val)
		}
		return nil
	})
	producer.ExpectSendMessageAndSucceed()

	d, err := NewKafkaDestination(kafkaConfig(), WithProducer(producer), WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)

	require.NoError(t, d.Write(context.Background(), rowBatch(1, 2)))
	require.NoError(t, d.Write(context.Background(), rowBatch()), "empty batch sends nothing")
	assert.Equal(t, int64(2), d.messagesProduced)
	require.NoError(t, d.Close(context.Background()))
}

func TestKafkaDestination_BuildMessages(t *testing.T) {
	d := &KafkaDestination{topic: "orders.raw"}
	messages, size, err := d.buildMessages(context.Background(), rowBatch(5))
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Positive(t, size)

	msg := messages[0]
	assert.Equal(t, "orders.raw", msg.Topic)
	assert.Equal(t, sarama.StringEncoder("orders"), msg.Key)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[string(h.Key)] = string(h.Value)
	}
	assert.Equal(t, "orders", headers[HeaderSource])
	assert.Equal(t, "1000", headers[HeaderWindowLower])
	assert.Equal(t, "1600", headers[HeaderWindowUpper])
}

func TestKafkaDestination_ProduceFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	d, err := NewKafkaDestination(kafkaConfig(), WithProducer(producer))
	require.NoError(t, err)

	err = d.Write(context.Background(), rowBatch(1))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSink))
	assert.True(t, errors.IsRetryable(err))
	require.NoError(t, d.Close(context.Background()))
}

func TestKafkaDestination_RequiresTopic(t *testing.T) {
	cfg := kafkaConfig()
	cfg.Sink.Kafka.Topic = ""
	_, err := NewKafkaDestination(cfg)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestBuildSaramaConfig(t *testing.T) {
	kc := kafkaConfig().Sink.Kafka
	kc.Acks = "1"
	kc.Compression = "lz4"
	kc.SASLUser = "svc"
	kc.SASLPassword = "secret"

	sc := BuildSaramaConfig(kc)
	assert.Equal(t, sarama.WaitForLocal, sc.Producer.RequiredAcks)
	assert.Equal(t, sarama.CompressionLZ4, sc.Producer.Compression)
	assert.True(t, sc.Producer.Return.Successes)
	assert.True(t, sc.Net.SASL.Enable)
	assert.NoError(t, sc.Validate())
}
