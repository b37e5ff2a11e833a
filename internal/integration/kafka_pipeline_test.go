//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/region-metrics-etl/internal/adapter/kafka"
	"github.com/couchcryptid/region-metrics-etl/internal/config"
	"github.com/couchcryptid/region-metrics-etl/internal/domain"
	"github.com/couchcryptid/region-metrics-etl/internal/observability"
	"github.com/couchcryptid/region-metrics-etl/internal/pipeline"
)

const (
	testSourceTopic = "test-source"
	testSinkTopic   = "test-sink"
	kafkaImage      = "confluentinc/confluent-local:7.5.0"
)

var testRegions = []string{"county_48113.json", "state_40.json", "state_02_empty.json"}

// computedMessage holds a deserialized message read from the sink topic.
type computedMessage struct {
	Result  sinkPayload
	Key     string
	Headers map[string]string
}

// sinkPayload decodes the parts of a RegionMetrics message the tests check.
type sinkPayload struct {
	Region  domain.Region              `json:"region"`
	Metrics []map[string]any           `json:"metrics"`
	Latest  map[string]json.RawMessage `json:"latest"`
	RunID   string                     `json:"run_id"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("region-metrics-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func loadRegionPayload(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "pipeline", "testdata", name))
	require.NoError(t, err)
	return data
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}
}

func newTransformer(t *testing.T) *pipeline.MetricsTransformer {
	t.Helper()
	calc, err := domain.NewCalculator(domain.DefaultConfig(), discardLogger())
	require.NoError(t, err)
	return pipeline.NewTransformer(calc, nil, nil, observability.NewMetricsForTesting(), discardLogger())
}

func newSinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// readComputed reads a single message from the sink consumer and deserializes it.
func readComputed(ctx context.Context, t *testing.T, consumer *kafkago.Reader) computedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var result sinkPayload
	require.NoError(t, json.Unmarshal(msg.Value, &result), "unmarshal sink message")

	return computedMessage{
		Result:  result,
		Key:     string(msg.Key),
		Headers: headers,
	}
}

func assertHeaders(t *testing.T, cm computedMessage) {
	t.Helper()
	assert.Equal(t, cm.Result.Region.FIPS, cm.Key)
	assert.Equal(t, string(cm.Result.Region.Level), cm.Headers["level"])
	_, err := time.Parse(time.RFC3339, cm.Headers["computed_at"])
	assert.NoError(t, err, "computed_at should be valid RFC3339")
	_, err = uuid.Parse(cm.Headers["run_id"])
	assert.NoError(t, err, "run_id should be a uuid")
	assert.Equal(t, cm.Result.RunID, cm.Headers["run_id"])
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader (extractor) and
// kafka.Writer (loader) correctly round-trip a region through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := testConfig(broker, "test-reader")
	payload := loadRegionPayload(t, "county_48113.json")

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{Key: []byte("48113"), Value: payload}))

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("48113"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	result, err := newTransformer(t).Transform(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.RegionMetrics{result}))

	cm := readComputed(ctx, t, newSinkConsumer(t, broker))
	assertHeaders(t, cm)
	assert.Equal(t, "48113", cm.Result.Region.FIPS)
	assert.Len(t, cm.Result.Metrics, 30)
	assert.JSONEq(t, "16.1", string(cm.Result.Latest["caseDensity"]))
	assert.JSONEq(t, `{"source":"CDCTesting"}`, string(cm.Result.Latest["testPositivityRatioDetails"]))
}

// TestPipelineEndToEnd wires the full pipeline (Reader → Transformer → Writer) with
// real Kafka and verifies every test region is computed.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := testConfig(broker, "test-pipeline")

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := make([]kafkago.Message, 0, len(testRegions))
	for _, name := range testRegions {
		msgs = append(msgs, kafkago.Message{Key: []byte(name), Value: loadRegionPayload(t, name)})
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(reader, newTransformer(t), writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := newSinkConsumer(t, broker)
	received := make(map[string]computedMessage, len(testRegions))
	for len(received) < len(testRegions) {
		cm := readComputed(ctx, t, consumer)
		received[cm.Key] = cm
	}

	pipelineCancel()
	require.NoError(t, <-errCh)
	assert.True(t, p.Ready())

	for _, cm := range received {
		assertHeaders(t, cm)
	}

	county := received["48113"]
	assert.Equal(t, domain.LevelCounty, county.Result.Region.Level)
	assert.JSONEq(t, "0.99", string(county.Result.Latest["infectionRate"]))

	state := received["40"]
	assert.Equal(t, domain.LevelState, state.Result.Region.Level)
	assert.JSONEq(t, "7.6", string(state.Result.Latest["caseDensity"]))
	assert.JSONEq(t, `{"source":"other"}`, string(state.Result.Latest["testPositivityRatioDetails"]))

	empty := received["02"]
	assert.Empty(t, empty.Result.Metrics)
	assert.Nil(t, empty.Result.Latest)
}

// TestPipelineTransformError verifies that an invalid message (poison pill) is
// skipped and the pipeline continues processing valid messages.
func TestPipelineTransformError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := testConfig(broker, "test-poison")

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("unknown-level"), Value: []byte(`{"region":{"fips":"1","level":"zip"},"population":1,"dates":[]}`)},
		kafkago.Message{Key: []byte("good"), Value: loadRegionPayload(t, "state_40.json")},
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(reader, newTransformer(t), writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	// Only the valid message should appear on the sink topic.
	consumer := newSinkConsumer(t, broker)
	cm := readComputed(ctx, t, consumer)
	assert.Equal(t, "40", cm.Key)

	// Verify no second message arrives (the poison pills were skipped).
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
