package broker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	spans  []trace.SpanContext
	block  chan struct{}
	closed bool
}

func (r *recordingPublisher) Publish(ctx context.Context, ev Event) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	r.spans = append(r.spans, trace.SpanContextFromContext(ctx))
	return nil
}

func (r *recordingPublisher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingPublisher) snapshot() ([]Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...), r.closed
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "noop", cfg: Config{Driver: DriverNoop}},
		{name: "kafka", cfg: Config{Driver: DriverKafka, Brokers: []string{"k:9092"}, Prefix: "advisor"}},
		{name: "kafka without brokers", cfg: Config{Driver: DriverKafka, Prefix: "advisor"}, wantErr: true},
		{name: "rabbitmq without url", cfg: Config{Driver: DriverRabbitMQ, Prefix: "advisor"}, wantErr: true},
		{name: "nats without prefix", cfg: Config{Driver: DriverNATS, URL: "nats://n"}, wantErr: true},
		{name: "unknown", cfg: Config{Driver: "sqs"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_Noop(t *testing.T) {
	p, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	assert.IsType(t, Noop{}, p)
	assert.NoError(t, p.Publish(context.Background(), NewEvent("user.registered", "a@b.edu", nil)))
	assert.NoError(t, p.Close())
}

func TestDestination(t *testing.T) {
	assert.Equal(t, "advisor.chat.message_posted", Destination("advisor", "chat.message_posted"))
	assert.Equal(t, "user.registered", Destination("", "user.registered"))
}

func TestKafka_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewKafkaConfig("advisor-test"))
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		assert.Equal(t, "user.registered", ev.Type)
		assert.Equal(t, "a@b.edu", ev.Key)
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	k := NewKafkaFromProducer(producer, "advisor")
	require.NoError(t, k.Publish(context.Background(), NewEvent("user.registered", "a@b.edu", map[string]string{"provider": "manual"})))

	err := k.Publish(context.Background(), NewEvent("user.registered", "c@d.edu", nil))
	assert.ErrorIs(t, err, ErrPublish)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	require.NoError(t, k.Close())
}

func TestHeaders_PropagateTrace(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ev := NewEvent("documents.uploaded", "a@b.edu", nil)
	h := headers(trace.ContextWithSpanContext(context.Background(), sc), ev)

	assert.Equal(t, ev.ID, h[HeaderEventID])
	assert.Equal(t, "documents.uploaded", h[HeaderEventType])
	assert.Contains(t, h["traceparent"], sc.TraceID().String())
}

func TestAsync_DeliversInOrderAndDrainsOnClose(t *testing.T) {
	next := &recordingPublisher{}
	a := NewAsync(next, 16, time.Second, nil)

	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: trace.TraceID{9}, SpanID: trace.SpanID{9}})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	for _, typ := range []string{"a", "b", "c"} {
		require.NoError(t, a.Publish(ctx, NewEvent(typ, "", nil)))
	}
	require.NoError(t, a.Close())

	events, closed := next.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].Type)
	assert.Equal(t, "c", events[2].Type)
	assert.True(t, closed)
	assert.Equal(t, sc.TraceID(), next.spans[0].TraceID())

	assert.ErrorIs(t, a.Publish(context.Background(), NewEvent("d", "", nil)), ErrClosed)
	assert.NoError(t, a.Close())
}

func TestAsync_QueueFull(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	next := &recordingPublisher{block: make(chan struct{})}
	a := NewAsync(next, 1, time.Second, zap.New(core))

	// 第一个事件被后台协程取走并阻塞，第二个占满队列
	require.NoError(t, a.Publish(context.Background(), NewEvent("first", "", nil)))
	assert.Eventually(t, func() bool { return a.Pending() == 0 }, time.Second, time.Millisecond)
	require.NoError(t, a.Publish(context.Background(), NewEvent("second", "", nil)))

	assert.ErrorIs(t, a.Publish(context.Background(), NewEvent("third", "", nil)), ErrQueueFull)
	assert.Equal(t, 1, logs.FilterMessage("event dropped").Len())

	close(next.block)
	require.NoError(t, a.Close())
	events, _ := next.snapshot()
	assert.Len(t, events, 2)
}
