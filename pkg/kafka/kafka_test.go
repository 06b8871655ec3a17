package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fernctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/notification"
)

const arnEvent = `{
  "id": "evt-1",
  "topic": "custom domains/arn",
  "subject": "/subscriptions/SUB1/resourceGroups/rg1/providers/Microsoft.Web/sites/R1/providers/microsoft.insights/diagnosticSettings/ds1",
  "eventType": "Microsoft.Insights/diagnosticSettings/write",
  "eventTime": "2026-01-02T03:04:05Z",
  "data": {
    "homeTenantId": "tenant-data",
    "resources": [
      {
        "resourceId": "/subscriptions/SUB1/resourceGroups/rg1/providers/Microsoft.Web/sites/R1/providers/microsoft.insights/diagnosticSettings/ds1",
        "correlationId": "corr-1",
        "homeTenantId": "tenant-1",
        "armResource": {"properties": {"marketplacePartnerId": "/subscriptions/SUB1/resourceGroups/rg/providers/NewRelic.Observability/monitors/m1"}}
      },
      {
        "resourceId": "/subscriptions/SUB1/resourceGroups/rg1/providers/Microsoft.Web/sites/R2/providers/microsoft.insights/diagnosticSettings/ds2",
        "correlationId": "corr-2"
      }
    ]
  }
}`

func silentLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeProcessor struct {
	mu      sync.Mutex
	calls   []models.DiagnosticSettingsNotification
	sources []string
	errs    map[string]error
}

func (f *fakeProcessor) Process(ctx context.Context, n models.DiagnosticSettingsNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, n)
	f.sources = append(f.sources, fernctx.GetSource(ctx))
	return f.errs[n.DiagnosticSettingsID]
}

type fakeDeadLetters struct {
	letters []DeadLetter
	err     error
}

func (f *fakeDeadLetters) Publish(_ context.Context, letter DeadLetter) error {
	f.letters = append(f.letters, letter)
	return f.err
}

func TestIncomingMessage_ParsePayloads(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantCount int
		wantErr   bool
	}{
		{name: "single event", value: arnEvent, wantCount: 1},
		{name: "batch", value: "[" + arnEvent + "," + arnEvent + "]", wantCount: 2},
		{name: "empty", value: "  ", wantErr: true},
		{name: "garbage", value: "{not json", wantErr: true},
		{name: "bad batch", value: "[1,2]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &IncomingMessage{Value: []byte(tt.value)}
			payloads, err := msg.ParsePayloads()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, payloads, tt.wantCount)
		})
	}
}

func TestIncomingMessage_Notifications(t *testing.T) {
	msg := &IncomingMessage{Value: []byte(arnEvent)}

	notifications, err := msg.Notifications()
	require.NoError(t, err)
	require.Len(t, notifications, 2)

	assert.Equal(t, "tenant-1", notifications[0].TenantID)
	assert.Equal(t, "/subscriptions/SUB1/resourceGroups/rg/providers/NewRelic.Observability/monitors/m1", notifications[0].MonitorID)
	assert.Equal(t, "corr-1", notifications[0].CorrelationID)
	assert.Equal(t, "Microsoft.Insights/diagnosticSettings/write", notifications[0].EventType)

	assert.Equal(t, "tenant-data", notifications[1].TenantID)
	assert.Empty(t, notifications[1].MonitorID)
}

func TestNotificationHandler_ProcessesEveryResource(t *testing.T) {
	processor := &fakeProcessor{}
	deadLetters := &fakeDeadLetters{}
	h := NewNotificationHandler(processor, deadLetters, silentLogger())

	require.NoError(t, h.Handle(context.Background(), &IncomingMessage{Topic: "arn", Value: []byte(arnEvent)}))

	assert.Len(t, processor.calls, 2)
	assert.Equal(t, []string{fernctx.SourceKafka, fernctx.SourceKafka}, processor.sources)
	assert.Empty(t, deadLetters.letters)
}

func TestNotificationHandler_DeadLettersRejectedNotifications(t *testing.T) {
	processor := &fakeProcessor{errs: map[string]error{
		"/subscriptions/SUB1/resourceGroups/rg1/providers/Microsoft.Web/sites/R1/providers/microsoft.insights/diagnosticSettings/ds1": fmt.Errorf("%w: unknown event type", notification.ErrInvalidArgument),
		"/subscriptions/SUB1/resourceGroups/rg1/providers/Microsoft.Web/sites/R2/providers/microsoft.insights/diagnosticSettings/ds2": errors.New("lock not acquired"),
	}}
	deadLetters := &fakeDeadLetters{}
	h := NewNotificationHandler(processor, deadLetters, silentLogger())

	require.NoError(t, h.Handle(context.Background(), &IncomingMessage{Topic: "arn", Partition: 3, Offset: 42, Value: []byte(arnEvent)}))

	assert.Len(t, processor.calls, 2)
	require.Len(t, deadLetters.letters, 2)
	assert.Equal(t, ReasonInvalid, deadLetters.letters[0].Reason)
	assert.Equal(t, "corr-1", deadLetters.letters[0].CorrelationID)
	require.NotNil(t, deadLetters.letters[0].Notification)
	assert.Equal(t, "tenant-1", deadLetters.letters[0].Notification.TenantID)
	assert.Equal(t, ReasonFailed, deadLetters.letters[1].Reason)
	assert.Equal(t, int64(42), deadLetters.letters[1].Offset)
}

func TestNotificationHandler_UnparsableMessage(t *testing.T) {
	processor := &fakeProcessor{}

	t.Run("dead lettered", func(t *testing.T) {
		deadLetters := &fakeDeadLetters{}
		h := NewNotificationHandler(processor, deadLetters, silentLogger())

		require.NoError(t, h.Handle(context.Background(), &IncomingMessage{Topic: "arn", Value: []byte("nope")}))
		require.Len(t, deadLetters.letters, 1)
		assert.Equal(t, ReasonUnparsable, deadLetters.letters[0].Reason)
		assert.Equal(t, []byte("nope"), []byte(deadLetters.letters[0].Value))
	})

	t.Run("dead letter failure is returned", func(t *testing.T) {
		deadLetters := &fakeDeadLetters{err: errors.New("broker down")}
		h := NewNotificationHandler(processor, deadLetters, silentLogger())

		assert.Error(t, h.Handle(context.Background(), &IncomingMessage{Topic: "arn", Value: []byte("nope")}))
	})

	t.Run("without dead letters", func(t *testing.T) {
		h := NewNotificationHandler(processor, nil, silentLogger())
		assert.NoError(t, h.Handle(context.Background(), &IncomingMessage{Topic: "arn", Value: []byte("nope")}))
	})

	assert.Empty(t, processor.calls)
}

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestDeadLetterProducer_Publish(t *testing.T) {
	writer := &fakeWriter{}
	p := newDeadLetterProducer(writer, "dlq", silentLogger())

	require.NoError(t, p.Publish(context.Background(), DeadLetter{
		Reason:      ReasonUnparsable,
		Error:       "bad",
		SourceTopic: "arn",
		Partition:   1,
		Offset:      7,
		Value:       []byte("not json"),
	}))
	require.NoError(t, p.Close())

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "dlq", msg.Topic)
	assert.Equal(t, "arn/1/7", string(msg.Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "not json", decoded["value"])
	assert.Equal(t, ReasonUnparsable, decoded["reason"])
	assert.NotEmpty(t, decoded["failed_at"])
	assert.True(t, writer.closed)
}

func TestDeadLetterProducer_PublishError(t *testing.T) {
	p := newDeadLetterProducer(&fakeWriter{err: errors.New("down")}, "dlq", silentLogger())
	assert.Error(t, p.Publish(context.Background(), DeadLetter{Reason: ReasonFailed}))
}

func TestCompressionCodec(t *testing.T) {
	assert.Equal(t, kafka.Gzip, compressionCodec("gzip"))
	assert.Equal(t, kafka.Lz4, compressionCodec("lz4"))
	assert.Equal(t, kafka.Zstd, compressionCodec("zstd"))
	assert.Equal(t, kafka.Compression(0), compressionCodec("none"))
	assert.Equal(t, kafka.Snappy, compressionCodec(""))
}

type fakeReader struct {
	mu        sync.Mutex
	messages  chan kafka.Message
	committed []kafka.Message
	closed    bool
	fetchErr  error
	fetches   int
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	f.fetches++
	fetchErr := f.fetchErr
	f.mu.Unlock()
	if fetchErr != nil {
		return kafka.Message{}, fetchErr
	}

	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case msg := <-f.messages:
		return msg, nil
	}
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func (f *fakeReader) commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

func (f *fakeReader) committedOffsets() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	offsets := make([]int64, 0, len(f.committed))
	for _, m := range f.committed {
		offsets = append(offsets, m.Offset)
	}
	return offsets
}

func (f *fakeReader) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeReader) setFetchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

func newTestConsumer(reader messageReader, handler MessageHandler) *Consumer {
	c := newConsumer(reader, "arn", silentLogger(), handler)
	c.minBackoff = time.Millisecond
	c.maxBackoff = 5 * time.Millisecond
	return c
}

func TestConsumer_RetriesFailedMessageBeforeCommittingLaterOffsets(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 2)}
	var mu sync.Mutex
	attempts := map[int64]int{}
	handler := func(_ context.Context, msg *IncomingMessage) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[msg.Offset]++
		if msg.Offset == 1 && attempts[msg.Offset] < 3 {
			return errors.New("dead letter failed")
		}
		return nil
	}
	c := newTestConsumer(reader, handler)

	reader.messages <- kafka.Message{Topic: "arn", Offset: 1, Value: []byte(arnEvent), Headers: []kafka.Header{{Key: "k", Value: []byte("v")}}}
	reader.messages <- kafka.Message{Topic: "arn", Offset: 2, Value: []byte(arnEvent)}

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Healthy())

	assert.Eventually(t, func() bool { return reader.commits() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())

	assert.Equal(t, []int64{1, 2}, reader.committedOffsets())
	mu.Lock()
	assert.Equal(t, 3, attempts[1])
	assert.Equal(t, 1, attempts[2])
	mu.Unlock()
	assert.True(t, reader.closed)
	assert.False(t, c.Healthy())
}

func TestConsumer_PersistentFailureBlocksLaterOffsets(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 2)}
	var mu sync.Mutex
	var handled []int64
	handler := func(_ context.Context, msg *IncomingMessage) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, msg.Offset)
		if msg.Offset == 1 {
			return errors.New("dead letter failed")
		}
		return nil
	}
	c := newTestConsumer(reader, handler)

	reader.messages <- kafka.Message{Topic: "arn", Offset: 1, Value: []byte(arnEvent)}
	reader.messages <- kafka.Message{Topic: "arn", Offset: 2, Value: []byte(arnEvent)}

	require.NoError(t, c.Start(context.Background()))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) >= 3
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())

	assert.Zero(t, reader.commits())
	assert.Len(t, reader.messages, 1, "offset 2 is never fetched while offset 1 fails")
	mu.Lock()
	assert.NotContains(t, handled, int64(2))
	mu.Unlock()
}

func TestConsumer_BacksOffOnFetchErrors(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 1), fetchErr: errors.New("broker unavailable")}
	c := newConsumer(reader, "arn", silentLogger(), func(context.Context, *IncomingMessage) error { return nil })
	c.minBackoff = 20 * time.Millisecond
	c.maxBackoff = 40 * time.Millisecond

	require.NoError(t, c.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	assert.Less(t, reader.fetchCount(), 10)

	reader.setFetchErr(nil)
	reader.messages <- kafka.Message{Topic: "arn", Offset: 7, Value: []byte(arnEvent)}
	assert.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())

	assert.Equal(t, []int64{7}, reader.committedOffsets())
}

func TestConsumer_NextBackoff(t *testing.T) {
	c := newTestConsumer(&fakeReader{}, nil)

	assert.Equal(t, 2*time.Millisecond, c.nextBackoff(time.Millisecond))
	assert.Equal(t, 5*time.Millisecond, c.nextBackoff(4*time.Millisecond))
	assert.Equal(t, 5*time.Millisecond, c.nextBackoff(5*time.Millisecond))
}
