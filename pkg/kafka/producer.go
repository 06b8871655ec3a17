package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Dead letter reasons.
const (
	ReasonUnparsable = "unparsable"
	ReasonInvalid    = "invalid"
	ReasonFailed     = "failed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// DeadLetter is a message that could not be reconciled.
type DeadLetter struct {
	Reason        string                                 `json:"reason"`
	Error         string                                 `json:"error"`
	SourceTopic   string                                 `json:"source_topic"`
	Partition     int                                    `json:"partition"`
	Offset        int64                                  `json:"offset"`
	Notification  *models.DiagnosticSettingsNotification `json:"notification,omitempty"`
	Value         json.RawMessage                        `json:"value,omitempty"`
	FailedAt      time.Time                              `json:"failed_at"`
	CorrelationID string                                 `json:"correlation_id,omitempty"`
}

// DeadLetterProducer publishes dead letters.
type DeadLetterProducer struct {
	writer messageWriter
	logger ectologger.Logger
	topic  string
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "none":
		return 0
	default:
		return kafka.Snappy
	}
}

func NewDeadLetterProducer(cfg ProducerConfig, logger ectologger.Logger) *DeadLetterProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compressionCodec(cfg.Compression),
		AllowAutoTopicCreation: true,
	}
	return newDeadLetterProducer(writer, cfg.Topic, logger)
}

func newDeadLetterProducer(writer messageWriter, topic string, logger ectologger.Logger) *DeadLetterProducer {
	return &DeadLetterProducer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

func (p *DeadLetterProducer) Close() error {
	return p.writer.Close()
}

// Publish writes a dead letter keyed by the source message coordinates.
func (p *DeadLetterProducer) Publish(ctx context.Context, letter DeadLetter) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.DeadLetterProducer.Publish")
	defer span.End()

	if letter.FailedAt.IsZero() {
		letter.FailedAt = time.Now().UTC()
	}
	if len(letter.Value) > 0 && !json.Valid(letter.Value) {
		// keep unparsable bytes as a JSON string
		quoted, _ := json.Marshal(string(letter.Value))
		letter.Value = quoted
	}

	data, err := json.Marshal(letter)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(letter.SourceTopic + "/" + strconv.Itoa(letter.Partition) + "/" + strconv.FormatInt(letter.Offset, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "reason", Value: []byte(letter.Reason)},
			{Key: "correlation_id", Value: []byte(letter.CorrelationID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		tracing.RecordError(span, err)
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish dead letter")
		return err
	}

	metrics.DeadLettersTotal.WithLabelValues(letter.Reason).Inc()
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"reason":    letter.Reason,
		"topic":     letter.SourceTopic,
		"partition": letter.Partition,
		"offset":    letter.Offset,
	}).Warn("Published dead letter")
	return nil
}
