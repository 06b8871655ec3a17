package kafka

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"

	fernctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/notification"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// NotificationProcessor reconciles a single notification.
type NotificationProcessor interface {
	Process(ctx context.Context, n models.DiagnosticSettingsNotification) error
}

// DeadLetterPublisher receives messages that could not be processed.
type DeadLetterPublisher interface {
	Publish(ctx context.Context, letter DeadLetter) error
}

// NotificationHandler turns ARN messages into processed notifications.
type NotificationHandler struct {
	processor   NotificationProcessor
	deadLetters DeadLetterPublisher
	logger      ectologger.Logger
}

// NewNotificationHandler builds a handler. deadLetters may be nil, in which
// case rejected messages are only logged.
func NewNotificationHandler(processor NotificationProcessor, deadLetters DeadLetterPublisher, logger ectologger.Logger) *NotificationHandler {
	return &NotificationHandler{
		processor:   processor,
		deadLetters: deadLetters,
		logger:      logger,
	}
}

// Handle processes every notification in the message. Only a failure to
// dead letter is returned, so the message is retried instead of lost.
func (h *NotificationHandler) Handle(ctx context.Context, msg *IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.NotificationHandler.Handle")
	defer span.End()

	ctx = fernctx.SetSource(ctx, fernctx.SourceKafka)
	log := h.logger.WithContext(ctx).WithFields(msg.Fields())

	notifications, err := msg.Notifications()
	if err != nil {
		metrics.MessagesConsumedTotal.WithLabelValues(msg.Topic, ReasonUnparsable).Inc()
		log.WithError(err).Error("Failed to parse ARN message")
		return h.deadLetter(ctx, msg, nil, ReasonUnparsable, err)
	}

	outcome := metrics.OutcomeSuccess
	for _, n := range notifications {
		nctx := fernctx.SetTenantID(ctx, n.TenantID)
		if n.CorrelationID != "" {
			nctx = fernctx.SetCorrelationID(nctx, n.CorrelationID)
		}

		err := h.processor.Process(nctx, n)
		if err == nil {
			continue
		}

		reason := ReasonFailed
		if errors.Is(err, notification.ErrInvalidArgument) {
			reason = ReasonInvalid
		}
		outcome = metrics.OutcomeFailed
		tracing.RecordError(span, err)
		h.logger.WithContext(nctx).WithFields(n.Fields()).WithError(err).Warn("Dropping diagnostic settings notification")

		if err := h.deadLetter(nctx, msg, &n, reason, err); err != nil {
			metrics.MessagesConsumedTotal.WithLabelValues(msg.Topic, metrics.OutcomeError).Inc()
			return err
		}
	}

	metrics.MessagesConsumedTotal.WithLabelValues(msg.Topic, outcome).Inc()
	return nil
}

func (h *NotificationHandler) deadLetter(ctx context.Context, msg *IncomingMessage, n *models.DiagnosticSettingsNotification, reason string, cause error) error {
	if h.deadLetters == nil {
		return nil
	}

	letter := DeadLetter{
		Reason:        reason,
		Error:         cause.Error(),
		SourceTopic:   msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		CorrelationID: fernctx.GetCorrelationID(ctx),
	}
	if n != nil {
		letter.Notification = n
	} else {
		letter.Value = msg.Value
	}
	return h.deadLetters.Publish(ctx, letter)
}
