package notification

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	transitionWrite  = "write"
	transitionDelete = "delete"
	transitionNone   = "none"
)

// operation tracks one reconciliation: its span, its logger and whether any
// step failed. It is passed explicitly down the call chain.
type operation struct {
	scope      ScopeKind
	transition string
	skipped    bool
	failed     bool
	start      time.Time
	span       trace.Span
	log        ectologger.Logger
}

func startOperation(ctx context.Context, logger ectologger.Logger, scope ScopeKind, fields map[string]any) (context.Context, *operation) {
	ctx, span := tracing.StartSpan(ctx, "notification.Manager.ProcessNotification")
	span.SetAttributes(attribute.String("scope", string(scope)))

	fields["scope"] = string(scope)
	return ctx, &operation{
		scope:      scope,
		transition: transitionNone,
		start:      time.Now(),
		span:       span,
		log:        logger.WithContext(ctx).WithFields(fields),
	}
}

// with returns a logger carrying extra fields for one step.
func (o *operation) with(fields map[string]any) ectologger.Logger {
	return o.log.WithFields(fields)
}

func (o *operation) setTransition(transition string) {
	o.transition = transition
	o.span.SetAttributes(attribute.String("transition", transition))
}

func (o *operation) skip() {
	o.skipped = true
}

// fail marks the operation failed without aborting it.
func (o *operation) fail(err error) {
	o.failed = true
	tracing.RecordError(o.span, err)
}

func (o *operation) outcome() string {
	switch {
	case o.failed:
		return metrics.OutcomeFailed
	case o.skipped:
		return metrics.OutcomeSkipped
	default:
		return metrics.OutcomeSuccess
	}
}

func (o *operation) end() {
	outcome := o.outcome()
	metrics.NotificationsTotal.WithLabelValues(string(o.scope), o.transition, outcome).Inc()
	metrics.NotificationDuration.WithLabelValues(string(o.scope)).Observe(time.Since(o.start).Seconds())

	o.log.WithFields(map[string]any{
		"transition":  o.transition,
		"outcome":     outcome,
		"duration_ms": time.Since(o.start).Milliseconds(),
	}).Info("Diagnostic settings notification processed")
	o.span.End()
}
