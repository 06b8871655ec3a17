package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/diagnosticsettings"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/utils"
)

type ProcessorConfig struct {
	// ProviderNamespace is the partner's resource provider, e.g. NewRelic.
	ProviderNamespace string
	// Locker, when set, serializes notifications for the same monitored resource.
	Locker Locker
}

// Processor is the entry point for diagnostic settings notifications.
type Processor struct {
	managers         map[ScopeKind]NotificationManager
	partners         PartnerResourceStore
	relationships    MonitoringRelationshipStore
	providerPrefixes []string
	locker           Locker
	logger           ectologger.Logger
}

// NewProcessor builds a processor with one manager per scope.
func NewProcessor(deps Dependencies, config ProcessorConfig) *Processor {
	return newProcessor(deps, config, map[ScopeKind]NotificationManager{
		ScopeResource:     NewManager(ResourceScope(), deps),
		ScopeSubscription: NewManager(SubscriptionScope(), deps),
		ScopeTenant:       NewManager(TenantScope(), deps),
	})
}

func newProcessor(deps Dependencies, config ProcessorConfig, managers map[ScopeKind]NotificationManager) *Processor {
	ns := strings.ToLower(config.ProviderNamespace)
	return &Processor{
		managers:      managers,
		partners:      deps.Partners,
		relationships: deps.Relationships,
		providerPrefixes: []string{
			"/providers/" + ns + "/",
			"/providers/" + ns + ".observability/",
		},
		locker: config.Locker,
		logger: deps.Logger,
	}
}

// Process validates, resolves and reconciles one notification. Notifications
// whose monitor cannot be resolved are dropped. Errors from the managers are
// logged and not returned; validation and resolution errors are.
func (p *Processor) Process(ctx context.Context, n models.DiagnosticSettingsNotification) error {
	ctx, span := tracing.StartSpan(ctx, "notification.Processor.Process")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(n.Fields())

	if _, err := utils.Validate(n); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	monitorID, err := p.ResolveMonitorID(ctx, n)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	if monitorID == "" {
		metrics.NotificationsTotal.WithLabelValues(string(ScopeFor(n.DiagnosticSettingsID)), transitionNone, metrics.OutcomeDropped).Inc()
		log.Info("Monitor is not relevant to this service, dropping notification")
		return nil
	}
	n = n.WithMonitorID(monitorID)

	manager := p.ManagerFor(n.DiagnosticSettingsID)
	var managerErr error
	run := func(ctx context.Context) error {
		managerErr = manager.ProcessNotification(ctx, n)
		return nil
	}

	if p.locker != nil {
		key := lockKey(n)
		if err := p.locker.WithLock(ctx, key, run); err != nil {
			tracing.RecordError(span, err)
			return fmt.Errorf("failed to lock %s: %w", key, err)
		}
	} else {
		_ = run(ctx)
	}

	if managerErr != nil {
		tracing.RecordError(span, managerErr)
		log.WithError(managerErr).Error("Failed to reconcile diagnostic settings notification")
	}
	return nil
}

// ManagerFor returns the manager for the scope of a diagnostic settings id.
func (p *Processor) ManagerFor(diagnosticSettingsID string) NotificationManager {
	return p.managers[ScopeFor(diagnosticSettingsID)]
}

// ResolveMonitorID returns the monitor a notification is about, or "" when the
// notification should be dropped. The notification is not modified.
func (p *Processor) ResolveMonitorID(ctx context.Context, n models.DiagnosticSettingsNotification) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "notification.Processor.ResolveMonitorID")
	defer span.End()

	eventType := strings.ToLower(n.EventType)

	switch {
	case diagnosticsettings.DoesDiagnosticSettingsBelongToTenant(n.DiagnosticSettingsID):
		if n.MonitorID != "" {
			return n.MonitorID, nil
		}
		return p.monitorFromRelationships(ctx, n.TenantID, n.TenantID,
			diagnosticsettings.ExtractDiagnosticSettingsNameForAAD(n.DiagnosticSettingsID))

	case strings.Contains(eventType, transitionWrite):
		if p.isPartnerMonitor(n.MonitorID) {
			return n.MonitorID, nil
		}
		return "", nil

	case strings.Contains(eventType, transitionDelete):
		return p.monitorFromRelationships(ctx, n.TenantID,
			diagnosticsettings.ExtractMonitoredResourceID(n.DiagnosticSettingsID),
			diagnosticsettings.ExtractDiagnosticSettingsName(n.DiagnosticSettingsID))

	default:
		err := fmt.Errorf("%w: unknown event type %q", ErrInvalidArgument, n.EventType)
		tracing.RecordError(span, err)
		return "", err
	}
}

func (p *Processor) isPartnerMonitor(monitorID string) bool {
	if monitorID == "" {
		return false
	}
	id := strings.ToLower(monitorID)
	return len(ectolinq.Filter(p.providerPrefixes, func(prefix string) bool {
		return strings.Contains(id, prefix)
	})) > 0
}

// monitorFromRelationships finds the monitor a stored relationship with the
// given setting name points at.
func (p *Processor) monitorFromRelationships(ctx context.Context, tenantID, monitoredResourceID, settingsName string) (string, error) {
	normalized := diagnosticsettings.NormalizeResourceID(monitoredResourceID)
	relationships, err := p.relationships.ListByMonitoredResource(ctx, tenantID, normalized)
	if err != nil {
		return "", fmt.Errorf("failed to list monitoring relationships for %s: %w", normalized, err)
	}

	matches := ectolinq.Filter(relationships, func(r models.MonitoringRelationship) bool {
		return strings.EqualFold(r.DiagnosticSettingsName, settingsName)
	})
	if len(matches) == 0 {
		return "", nil
	}

	partner, err := p.partners.Get(ctx, matches[0].PartnerEntityID)
	if err != nil {
		return "", fmt.Errorf("failed to get partner resource %s: %w", matches[0].PartnerEntityID, err)
	}
	if partner == nil {
		return "", nil
	}
	return partner.ResourceID, nil
}

func lockKey(n models.DiagnosticSettingsNotification) string {
	monitored := diagnosticsettings.ExtractMonitoredResourceID(n.DiagnosticSettingsID)
	if monitored == "" {
		monitored = n.TenantID
	}
	return strings.ToLower(n.TenantID) + ":" + diagnosticsettings.NormalizeResourceID(monitored)
}
