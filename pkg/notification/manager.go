package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/diagnosticsettings"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Dependencies are the collaborators shared by the managers and the processor.
type Dependencies struct {
	Partners      PartnerResourceStore
	Relationships MonitoringRelationshipStore
	Statuses      MonitoringStatusStore
	Settings      DiagnosticSettingsManager
	Selector      SubscriptionVersionSelector
	Logger        ectologger.Logger
}

// Manager reconciles the partner, relationship and status stores with the
// diagnostic settings that actually exist in Azure, for one scope.
type Manager struct {
	scope         Scope
	partners      PartnerResourceStore
	relationships MonitoringRelationshipStore
	statuses      MonitoringStatusStore
	settings      DiagnosticSettingsManager
	selector      SubscriptionVersionSelector
	logger        ectologger.Logger
}

func NewManager(scope Scope, deps Dependencies) *Manager {
	return &Manager{
		scope:         scope,
		partners:      deps.Partners,
		relationships: deps.Relationships,
		statuses:      deps.Statuses,
		settings:      deps.Settings,
		selector:      deps.Selector,
		logger:        deps.Logger,
	}
}

// ProcessNotification reconciles one notification. The monitor id must already be resolved.
func (m *Manager) ProcessNotification(ctx context.Context, n models.DiagnosticSettingsNotification) error {
	ctx, op := startOperation(ctx, m.logger, m.scope.Kind(), n.Fields())
	defer op.end()

	var err error
	if m.scope.Kind() == ScopeTenant {
		err = m.processTenant(ctx, op, n)
	} else {
		err = m.processARM(ctx, op, n)
	}
	if err != nil {
		op.fail(err)
	}
	return err
}

func (m *Manager) processARM(ctx context.Context, op *operation, n models.DiagnosticSettingsNotification) error {
	subscriptionID := diagnosticsettings.ExtractSubscriptionID(n.DiagnosticSettingsID)
	isV2, err := m.selector.IsV2Subscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to check subscription version of %s: %w", subscriptionID, err)
	}
	if !isV2 {
		op.with(map[string]any{"subscription_id": subscriptionID}).Info("Subscription is not on V2, skipping notification")
		op.skip()
		return nil
	}

	model, err := m.settings.GetResourceDiagnosticSettings(ctx, n.DiagnosticSettingsID, n.TenantID)
	if err != nil || model == nil {
		if err != nil {
			op.log.WithError(err).Warn("Could not fetch diagnostic setting, treating it as deleted")
		}
		op.setTransition(transitionDelete)
		return m.processDelete(ctx, op, n)
	}

	op.setTransition(transitionWrite)
	return m.processWrite(ctx, op, n, model)
}

// processTenant branches on the operation type. AAD settings are not read back from Azure.
func (m *Manager) processTenant(ctx context.Context, op *operation, n models.DiagnosticSettingsNotification) error {
	eventType := strings.ToLower(n.EventType)
	switch {
	case strings.Contains(eventType, transitionWrite):
		op.setTransition(transitionWrite)
	case strings.Contains(eventType, transitionDelete):
		op.setTransition(transitionDelete)
	default:
		return fmt.Errorf("%w: unknown operation type %q", ErrInvalidArgument, n.EventType)
	}

	rel, ok, err := m.relationshipModel(ctx, op, n)
	if err != nil || !ok {
		return err
	}

	if op.transition == transitionWrite {
		m.addEntitiesIfNeeded(ctx, op, rel, nil)
		return nil
	}
	return m.deleteEntitiesOfDeletedUserDiagnosticSettings(ctx, op, rel)
}

func (m *Manager) processWrite(ctx context.Context, op *operation, n models.DiagnosticSettingsNotification, model *models.DiagnosticSettingsModel) error {
	rel, ok, err := m.relationshipModel(ctx, op, n)
	if err != nil || !ok {
		return err
	}

	platformManaged, err := m.isPlatformManaged(ctx, rel)
	if err != nil {
		return err
	}

	if platformManaged {
		if model.HasDisabledLogs() {
			op.with(rel.Fields()).Warn("Platform managed diagnostic setting has disabled logs, restoring")
			m.restore(ctx, op, rel)
			return nil
		}
		op.with(rel.Fields()).Debug("Platform managed diagnostic setting has no drift")
		return nil
	}

	return m.syncWithUserDiagnosticSettings(ctx, op, rel, model)
}

func (m *Manager) processDelete(ctx context.Context, op *operation, n models.DiagnosticSettingsNotification) error {
	rel, ok, err := m.relationshipModel(ctx, op, n)
	if err != nil || !ok {
		return err
	}

	platformManaged, err := m.isPlatformManaged(ctx, rel)
	if err != nil {
		return err
	}

	if platformManaged {
		op.with(rel.Fields()).Warn("Platform managed diagnostic setting was deleted, restoring")
		m.restore(ctx, op, rel)
		return nil
	}

	return m.deleteEntitiesOfDeletedUserDiagnosticSettings(ctx, op, rel)
}

// relationshipModel resolves the partner for the notification's monitor. ok is
// false when the monitor is not registered, which is not an error.
func (m *Manager) relationshipModel(ctx context.Context, op *operation, n models.DiagnosticSettingsNotification) (models.MonitoringRelationshipModel, bool, error) {
	partners, err := m.partners.List(ctx, n.MonitorID)
	if err != nil {
		return models.MonitoringRelationshipModel{}, false, fmt.Errorf("failed to list partner resources for %s: %w", n.MonitorID, err)
	}
	if len(partners) == 0 {
		op.log.Info("Monitor is not registered, nothing to reconcile")
		op.skip()
		return models.MonitoringRelationshipModel{}, false, nil
	}

	monitoredResourceID, settingsName := m.scope.Identifiers(n.DiagnosticSettingsID, n.TenantID)
	return models.MonitoringRelationshipModel{
		PartnerEntityID:        partners[0].EntityID,
		MonitorID:              n.MonitorID,
		MonitoredResourceID:    monitoredResourceID,
		DiagnosticSettingsID:   n.DiagnosticSettingsID,
		DiagnosticSettingsName: settingsName,
		TenantID:               n.TenantID,
	}, true, nil
}

func (m *Manager) isPlatformManaged(ctx context.Context, rel models.MonitoringRelationshipModel) (bool, error) {
	status, err := m.statuses.Get(ctx, rel.TenantID, rel.PartnerEntityID, rel.MonitoredResourceID)
	if err != nil {
		return false, fmt.Errorf("failed to get monitoring status: %w", err)
	}
	return status != nil && status.Reason.IsPlatformManaged(), nil
}

// syncWithUserDiagnosticSettings brings the stores in line with a user created setting.
func (m *Manager) syncWithUserDiagnosticSettings(ctx context.Context, op *operation, rel models.MonitoringRelationshipModel, model *models.DiagnosticSettingsModel) error {
	if err := m.removeEntitiesForRemovedDiagnosticSettings(ctx, op, rel); err != nil {
		return err
	}
	m.addEntitiesIfNeeded(ctx, op, rel, model)
	return nil
}

// removeEntitiesForRemovedDiagnosticSettings deletes user created records on the
// monitored resource whose diagnostic setting no longer points at their partner.
func (m *Manager) removeEntitiesForRemovedDiagnosticSettings(ctx context.Context, op *operation, rel models.MonitoringRelationshipModel) error {
	statuses, err := m.statuses.ListByMonitoredResource(ctx, rel.TenantID, rel.MonitoredResourceID)
	if err != nil {
		return fmt.Errorf("failed to list monitoring statuses: %w", err)
	}

	userStatuses := ectolinq.Filter(statuses, func(s models.MonitoringStatus) bool {
		return s.Reason == models.ReasonCreatedByUser
	})
	if len(userStatuses) == 0 {
		return nil
	}

	live, err := m.settings.ListResourceDiagnosticSettings(ctx, rel.MonitoredResourceID, rel.TenantID)
	if err != nil {
		return fmt.Errorf("failed to list diagnostic settings of %s: %w", rel.MonitoredResourceID, err)
	}

	for _, status := range userStatuses {
		relationship, err := m.relationships.Get(ctx, status.TenantID, status.PartnerEntityID, status.MonitoredResourceID)
		if err != nil {
			return fmt.Errorf("failed to get monitoring relationship: %w", err)
		}

		if relationship != nil {
			partner, err := m.partners.Get(ctx, status.PartnerEntityID)
			if err != nil {
				return fmt.Errorf("failed to get partner resource %s: %w", status.PartnerEntityID, err)
			}
			if partner != nil && pointsAtPartner(live, relationship.DiagnosticSettingsName, partner.ResourceID) {
				continue
			}
		}

		op.with(map[string]any{
			"partner_entity_id":     status.PartnerEntityID,
			"monitored_resource_id": status.MonitoredResourceID,
		}).Info("Removing records of a diagnostic setting that no longer exists")
		if err := m.deleteEntities(ctx, status.TenantID, status.PartnerEntityID, status.MonitoredResourceID); err != nil {
			return err
		}
	}
	return nil
}

func pointsAtPartner(live []models.DiagnosticSettingsModel, settingsName, partnerResourceID string) bool {
	matches := ectolinq.Filter(live, func(ds models.DiagnosticSettingsModel) bool {
		return strings.EqualFold(ds.Name, settingsName) && strings.EqualFold(ds.MarketplacePartnerID, partnerResourceID)
	})
	return len(matches) > 0
}

// addEntitiesIfNeeded records a user created setting. Failures are logged and
// mark the operation failed; a later notification retries.
func (m *Manager) addEntitiesIfNeeded(ctx context.Context, op *operation, rel models.MonitoringRelationshipModel, model *models.DiagnosticSettingsModel) {
	log := op.with(rel.Fields())

	existing, err := m.relationships.Get(ctx, rel.TenantID, rel.PartnerEntityID, rel.MonitoredResourceID)
	if err != nil {
		log.WithError(err).Error("Failed to look up monitoring relationship")
		op.fail(err)
		return
	}
	if existing != nil {
		log.Debug("Monitoring relationship already exists")
		return
	}

	err = m.statuses.AddOrUpdate(ctx, models.MonitoringStatus{
		TenantID:            rel.TenantID,
		PartnerEntityID:     rel.PartnerEntityID,
		MonitoredResourceID: rel.MonitoredResourceID,
		IsMonitored:         true,
		Reason:              models.ReasonCreatedByUser,
	})
	metrics.EntityWritesTotal.WithLabelValues("status", "upsert", metrics.Outcome(err)).Inc()
	if err != nil {
		log.WithError(err).Error("Failed to add monitoring status")
		op.fail(err)
		return
	}

	relationship := models.MonitoringRelationship{
		TenantID:               rel.TenantID,
		PartnerEntityID:        rel.PartnerEntityID,
		MonitoredResourceID:    rel.MonitoredResourceID,
		DiagnosticSettingsName: rel.DiagnosticSettingsName,
	}
	if model != nil {
		relationship.AuthorizationRuleID = model.EventHubAuthorizationRuleID
		relationship.EventhubName = model.EventHubName
	}

	err = m.relationships.Add(ctx, relationship)
	switch {
	case errors.Is(err, models.ErrDuplicatedKey):
		// a concurrent delivery of the same notification inserted it first
		metrics.EntityWritesTotal.WithLabelValues("relationship", "insert", "duplicate").Inc()
		log.Info("Monitoring relationship was already added")
	case err != nil:
		metrics.EntityWritesTotal.WithLabelValues("relationship", "insert", metrics.OutcomeError).Inc()
		log.WithError(err).Error("Failed to add monitoring relationship")
		op.fail(err)
	default:
		metrics.EntityWritesTotal.WithLabelValues("relationship", "insert", metrics.OutcomeSuccess).Inc()
		log.Info("Monitoring relationship added")
	}
}

// deleteEntitiesOfDeletedUserDiagnosticSettings removes the records of a user
// setting that was deleted. Failures propagate.
func (m *Manager) deleteEntitiesOfDeletedUserDiagnosticSettings(ctx context.Context, op *operation, rel models.MonitoringRelationshipModel) error {
	relationship, err := m.relationships.Get(ctx, rel.TenantID, rel.PartnerEntityID, rel.MonitoredResourceID)
	if err != nil {
		return fmt.Errorf("failed to get monitoring relationship: %w", err)
	}
	if relationship == nil {
		op.with(rel.Fields()).Debug("No monitoring relationship to delete")
		return nil
	}

	if err := m.deleteEntities(ctx, rel.TenantID, rel.PartnerEntityID, rel.MonitoredResourceID); err != nil {
		return err
	}
	op.with(rel.Fields()).Info("Monitoring relationship and status deleted")
	return nil
}

// deleteEntities removes the relationship before the status. A failure in
// between leaves a CreatedByUser status without a relationship, which the next
// sweep removes.
func (m *Manager) deleteEntities(ctx context.Context, tenantID, partnerEntityID, monitoredResourceID string) error {
	_, err := m.relationships.Delete(ctx, tenantID, partnerEntityID, monitoredResourceID)
	metrics.EntityWritesTotal.WithLabelValues("relationship", "delete", metrics.Outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("failed to delete monitoring relationship: %w", err)
	}

	_, err = m.statuses.Delete(ctx, tenantID, partnerEntityID, monitoredResourceID)
	metrics.EntityWritesTotal.WithLabelValues("status", "delete", metrics.Outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("failed to delete monitoring status: %w", err)
	}
	return nil
}

// restore recreates a platform managed setting. A failure is recorded as a
// status with Reason Other and marks the operation failed.
func (m *Manager) restore(ctx context.Context, op *operation, rel models.MonitoringRelationshipModel) {
	log := op.with(rel.Fields())

	err := m.scope.Restore(ctx, m.settings, rel)
	if err == nil {
		metrics.RestoresTotal.WithLabelValues(string(m.scope.Kind()), metrics.OutcomeSuccess).Inc()
		log.Info("Diagnostic setting restored")
		return
	}

	metrics.RestoresTotal.WithLabelValues(string(m.scope.Kind()), metrics.OutcomeFailed).Inc()
	log.WithError(err).Error("Failed to restore diagnostic setting")
	op.fail(err)

	statusErr := m.statuses.AddOrUpdate(ctx, models.MonitoringStatus{
		TenantID:            rel.TenantID,
		PartnerEntityID:     rel.PartnerEntityID,
		MonitoredResourceID: rel.MonitoredResourceID,
		IsMonitored:         false,
		Reason:              models.ReasonOther,
	})
	metrics.EntityWritesTotal.WithLabelValues("status", "upsert", metrics.Outcome(statusErr)).Inc()
	if statusErr != nil {
		log.WithError(statusErr).Error("Failed to record restore failure")
	}
}
