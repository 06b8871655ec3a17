package notification

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/fern/pkg/diagnosticsettings"
	"github.com/Ramsey-B/fern/pkg/models"
)

// ScopeKind is the level a diagnostic setting is attached to.
type ScopeKind string

const (
	ScopeResource     ScopeKind = "resource"
	ScopeSubscription ScopeKind = "subscription"
	ScopeTenant       ScopeKind = "tenant"
)

// Scope holds what differs between resource, subscription and tenant
// diagnostic settings. The reconciliation algorithm is shared.
type Scope interface {
	Kind() ScopeKind
	// Identifiers returns the normalized monitored resource id and the setting name.
	Identifiers(diagnosticSettingsID, tenantID string) (monitoredResourceID, settingsName string)
	// Restore recreates a platform managed diagnostic setting.
	Restore(ctx context.Context, settings DiagnosticSettingsManager, model models.MonitoringRelationshipModel) error
}

// ScopeFor classifies a diagnostic settings id.
func ScopeFor(diagnosticSettingsID string) ScopeKind {
	switch {
	case diagnosticsettings.DoesDiagnosticSettingsBelongToTenant(diagnosticSettingsID):
		return ScopeTenant
	case diagnosticsettings.DoesDiagnosticSettingsBelongToSubscription(diagnosticSettingsID):
		return ScopeSubscription
	default:
		return ScopeResource
	}
}

// armScope covers resource and subscription settings, which live under the
// microsoft.insights provider of the monitored resource.
type armScope struct {
	kind ScopeKind
}

func ResourceScope() Scope {
	return armScope{kind: ScopeResource}
}

func SubscriptionScope() Scope {
	return armScope{kind: ScopeSubscription}
}

func (s armScope) Kind() ScopeKind {
	return s.kind
}

func (s armScope) Identifiers(diagnosticSettingsID, _ string) (string, string) {
	return diagnosticsettings.NormalizeResourceID(diagnosticsettings.ExtractMonitoredResourceID(diagnosticSettingsID)),
		diagnosticsettings.ExtractDiagnosticSettingsName(diagnosticSettingsID)
}

func (s armScope) Restore(ctx context.Context, settings DiagnosticSettingsManager, model models.MonitoringRelationshipModel) error {
	return settings.CreateOrUpdateResourceDiagnosticSetting(ctx, model.MonitoredResourceID, model.DiagnosticSettingsName, model.MonitorID, model.TenantID)
}

// tenantScope covers AAD diagnostic settings. The tenant itself is the monitored resource.
type tenantScope struct{}

func TenantScope() Scope {
	return tenantScope{}
}

func (tenantScope) Kind() ScopeKind {
	return ScopeTenant
}

func (tenantScope) Identifiers(diagnosticSettingsID, tenantID string) (string, string) {
	return diagnosticsettings.NormalizeResourceID(tenantID),
		diagnosticsettings.ExtractDiagnosticSettingsNameForAAD(diagnosticSettingsID)
}

func (tenantScope) Restore(_ context.Context, _ DiagnosticSettingsManager, model models.MonitoringRelationshipModel) error {
	return fmt.Errorf("%w: restoring tenant diagnostic setting %s", ErrNotImplemented, model.DiagnosticSettingsID)
}
