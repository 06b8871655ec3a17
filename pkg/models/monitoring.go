package models

import "time"

// MonitoringStatusReason records why a resource is (or is not) monitored.
type MonitoringStatusReason string

const (
	// ReasonCreatedByUser means the user created the diagnostic setting directly.
	ReasonCreatedByUser MonitoringStatusReason = "CreatedByUser"
	// ReasonCapturedByRules means the platform created it from the monitor's tag rules.
	ReasonCapturedByRules MonitoringStatusReason = "CapturedByRules"
	// ReasonDiagnosticSettingsLimitReached means the resource already has the maximum number of settings.
	ReasonDiagnosticSettingsLimitReached MonitoringStatusReason = "DiagnosticSettingsLimitReached"
	// ReasonOther is written when the platform failed to manage the setting.
	ReasonOther MonitoringStatusReason = "Other"
)

// IsPlatformManaged reports whether the reason belongs to a setting this service owns.
func (r MonitoringStatusReason) IsPlatformManaged() bool {
	return r != ReasonCreatedByUser
}

// MonitoringRelationship says a monitored resource in a tenant has a
// diagnostic setting pointing at a partner monitor.
// At most one exists per (TenantID, PartnerEntityID, MonitoredResourceID).
type MonitoringRelationship struct {
	TenantID               string    `json:"tenant_id" db:"tenant_id"`
	PartnerEntityID        string    `json:"partner_entity_id" db:"partner_entity_id"`
	MonitoredResourceID    string    `json:"monitored_resource_id" db:"monitored_resource_id"`
	DiagnosticSettingsName string    `json:"diagnostic_settings_name" db:"diagnostic_settings_name"`
	AuthorizationRuleID    string    `json:"authorization_rule_id" db:"authorization_rule_id"`
	EventhubName           string    `json:"eventhub_name" db:"eventhub_name"`
	CreatedAtUTC           time.Time `json:"created_at_utc" db:"created_at_utc"`
}

// MonitoringStatus says whether a (tenant, partner, monitored resource) triple
// is monitored and why. At most one exists per triple.
type MonitoringStatus struct {
	TenantID            string                 `json:"tenant_id" db:"tenant_id"`
	PartnerEntityID     string                 `json:"partner_entity_id" db:"partner_entity_id"`
	MonitoredResourceID string                 `json:"monitored_resource_id" db:"monitored_resource_id"`
	IsMonitored         bool                   `json:"is_monitored" db:"is_monitored"`
	Reason              MonitoringStatusReason `json:"reason" db:"reason"`
	LastModifiedAtUTC   time.Time              `json:"last_modified_at_utc" db:"last_modified_at_utc"`
}

// MonitoringRelationshipModel carries the identifiers of one notification
// through the reconciliation steps. It is never persisted.
type MonitoringRelationshipModel struct {
	PartnerEntityID        string
	MonitorID              string
	MonitoredResourceID    string
	DiagnosticSettingsID   string
	DiagnosticSettingsName string
	TenantID               string
}

// Fields returns the model as structured log fields.
func (m MonitoringRelationshipModel) Fields() map[string]any {
	return map[string]any{
		"partner_entity_id":        m.PartnerEntityID,
		"monitor_id":               m.MonitorID,
		"monitored_resource_id":    m.MonitoredResourceID,
		"diagnostic_settings_id":   m.DiagnosticSettingsID,
		"diagnostic_settings_name": m.DiagnosticSettingsName,
		"tenant_id":                m.TenantID,
	}
}
