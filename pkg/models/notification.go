package models

import (
	"encoding/json"
	"time"
)

// DiagnosticSettingsNotification is a single diagnostic settings change to reconcile.
// MonitorID may be empty; delete events in particular usually arrive without it.
type DiagnosticSettingsNotification struct {
	DiagnosticSettingsID string `json:"diagnostic_settings_id" validate:"required"`
	MonitorID            string `json:"monitor_id,omitempty"`
	TenantID             string `json:"tenant_id" validate:"required"`
	EventType            string `json:"event_type" validate:"required"`
	CorrelationID        string `json:"correlation_id,omitempty"`
}

// WithMonitorID returns a copy of the notification carrying the resolved monitor id.
func (n DiagnosticSettingsNotification) WithMonitorID(monitorID string) DiagnosticSettingsNotification {
	n.MonitorID = monitorID
	return n
}

// Fields returns the notification as structured log fields.
func (n DiagnosticSettingsNotification) Fields() map[string]any {
	return map[string]any{
		"diagnostic_settings_id": n.DiagnosticSettingsID,
		"monitor_id":             n.MonitorID,
		"tenant_id":              n.TenantID,
		"event_type":             n.EventType,
		"correlation_id":         n.CorrelationID,
	}
}

// NotificationPayload is the ARN event envelope. Field names follow the ARN
// schema exactly; unknown content is kept raw.
type NotificationPayload struct {
	ID              string           `json:"id"`
	Topic           string           `json:"topic"`
	Subject         string           `json:"subject"`
	EventType       string           `json:"eventType"`
	EventTime       time.Time        `json:"eventTime"`
	DataVersion     string           `json:"dataVersion,omitempty"`
	MetadataVersion string           `json:"metadataVersion,omitempty"`
	Data            NotificationData `json:"data"`
}

// NotificationData is the ARN data block.
type NotificationData struct {
	Resources         []NotificationResource `json:"resources"`
	ResourceLocation  string                 `json:"resourceLocation,omitempty"`
	FrontdoorLocation string                 `json:"frontdoorLocation,omitempty"`
	HomeTenantID      string                 `json:"homeTenantId,omitempty"`
	APIVersion        string                 `json:"apiVersion,omitempty"`
}

// NotificationResource is one changed resource inside an ARN event.
type NotificationResource struct {
	ResourceID               string          `json:"resourceId"`
	CorrelationID            string          `json:"correlationId,omitempty"`
	APIVersion               string          `json:"apiVersion,omitempty"`
	HomeTenantID             string          `json:"homeTenantId,omitempty"`
	ResourceHomeTenantID     string          `json:"resourceHomeTenantId,omitempty"`
	ResourceSystemProperties json.RawMessage `json:"resourceSystemProperties,omitempty"`
	ArmResource              json.RawMessage `json:"armResource,omitempty"`
}

type armResourceEnvelope struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Properties struct {
		MarketplacePartnerID string `json:"marketplacePartnerId"`
	} `json:"properties"`
}

// MarketplacePartnerID reads properties.marketplacePartnerId from the ARM resource, if present.
func (r NotificationResource) MarketplacePartnerID() string {
	if len(r.ArmResource) == 0 {
		return ""
	}
	var env armResourceEnvelope
	if err := json.Unmarshal(r.ArmResource, &env); err != nil {
		return ""
	}
	return env.Properties.MarketplacePartnerID
}

// Notifications flattens the payload into one notification per resource.
func (p NotificationPayload) Notifications() []DiagnosticSettingsNotification {
	out := make([]DiagnosticSettingsNotification, 0, len(p.Data.Resources))
	for _, r := range p.Data.Resources {
		tenantID := r.HomeTenantID
		if tenantID == "" {
			tenantID = r.ResourceHomeTenantID
		}
		if tenantID == "" {
			tenantID = p.Data.HomeTenantID
		}
		out = append(out, DiagnosticSettingsNotification{
			DiagnosticSettingsID: r.ResourceID,
			MonitorID:            r.MarketplacePartnerID(),
			TenantID:             tenantID,
			EventType:            p.EventType,
			CorrelationID:        r.CorrelationID,
		})
	}
	return out
}
