// Package diagnosticsettings parses diagnostic settings resource ids and
// talks to the Azure diagnostic settings API.
package diagnosticsettings

import (
	"regexp"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
)

const (
	diagnosticSettingsSegment    = "/providers/microsoft.insights/diagnosticSettings/"
	aadDiagnosticSettingsSegment = "/providers/microsoft.aadiam/diagnosticSettings/"
)

var (
	subscriptionScopePattern = regexp.MustCompile(`(?i)^/subscriptions/[^/]+/providers/microsoft\.insights/diagnosticSettings/[^/]+$`)
	subscriptionIDPattern    = regexp.MustCompile(`(?i)^/?subscriptions/[^/]+/?$`)
)

// NormalizeResourceID is the canonical form of a resource id used for storage and lookups.
func NormalizeResourceID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ExtractMonitoredResourceID returns the resource the diagnostic setting is attached to.
func ExtractMonitoredResourceID(diagnosticSettingsID string) string {
	idx := indexFold(diagnosticSettingsID, diagnosticSettingsSegment)
	if idx < 0 {
		return ""
	}
	return diagnosticSettingsID[:idx]
}

// ExtractDiagnosticSettingsName returns the setting name from a resource or subscription scoped id.
func ExtractDiagnosticSettingsName(diagnosticSettingsID string) string {
	return nameAfter(diagnosticSettingsID, diagnosticSettingsSegment)
}

// ExtractDiagnosticSettingsNameForAAD returns the setting name from a tenant (AAD) scoped id.
func ExtractDiagnosticSettingsNameForAAD(diagnosticSettingsID string) string {
	return nameAfter(diagnosticSettingsID, aadDiagnosticSettingsSegment)
}

// DoesDiagnosticSettingsBelongToTenant reports whether the id is an AAD diagnostic setting.
func DoesDiagnosticSettingsBelongToTenant(diagnosticSettingsID string) bool {
	return len(diagnosticSettingsID) >= len(aadDiagnosticSettingsSegment) &&
		strings.EqualFold(diagnosticSettingsID[:len(aadDiagnosticSettingsSegment)], aadDiagnosticSettingsSegment)
}

// DoesDiagnosticSettingsBelongToSubscription reports whether the id is attached to a subscription.
func DoesDiagnosticSettingsBelongToSubscription(diagnosticSettingsID string) bool {
	return subscriptionScopePattern.MatchString(diagnosticSettingsID)
}

// IsSubscriptionResourceID reports whether the resource id is a bare subscription.
func IsSubscriptionResourceID(resourceID string) bool {
	return subscriptionIDPattern.MatchString(strings.TrimSpace(resourceID))
}

// BuildDiagnosticSettingsID joins a resource id and a setting name.
func BuildDiagnosticSettingsID(resourceID, settingsName string) string {
	return strings.TrimSuffix(resourceID, "/") + diagnosticSettingsSegment + settingsName
}

// ExtractSubscriptionID returns the subscription a diagnostic setting lives in, or "".
func ExtractSubscriptionID(diagnosticSettingsID string) string {
	resourceID := ExtractMonitoredResourceID(diagnosticSettingsID)
	if resourceID == "" {
		return ""
	}
	if parsed, err := arm.ParseResourceID(resourceID); err == nil && parsed.SubscriptionID != "" {
		return parsed.SubscriptionID
	}
	parts := strings.Split(strings.Trim(resourceID, "/"), "/")
	if len(parts) >= 2 && strings.EqualFold(parts[0], "subscriptions") {
		return parts[1]
	}
	return ""
}

func nameAfter(id, segment string) string {
	idx := indexFold(id, segment)
	if idx < 0 {
		return ""
	}
	name := id[idx+len(segment):]
	if slash := strings.Index(name, "/"); slash >= 0 {
		name = name[:slash]
	}
	return name
}

func indexFold(s, substr string) int {
	return strings.Index(strings.ToLower(s), strings.ToLower(substr))
}
