package diagnosticsettings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	resourceDSID     = "/subscriptions/SUB1/resourceGroups/rg1/providers/Microsoft.Web/sites/R1/providers/microsoft.insights/diagnosticSettings/ds1"
	subscriptionDSID = "/subscriptions/SUB1/providers/Microsoft.Insights/diagnosticSettings/ds-sub"
	tenantDSID       = "/providers/microsoft.aadiam/diagnosticSettings/ds-aad"
)

func TestExtractMonitoredResourceID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"resource", resourceDSID, "/subscriptions/SUB1/resourceGroups/rg1/providers/Microsoft.Web/sites/R1"},
		{"subscription", subscriptionDSID, "/subscriptions/SUB1"},
		{"mixed case marker", "/subscriptions/S/PROVIDERS/MICROSOFT.INSIGHTS/DIAGNOSTICSETTINGS/x", "/subscriptions/S"},
		{"not a diagnostic setting", "/subscriptions/SUB1/resourceGroups/rg1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMonitoredResourceID(tt.id))
		})
	}
}

func TestExtractDiagnosticSettingsName(t *testing.T) {
	assert.Equal(t, "ds1", ExtractDiagnosticSettingsName(resourceDSID))
	assert.Equal(t, "ds-sub", ExtractDiagnosticSettingsName(subscriptionDSID))
	assert.Equal(t, "", ExtractDiagnosticSettingsName(tenantDSID))
}

func TestExtractDiagnosticSettingsNameForAAD(t *testing.T) {
	assert.Equal(t, "ds-aad", ExtractDiagnosticSettingsNameForAAD(tenantDSID))
	assert.Equal(t, "ds-aad", ExtractDiagnosticSettingsNameForAAD("/PROVIDERS/MICROSOFT.AADIAM/DIAGNOSTICSETTINGS/ds-aad"))
	assert.Equal(t, "", ExtractDiagnosticSettingsNameForAAD(resourceDSID))
}

func TestScopeDetection(t *testing.T) {
	assert.True(t, DoesDiagnosticSettingsBelongToTenant(tenantDSID))
	assert.False(t, DoesDiagnosticSettingsBelongToTenant(subscriptionDSID))
	assert.False(t, DoesDiagnosticSettingsBelongToTenant(resourceDSID))

	assert.True(t, DoesDiagnosticSettingsBelongToSubscription(subscriptionDSID))
	assert.False(t, DoesDiagnosticSettingsBelongToSubscription(resourceDSID))
	assert.False(t, DoesDiagnosticSettingsBelongToSubscription(tenantDSID))
}

func TestBuildDiagnosticSettingsID(t *testing.T) {
	resourceID := "/subscriptions/SUB1/resourceGroups/rg1/providers/Microsoft.Web/sites/R1"
	got := BuildDiagnosticSettingsID(resourceID, "ds1")

	assert.Equal(t, resourceID, ExtractMonitoredResourceID(got))
	assert.Equal(t, "ds1", ExtractDiagnosticSettingsName(got))
	assert.Equal(t, got, BuildDiagnosticSettingsID(resourceID+"/", "ds1"))
}

func TestExtractSubscriptionID(t *testing.T) {
	assert.Equal(t, "SUB1", ExtractSubscriptionID(resourceDSID))
	assert.Equal(t, "SUB1", ExtractSubscriptionID(subscriptionDSID))
	assert.Equal(t, "", ExtractSubscriptionID(tenantDSID))
}

func TestNormalizeResourceID(t *testing.T) {
	assert.Equal(t, "/SUBSCRIPTIONS/SUB1/RESOURCEGROUPS/RG1", NormalizeResourceID(" /subscriptions/sub1/resourceGroups/rg1 "))
}

func TestIsSubscriptionResourceID(t *testing.T) {
	assert.True(t, IsSubscriptionResourceID("/subscriptions/SUB1"))
	assert.True(t, IsSubscriptionResourceID("subscriptions/SUB1/"))
	assert.False(t, IsSubscriptionResourceID("/subscriptions/SUB1/resourceGroups/rg1"))
	assert.False(t, IsSubscriptionResourceID(""))
}
