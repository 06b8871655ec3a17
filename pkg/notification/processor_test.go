package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

type processorHarness struct {
	*harness
	resource     *fakeManager
	subscription *fakeManager
	tenant       *fakeManager
}

func newProcessorHarness() *processorHarness {
	return &processorHarness{
		harness:      newHarness(),
		resource:     &fakeManager{},
		subscription: &fakeManager{},
		tenant:       &fakeManager{},
	}
}

func (h *processorHarness) processor(locker Locker) *Processor {
	return newProcessor(h.deps(), ProcessorConfig{ProviderNamespace: "NewRelic", Locker: locker}, map[ScopeKind]NotificationManager{
		ScopeResource:     h.resource,
		ScopeSubscription: h.subscription,
		ScopeTenant:       h.tenant,
	})
}

func (h *processorHarness) totalCalls() int {
	return len(h.resource.calls) + len(h.subscription.calls) + len(h.tenant.calls)
}

func TestProcessor_ResolveMonitorID(t *testing.T) {
	storedRelationship := models.MonitoringRelationship{
		TenantID: testTenant, PartnerEntityID: testPartnerID, MonitoredResourceID: monitoredID, DiagnosticSettingsName: "ds1",
	}
	storedTenantRelationship := models.MonitoringRelationship{
		TenantID: testTenant, PartnerEntityID: testPartnerID, MonitoredResourceID: "TENANT-1", DiagnosticSettingsName: "ds-aad",
	}

	tests := []struct {
		name          string
		notification  models.DiagnosticSettingsNotification
		relationships []models.MonitoringRelationship
		want          string
		wantErr       error
	}{
		{
			name:         "write with partner monitor",
			notification: writeNotification(resourceDSID),
			want:         testMonitorID,
		},
		{
			name: "write with partner monitor without observability suffix",
			notification: models.DiagnosticSettingsNotification{
				DiagnosticSettingsID: resourceDSID,
				MonitorID:            "/subscriptions/SUB1/resourceGroups/rg/providers/NewRelic/monitors/m1",
				TenantID:             testTenant,
				EventType:            "microsoft.insights/diagnosticSettings/write",
			},
			want: "/subscriptions/SUB1/resourceGroups/rg/providers/NewRelic/monitors/m1",
		},
		{
			name: "write with another partner's monitor",
			notification: models.DiagnosticSettingsNotification{
				DiagnosticSettingsID: resourceDSID,
				MonitorID:            "/subscriptions/SUB1/resourceGroups/rg/providers/Datadog/monitors/m1",
				TenantID:             testTenant,
				EventType:            "microsoft.insights/diagnosticSettings/write",
			},
			want: "",
		},
		{
			name: "write without monitor",
			notification: models.DiagnosticSettingsNotification{
				DiagnosticSettingsID: resourceDSID,
				TenantID:             testTenant,
				EventType:            "microsoft.insights/diagnosticSettings/write",
			},
			want: "",
		},
		{
			name:          "delete resolves from stored relationship",
			notification:  deleteNotification(resourceDSID).WithMonitorID(""),
			relationships: []models.MonitoringRelationship{storedRelationship},
			want:          testMonitorID,
		},
		{
			name:         "delete without stored relationship",
			notification: deleteNotification(resourceDSID).WithMonitorID(""),
			want:         "",
		},
		{
			name:          "tenant without monitor resolves from stored relationship",
			notification:  writeNotification(tenantDSID).WithMonitorID(""),
			relationships: []models.MonitoringRelationship{storedTenantRelationship},
			want:          testMonitorID,
		},
		{
			name:         "tenant with monitor keeps it",
			notification: writeNotification(tenantDSID),
			want:         testMonitorID,
		},
		{
			name: "unknown event type",
			notification: models.DiagnosticSettingsNotification{
				DiagnosticSettingsID: resourceDSID,
				MonitorID:            testMonitorID,
				TenantID:             testTenant,
				EventType:            "foo",
			},
			wantErr: ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newProcessorHarness()
			h.relationships = newFakeRelationships(tt.relationships...)
			p := h.processor(nil)
			input := tt.notification

			got, err := p.ResolveMonitorID(context.Background(), input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.notification, input)
		})
	}
}

func TestProcessor_DispatchesPartnerWrite(t *testing.T) {
	h := newProcessorHarness()
	p := h.processor(nil)

	require.NoError(t, p.Process(context.Background(), writeNotification(resourceDSID)))

	require.Len(t, h.resource.calls, 1)
	assert.Equal(t, testMonitorID, h.resource.calls[0].MonitorID)
	assert.Empty(t, h.subscription.calls)
	assert.Empty(t, h.tenant.calls)
}

func TestProcessor_DispatchesByScope(t *testing.T) {
	h := newProcessorHarness()
	p := h.processor(nil)

	require.NoError(t, p.Process(context.Background(), writeNotification(subscriptionDS)))
	require.NoError(t, p.Process(context.Background(), writeNotification(tenantDSID)))

	assert.Len(t, h.subscription.calls, 1)
	assert.Len(t, h.tenant.calls, 1)
	assert.Empty(t, h.resource.calls)
}

func TestProcessor_DropsForeignMonitor(t *testing.T) {
	h := newProcessorHarness()
	p := h.processor(nil)
	n := writeNotification(resourceDSID)
	n.MonitorID = "/subscriptions/SUB1/resourceGroups/rg/providers/Dynatrace.Observability/monitors/m1"

	require.NoError(t, p.Process(context.Background(), n))
	assert.Equal(t, 0, h.totalCalls())
}

func TestProcessor_DeleteCarriesResolvedMonitor(t *testing.T) {
	h := newProcessorHarness()
	h.relationships = newFakeRelationships(models.MonitoringRelationship{
		TenantID: testTenant, PartnerEntityID: testPartnerID, MonitoredResourceID: monitoredID, DiagnosticSettingsName: "DS1",
	})
	p := h.processor(nil)

	require.NoError(t, p.Process(context.Background(), deleteNotification(resourceDSID).WithMonitorID("")))

	require.Len(t, h.resource.calls, 1)
	assert.Equal(t, testMonitorID, h.resource.calls[0].MonitorID)
}

func TestProcessor_InvalidEventTypeDoesNotStopLaterNotifications(t *testing.T) {
	h := newProcessorHarness()
	p := h.processor(nil)
	bad := writeNotification(resourceDSID)
	bad.EventType = "foo"

	err := p.Process(context.Background(), bad)
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 0, h.totalCalls())

	require.NoError(t, p.Process(context.Background(), writeNotification(resourceDSID)))
	assert.Len(t, h.resource.calls, 1)
}

func TestProcessor_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.DiagnosticSettingsNotification)
	}{
		{name: "missing diagnostic settings id", mutate: func(n *models.DiagnosticSettingsNotification) { n.DiagnosticSettingsID = "" }},
		{name: "missing tenant", mutate: func(n *models.DiagnosticSettingsNotification) { n.TenantID = "" }},
		{name: "missing event type", mutate: func(n *models.DiagnosticSettingsNotification) { n.EventType = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newProcessorHarness()
			n := writeNotification(resourceDSID)
			tt.mutate(&n)

			err := h.processor(nil).Process(context.Background(), n)
			require.ErrorIs(t, err, ErrInvalidArgument)
			assert.Equal(t, 0, h.totalCalls())
		})
	}
}

func TestProcessor_ManagerErrorIsSwallowed(t *testing.T) {
	h := newProcessorHarness()
	h.resource.err = errors.New("database unavailable")

	require.NoError(t, h.processor(nil).Process(context.Background(), writeNotification(resourceDSID)))
	assert.Len(t, h.resource.calls, 1)
}

func TestProcessor_Locking(t *testing.T) {
	t.Run("runs the manager under the resource lock", func(t *testing.T) {
		h := newProcessorHarness()
		locker := &fakeLocker{}

		require.NoError(t, h.processor(locker).Process(context.Background(), writeNotification(resourceDSID)))
		assert.Equal(t, []string{"tenant-1:" + monitoredID}, locker.keys)
		assert.Len(t, h.resource.calls, 1)
	})

	t.Run("tenant settings lock on the tenant", func(t *testing.T) {
		h := newProcessorHarness()
		locker := &fakeLocker{}

		require.NoError(t, h.processor(locker).Process(context.Background(), writeNotification(tenantDSID)))
		assert.Equal(t, []string{"tenant-1:TENANT-1"}, locker.keys)
	})

	t.Run("lock failure is returned", func(t *testing.T) {
		h := newProcessorHarness()
		locker := &fakeLocker{err: errors.New("lock busy")}

		err := h.processor(locker).Process(context.Background(), writeNotification(resourceDSID))
		require.Error(t, err)
		assert.Equal(t, 0, h.totalCalls())
	})
}

func TestNewProcessor_WiresAllScopes(t *testing.T) {
	p := NewProcessor(newHarness().deps(), ProcessorConfig{ProviderNamespace: "NewRelic"})

	for _, ds := range []string{resourceDSID, subscriptionDS, tenantDSID} {
		assert.NotNil(t, p.ManagerFor(ds))
	}
}

func TestProcessor_EndToEnd(t *testing.T) {
	h := newHarness()
	h.settings.model = userSetting()
	h.settings.live = []models.DiagnosticSettingsModel{*userSetting()}
	p := NewProcessor(h.deps(), ProcessorConfig{ProviderNamespace: "NewRelic"})

	require.NoError(t, p.Process(context.Background(), writeNotification(resourceDSID)))
	require.Len(t, h.relationships.records, 1)

	h.settings.model = nil
	require.NoError(t, p.Process(context.Background(), deleteNotification(resourceDSID).WithMonitorID("")))
	assert.Empty(t, h.relationships.records)
	assert.Empty(t, h.statuses.records)
}
