package notification

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/models"
)

// PartnerResourceStore looks up registered partner monitors.
type PartnerResourceStore interface {
	List(ctx context.Context, resourceID string) ([]models.PartnerResourceEntity, error)
	Get(ctx context.Context, entityID string) (*models.PartnerResourceEntity, error)
}

// MonitoringRelationshipStore persists monitoring relationships.
// Add returns models.ErrDuplicatedKey when the key already exists.
type MonitoringRelationshipStore interface {
	Get(ctx context.Context, tenantID, partnerEntityID, monitoredResourceID string) (*models.MonitoringRelationship, error)
	ListByMonitoredResource(ctx context.Context, tenantID, monitoredResourceID string) ([]models.MonitoringRelationship, error)
	Add(ctx context.Context, relationship models.MonitoringRelationship) error
	Delete(ctx context.Context, tenantID, partnerEntityID, monitoredResourceID string) (int64, error)
}

// MonitoringStatusStore persists monitoring statuses.
type MonitoringStatusStore interface {
	Get(ctx context.Context, tenantID, partnerEntityID, monitoredResourceID string) (*models.MonitoringStatus, error)
	ListByMonitoredResource(ctx context.Context, tenantID, monitoredResourceID string) ([]models.MonitoringStatus, error)
	AddOrUpdate(ctx context.Context, status models.MonitoringStatus) error
	Delete(ctx context.Context, tenantID, partnerEntityID, monitoredResourceID string) (int64, error)
}

// DiagnosticSettingsManager reads and writes diagnostic settings in Azure.
// GetResourceDiagnosticSettings returns nil, nil when the setting does not exist.
type DiagnosticSettingsManager interface {
	GetResourceDiagnosticSettings(ctx context.Context, diagnosticSettingsID, tenantID string) (*models.DiagnosticSettingsModel, error)
	ListResourceDiagnosticSettings(ctx context.Context, resourceID, tenantID string) ([]models.DiagnosticSettingsModel, error)
	CreateOrUpdateResourceDiagnosticSetting(ctx context.Context, resourceID, settingsName, monitorID, tenantID string) error
}

// SubscriptionVersionSelector decides which subscriptions are reconciled.
type SubscriptionVersionSelector interface {
	IsV2Subscription(ctx context.Context, subscriptionID string) (bool, error)
}

// Locker serializes work on a key across replicas.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// NotificationManager reconciles one notification whose monitor id is resolved.
type NotificationManager interface {
	ProcessNotification(ctx context.Context, notification models.DiagnosticSettingsNotification) error
}
