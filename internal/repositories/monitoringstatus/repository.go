package monitoringstatus

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/diagnosticsettings"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// MonitoringStatusRepository stores whether a monitored resource is monitored and why.
type MonitoringStatusRepository interface {
	Get(ctx context.Context, tenantID, partnerEntityID, monitoredResourceID string) (*models.MonitoringStatus, error)
	ListByMonitoredResource(ctx context.Context, tenantID, monitoredResourceID string) ([]models.MonitoringStatus, error)
	AddOrUpdate(ctx context.Context, status models.MonitoringStatus) error
	Delete(ctx context.Context, tenantID, partnerEntityID, monitoredResourceID string) (int64, error)
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Get(ctx context.Context, tenantID, partnerEntityID, monitoredResourceID string) (*models.MonitoringStatus, error) {
	ctx, span := tracing.StartSpan(ctx, "MonitoringStatusRepository.Get")
	defer span.End()

	sb := statusStruct.SelectFrom(statusesTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("partner_entity_id", partnerEntityID),
		sb.Equal("monitored_resource_id", diagnosticsettings.NormalizeResourceID(monitoredResourceID)),
	)
	query, args := sb.Build()

	var status models.MonitoringStatus
	if err := r.db.GetContext(ctx, &status, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":             tenantID,
			"partner_entity_id":     partnerEntityID,
			"monitored_resource_id": monitoredResourceID,
		}).Error("Failed to get monitoring status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get monitoring status")
	}

	return &status, nil
}

func (r *Repository) ListByMonitoredResource(ctx context.Context, tenantID, monitoredResourceID string) ([]models.MonitoringStatus, error) {
	ctx, span := tracing.StartSpan(ctx, "MonitoringStatusRepository.ListByMonitoredResource")
	defer span.End()

	sb := statusStruct.SelectFrom(statusesTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("monitored_resource_id", diagnosticsettings.NormalizeResourceID(monitoredResourceID)),
	)
	sb.OrderBy("last_modified_at_utc").Asc()
	query, args := sb.Build()

	statuses := []models.MonitoringStatus{}
	if err := r.db.SelectContext(ctx, &statuses, query, args...); err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":             tenantID,
			"monitored_resource_id": monitoredResourceID,
		}).Error("Failed to list monitoring statuses")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list monitoring statuses")
	}

	return statuses, nil
}

// AddOrUpdate upserts the status for its key. A row that already carries the
// same IsMonitored and Reason is left untouched.
func (r *Repository) AddOrUpdate(ctx context.Context, status models.MonitoringStatus) error {
	ctx, span := tracing.StartSpan(ctx, "MonitoringStatusRepository.AddOrUpdate")
	defer span.End()

	status.MonitoredResourceID = diagnosticsettings.NormalizeResourceID(status.MonitoredResourceID)
	status.LastModifiedAtUTC = Now()

	ib := statusStruct.InsertInto(statusesTable, &status)
	ib.OnConflictUpdateChanged(statusesTable,
		[]string{"tenant_id", "partner_entity_id", "monitored_resource_id"},
		[]string{"is_monitored", "reason"},
		"is_monitored", "reason", "last_modified_at_utc",
	)
	query, args := ib.Build()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":             status.TenantID,
		"partner_entity_id":     status.PartnerEntityID,
		"monitored_resource_id": status.MonitoredResourceID,
		"is_monitored":          status.IsMonitored,
		"reason":                status.Reason,
	})
	log.Debug("Upserting monitoring status")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		tracing.RecordError(span, err)
		log.WithError(err).Error("Failed to upsert monitoring status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert monitoring status")
	}
	return nil
}

// Delete removes the status for the key and returns the number of removed rows.
func (r *Repository) Delete(ctx context.Context, tenantID, partnerEntityID, monitoredResourceID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "MonitoringStatusRepository.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(statusesTable)
	db.Where(
		db.Equal("tenant_id", tenantID),
		db.Equal("partner_entity_id", partnerEntityID),
		db.Equal("monitored_resource_id", diagnosticsettings.NormalizeResourceID(monitoredResourceID)),
	)
	query, args := db.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":             tenantID,
			"partner_entity_id":     partnerEntityID,
			"monitored_resource_id": monitoredResourceID,
		}).Error("Failed to delete monitoring status")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete monitoring status")
	}
	return result.RowsAffected()
}
