package monitoringrelationship

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/diagnosticsettings"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// MonitoringRelationshipRepository stores which monitored resources point at which partner.
type MonitoringRelationshipRepository interface {
	Get(ctx context.Context, tenantID, partnerEntityID, monitoredResourceID string) (*models.MonitoringRelationship, error)
	ListByMonitoredResource(ctx context.Context, tenantID, monitoredResourceID string) ([]models.MonitoringRelationship, error)
	ListByPartner(ctx context.Context, tenantID, partnerEntityID string) ([]models.MonitoringRelationship, error)
	Add(ctx context.Context, relationship models.MonitoringRelationship) error
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

func (r *Repository) Get(ctx context.Context, tenantID, partnerEntityID, monitoredResourceID string) (*models.MonitoringRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "MonitoringRelationshipRepository.Get")
	defer span.End()

	sb := relationshipStruct.SelectFrom(relationshipsTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("partner_entity_id", partnerEntityID),
		sb.Equal("monitored_resource_id", diagnosticsettings.NormalizeResourceID(monitoredResourceID)),
	)
	query, args := sb.Build()

	var relationship models.MonitoringRelationship
	if err := r.db.GetContext(ctx, &relationship, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":             tenantID,
			"partner_entity_id":     partnerEntityID,
			"monitored_resource_id": monitoredResourceID,
		}).Error("Failed to get monitoring relationship")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get monitoring relationship")
	}

	return &relationship, nil
}

func (r *Repository) ListByMonitoredResource(ctx context.Context, tenantID, monitoredResourceID string) ([]models.MonitoringRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "MonitoringRelationshipRepository.ListByMonitoredResource")
	defer span.End()

	sb := relationshipStruct.SelectFrom(relationshipsTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("monitored_resource_id", diagnosticsettings.NormalizeResourceID(monitoredResourceID)),
	)
	sb.OrderBy("created_at_utc").Asc()

	query, args := sb.Build()
	return r.list(ctx, span, query, args)
}

// ListByPartner returns every relationship a partner monitor owns in a tenant.
func (r *Repository) ListByPartner(ctx context.Context, tenantID, partnerEntityID string) ([]models.MonitoringRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "MonitoringRelationshipRepository.ListByPartner")
	defer span.End()

	sb := relationshipStruct.SelectFrom(relationshipsTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("partner_entity_id", partnerEntityID),
	)
	sb.OrderBy("created_at_utc").Asc()

	query, args := sb.Build()
	return r.list(ctx, span, query, args)
}

func (r *Repository) list(ctx context.Context, span trace.Span, query string, args []any) ([]models.MonitoringRelationship, error) {
	relationships := []models.MonitoringRelationship{}
	if err := r.db.SelectContext(ctx, &relationships, query, args...); err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list monitoring relationships")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list monitoring relationships")
	}
	return relationships, nil
}

// Add inserts a relationship. A second insert for the same key returns models.ErrDuplicatedKey.
func (r *Repository) Add(ctx context.Context, relationship models.MonitoringRelationship) error {
	ctx, span := tracing.StartSpan(ctx, "MonitoringRelationshipRepository.Add")
	defer span.End()

	relationship.MonitoredResourceID = diagnosticsettings.NormalizeResourceID(relationship.MonitoredResourceID)
	if relationship.CreatedAtUTC.IsZero() {
		relationship.CreatedAtUTC = Now()
	}

	ib := relationshipStruct.InsertInto(relationshipsTable, &relationship)
	query, args := ib.Build()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":                relationship.TenantID,
		"partner_entity_id":        relationship.PartnerEntityID,
		"monitored_resource_id":    relationship.MonitoredResourceID,
		"diagnostic_settings_name": relationship.DiagnosticSettingsName,
	})
	log.Debug("Adding monitoring relationship")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if database.IsDuplicateKey(err) {
			return models.ErrDuplicatedKey
		}
		tracing.RecordError(span, err)
		log.WithError(err).Error("Failed to add monitoring relationship")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to add monitoring relationship")
	}
	return nil
}

// Delete removes the relationship for the key and returns the number of removed rows.
func (r *Repository) Delete(ctx context.Context, tenantID, partnerEntityID, monitoredResourceID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "MonitoringRelationshipRepository.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(relationshipsTable)
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
		}).Error("Failed to delete monitoring relationship")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete monitoring relationship")
	}
	return result.RowsAffected()
}
