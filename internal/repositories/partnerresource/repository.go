package partnerresource

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/diagnosticsettings"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// PartnerResourceRepository is the partner monitor registry.
type PartnerResourceRepository interface {
	Create(ctx context.Context, req models.CreatePartnerResourceRequest) (*models.PartnerResourceEntity, error)
	Get(ctx context.Context, entityID string) (*models.PartnerResourceEntity, error)
	List(ctx context.Context, resourceID string) ([]models.PartnerResourceEntity, error)
	Deactivate(ctx context.Context, entityID string) error
	Delete(ctx context.Context, entityID string) (int64, error)
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

// Create registers a partner monitor. The resource id is stored upper-cased.
func (r *Repository) Create(ctx context.Context, req models.CreatePartnerResourceRequest) (*models.PartnerResourceEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "PartnerResourceRepository.Create")
	defer span.End()

	now := Now()
	entity := &models.PartnerResourceEntity{
		EntityID:          uuid.New().String(),
		ResourceID:        diagnosticsettings.NormalizeResourceID(req.ResourceID),
		TenantID:          req.TenantID,
		Location:          req.Location,
		Active:            true,
		ProvisioningState: models.ProvisioningStateSucceeded,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	ib := partnerResourceStruct.InsertInto(partnerResourcesTable, FromPartnerResource(entity))
	query, args := ib.Build()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id":   entity.EntityID,
		"resource_id": entity.ResourceID,
		"tenant_id":   entity.TenantID,
	})
	log.Debug("Creating partner resource")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if database.IsDuplicateKey(err) {
			return nil, models.ErrDuplicatedKey
		}
		tracing.RecordError(span, err)
		log.WithError(err).Error("Failed to create partner resource")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create partner resource")
	}

	return entity, nil
}

// Get returns the partner resource with the given entity id, or nil when there is none.
func (r *Repository) Get(ctx context.Context, entityID string) (*models.PartnerResourceEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "PartnerResourceRepository.Get")
	defer span.End()

	if !IsEntityID(entityID) {
		return nil, nil
	}

	sb := partnerResourceStruct.SelectFrom(partnerResourcesTable)
	sb.Where(sb.Equal("entity_id", entityID))
	query, args := sb.Build()

	var row PartnerResourceRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithField("entity_id", entityID).Error("Failed to get partner resource")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get partner resource")
	}

	return ToPartnerResource(&row), nil
}

// List returns the active partner resources registered for a monitor resource id.
func (r *Repository) List(ctx context.Context, resourceID string) ([]models.PartnerResourceEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "PartnerResourceRepository.List")
	defer span.End()

	sb := partnerResourceStruct.SelectFrom(partnerResourcesTable)
	sb.Where(
		sb.Equal("resource_id", diagnosticsettings.NormalizeResourceID(resourceID)),
		sb.Equal("active", true),
	)
	sb.OrderBy("created_at").Asc()
	query, args := sb.Build()

	var rows []PartnerResourceRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithField("resource_id", resourceID).Error("Failed to list partner resources")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list partner resources")
	}

	return ToPartnerResources(rows), nil
}

// Deactivate soft deletes a partner resource ahead of its removal.
func (r *Repository) Deactivate(ctx context.Context, entityID string) error {
	ctx, span := tracing.StartSpan(ctx, "PartnerResourceRepository.Deactivate")
	defer span.End()

	if !IsEntityID(entityID) {
		return httperror.NewHTTPError(http.StatusNotFound, "partner resource not found")
	}

	ub := database.NewUpdateBuilder()
	ub.Update(partnerResourcesTable)
	ub.Set(
		ub.Assign("active", false),
		ub.Assign("provisioning_state", string(models.ProvisioningStateDeleting)),
		ub.Assign("updated_at", Now()),
	)
	ub.Where(ub.Equal("entity_id", entityID))
	query, args := ub.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithField("entity_id", entityID).Error("Failed to deactivate partner resource")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to deactivate partner resource")
	}

	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "partner resource not found")
	}
	return nil
}

// Delete hard deletes a partner resource and returns the number of removed rows.
func (r *Repository) Delete(ctx context.Context, entityID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "PartnerResourceRepository.Delete")
	defer span.End()

	if !IsEntityID(entityID) {
		return 0, nil
	}

	db := database.NewDeleteBuilder()
	db.DeleteFrom(partnerResourcesTable)
	db.Where(db.Equal("entity_id", entityID))
	query, args := db.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithField("entity_id", entityID).Error("Failed to delete partner resource")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete partner resource")
	}

	return result.RowsAffected()
}

// IsEntityID reports whether id can be a partner entity id. The column is a
// UUID, so anything else can never match a row.
func IsEntityID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
