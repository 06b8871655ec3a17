package partner

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories/partnerresource"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// Store is the partner registry used by the routes.
type Store interface {
	Create(ctx context.Context, req models.CreatePartnerResourceRequest) (*models.PartnerResourceEntity, error)
	Get(ctx context.Context, entityID string) (*models.PartnerResourceEntity, error)
	List(ctx context.Context, resourceID string) ([]models.PartnerResourceEntity, error)
	Deactivate(ctx context.Context, entityID string) error
}

// Register registers partner routes
func Register(g *echo.Group) {
	g.POST("/partners", Create)
	g.GET("/partners", List)
	g.GET("/partners/:entity_id", Get)
	g.DELETE("/partners/:entity_id", Deactivate)
}

// Create registers a partner monitor so its notifications are reconciled.
// @Summary Register a partner monitor
// @Tags partners
// @Accept json
// @Produce json
// @Success 201 {object} models.PartnerResourceEntity
// @Failure 400 {object} httperror.HTTPError
// @Failure 409 {object} httperror.HTTPError
// @Router /api/v1/partners [post]
func Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "partner_handler.Create")
	defer span.End()

	req, err := utils.BindRequest[models.CreatePartnerResourceRequest](c)
	if err != nil {
		return err
	}

	ctx, store, err := ectoinject.GetContext[Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get partner store")
	}

	partner, err := store.Create(ctx, req)
	if errors.Is(err, models.ErrDuplicatedKey) {
		return httperror.NewHTTPError(http.StatusConflict, "partner resource already exists")
	}
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}

	if _, logger, err := ectoinject.GetContext[ectologger.Logger](ctx); err == nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"entity_id":   partner.EntityID,
			"resource_id": partner.ResourceID,
		}).Info("Registered partner monitor")
	}
	return c.JSON(http.StatusCreated, partner)
}

// List returns the active partner records of a monitor.
// @Router /api/v1/partners [get]
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "partner_handler.List")
	defer span.End()

	resourceID := c.QueryParam("resource_id")
	if resourceID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "resource_id is required")
	}

	ctx, store, err := ectoinject.GetContext[Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get partner store")
	}

	partners, err := store.List(ctx, resourceID)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	return c.JSON(http.StatusOK, partners)
}

// Get returns one partner record.
// @Router /api/v1/partners/{entity_id} [get]
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "partner_handler.Get")
	defer span.End()

	entityID := c.Param("entity_id")
	if !partnerresource.IsEntityID(entityID) {
		return httperror.NewHTTPError(http.StatusNotFound, "partner resource not found")
	}

	ctx, store, err := ectoinject.GetContext[Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get partner store")
	}

	partner, err := store.Get(ctx, entityID)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	if partner == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "partner resource not found")
	}
	return c.JSON(http.StatusOK, partner)
}

// Deactivate stops reconciliation for a partner monitor.
// @Router /api/v1/partners/{entity_id} [delete]
func Deactivate(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "partner_handler.Deactivate")
	defer span.End()

	entityID := c.Param("entity_id")
	if !partnerresource.IsEntityID(entityID) {
		return httperror.NewHTTPError(http.StatusNotFound, "partner resource not found")
	}

	ctx, store, err := ectoinject.GetContext[Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get partner store")
	}

	if err := store.Deactivate(ctx, entityID); err != nil {
		tracing.RecordError(span, err)
		return err
	}

	if _, logger, err := ectoinject.GetContext[ectologger.Logger](ctx); err == nil {
		logger.WithContext(ctx).WithField("entity_id", entityID).Info("Deactivated partner monitor")
	}
	return c.NoContent(http.StatusNoContent)
}
