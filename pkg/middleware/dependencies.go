package middleware

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"
)

// Dependencies makes the ectoinject container with the given id the active
// container for the request, so handlers can resolve from it.
func Dependencies(containerID string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, err := ectoinject.SetActiveContainer(c.Request().Context(), containerID)
			if err != nil {
				return httperror.NewHTTPError(http.StatusInternalServerError, "dependency container is not available")
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
