// Package middleware holds the echo middleware shared by every route.
package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
)

const (
	// HeaderTenantID is the header key for tenant ID
	HeaderTenantID = "X-Tenant-ID"
	// HeaderCorrelationID carries the ARN correlation id on replayed notifications
	HeaderCorrelationID = "X-Correlation-ID"
)

// Context copies request identifiers from headers into the request context.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetSource(ctx, context.SourceHTTP)
			if tenantID := req.Header.Get(HeaderTenantID); tenantID != "" {
				ctx = context.SetTenantID(ctx, tenantID)
			}
			if correlationID := req.Header.Get(HeaderCorrelationID); correlationID != "" {
				ctx = context.SetCorrelationID(ctx, correlationID)
			}

			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
