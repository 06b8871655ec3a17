package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	fernctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/notification"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const maxBodyBytes = 1 << 20

// Processor reconciles a single notification.
type Processor interface {
	Process(ctx context.Context, n models.DiagnosticSettingsNotification) error
}

// Register registers notification routes
func Register(g *echo.Group) {
	g.POST("/notifications", Post)
}

// Result is the outcome for one notification.
type Result struct {
	DiagnosticSettingsID string `json:"diagnostic_settings_id"`
	Status               string `json:"status"`
	Error                string `json:"error,omitempty"`
}

type Response struct {
	Results []Result `json:"results"`
}

// Post accepts a single notification or an ARN event.
// @Summary Replay a diagnostic settings notification
// @Tags notifications
// @Accept json
// @Produce json
// @Success 200 {object} Response
// @Failure 400 {object} httperror.HTTPError
// @Failure 500 {object} httperror.HTTPError
// @Router /api/v1/notifications [post]
func Post(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "notification_handler.Post")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return httperror.WrapError(http.StatusBadRequest, err)
	}

	notifications, err := ParseBody(body)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(notifications) == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "no notifications in request")
	}

	ctx, processor, err := ectoinject.GetContext[Processor](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get notification processor")
	}
	ctx, logger, err := ectoinject.GetContext[ectologger.Logger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get logger")
	}

	results := make([]Result, 0, len(notifications))
	for _, n := range notifications {
		nctx := ctx
		if n.CorrelationID != "" {
			nctx = fernctx.SetCorrelationID(nctx, n.CorrelationID)
		}

		err := processor.Process(nctx, n)
		if err == nil {
			results = append(results, Result{DiagnosticSettingsID: n.DiagnosticSettingsID, Status: "processed"})
			continue
		}

		tracing.RecordError(span, err)
		logger.WithContext(nctx).WithFields(n.Fields()).WithError(err).Warn("Rejected replayed notification")
		if len(notifications) == 1 {
			return toHTTPError(err)
		}
		results = append(results, Result{DiagnosticSettingsID: n.DiagnosticSettingsID, Status: "rejected", Error: err.Error()})
	}

	return c.JSON(http.StatusOK, Response{Results: results})
}

func toHTTPError(err error) error {
	if errors.Is(err, notification.ErrInvalidArgument) {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return httperror.NewHTTPError(http.StatusInternalServerError, err.Error())
}

type envelope struct {
	Data *json.RawMessage `json:"data"`
}

// ParseBody reads a DiagnosticSettingsNotification, an ARN NotificationPayload
// or a JSON array of ARN payloads. A single object is an ARN payload when it
// carries the data block.
func ParseBody(body []byte) ([]models.DiagnosticSettingsNotification, error) {
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		var payloads []models.NotificationPayload
		if err := json.Unmarshal(trimmed, &payloads); err != nil {
			return nil, err
		}
		var out []models.DiagnosticSettingsNotification
		for _, payload := range payloads {
			out = append(out, payload.Notifications()...)
		}
		return out, nil
	}

	var p envelope
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}

	if p.Data != nil {
		var payload models.NotificationPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}
		return payload.Notifications(), nil
	}

	var n models.DiagnosticSettingsNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, err
	}
	return []models.DiagnosticSettingsNotification{n}, nil
}
