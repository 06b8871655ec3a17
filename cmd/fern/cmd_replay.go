package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	fernctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/models"
	notificationroutes "github.com/Ramsey-B/fern/pkg/routes/notification"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	notifications, err := replayNotifications(cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := fernctx.SetSource(cmd.Context(), fernctx.SourceReplay)
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if err := a.connectDatabase(ctx); err != nil {
		return err
	}
	if err := a.connectRedis(ctx); err != nil {
		return err
	}
	if err := a.buildProcessor(); err != nil {
		return err
	}

	results := make([]notificationroutes.Result, 0, len(notifications))
	var failed error
	for _, n := range notifications {
		nctx := ctx
		if n.CorrelationID != "" {
			nctx = fernctx.SetCorrelationID(nctx, n.CorrelationID)
		}
		if err := a.processor.Process(nctx, n); err != nil {
			failed = errors.Join(failed, err)
			results = append(results, notificationroutes.Result{DiagnosticSettingsID: n.DiagnosticSettingsID, Status: "rejected", Error: err.Error()})
			continue
		}
		results = append(results, notificationroutes.Result{DiagnosticSettingsID: n.DiagnosticSettingsID, Status: "processed"})
	}

	out := json.NewEncoder(cmd.OutOrStdout())
	out.SetIndent("", "  ")
	if err := out.Encode(notificationroutes.Response{Results: results}); err != nil {
		return err
	}
	return failed
}

func replayNotifications(stdin io.Reader) ([]models.DiagnosticSettingsNotification, error) {
	if replayFile == "" {
		if replayID == "" || replayTenant == "" {
			return nil, errors.New("either --file or both --id and --tenant are required")
		}
		return []models.DiagnosticSettingsNotification{{
			DiagnosticSettingsID: replayID,
			TenantID:             replayTenant,
			MonitorID:            replayMonitor,
			EventType:            replayEventType,
		}}, nil
	}

	var body []byte
	var err error
	if replayFile == "-" {
		body, err = io.ReadAll(stdin)
	} else {
		body, err = os.ReadFile(replayFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", replayFile, err)
	}
	return notificationroutes.ParseBody(body)
}
