package main

import (
	"github.com/spf13/cobra"
)

var (
	replayFile      string
	replayID        string
	replayTenant    string
	replayMonitor   string
	replayEventType string

	rootCmd = &cobra.Command{
		Use:           "fern",
		Short:         "Reconciles partner diagnostic settings notifications",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Consume ARN notifications and serve the HTTP API",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE:  runMigrate,
	}

	replayCmd = &cobra.Command{
		Use:   "replay",
		Short: "Process one notification (or ARN event) through the reconciler",
		Long: `Replay reads a notification or an ARN event as JSON from --file
("-" for stdin), or builds one from the --id, --tenant, --monitor and
--event-type flags, and reconciles it once.`,
		RunE: runReplay,
	}
)

func init() {
	replayCmd.Flags().StringVarP(&replayFile, "file", "f", "", "JSON notification or ARN event, - for stdin")
	replayCmd.Flags().StringVar(&replayID, "id", "", "diagnostic settings resource id")
	replayCmd.Flags().StringVar(&replayTenant, "tenant", "", "tenant id")
	replayCmd.Flags().StringVar(&replayMonitor, "monitor", "", "partner monitor resource id")
	replayCmd.Flags().StringVar(&replayEventType, "event-type", "Microsoft.Insights/diagnosticSettings/write", "ARN event type")

	rootCmd.AddCommand(serveCmd, migrateCmd, replayCmd)
}
