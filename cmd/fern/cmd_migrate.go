package main

import (
	"github.com/spf13/cobra"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if err := a.connectDatabase(ctx); err != nil {
		return err
	}
	if err := a.migrate(); err != nil {
		return err
	}

	a.logger.WithField("name", a.cfg.DatabaseName).Info("Database migrated")
	return nil
}
