// Package cmd defines and implements the CLI commands for the jobsync
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newAppFn is the application factory. It is a variable so tests can
// replace it with a mock factory.
var newAppFn = newApp

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobsync",
		Short: "Job board snapshot extraction, ingestion and Airtable sync.",
		Long: `jobsync turns saved job-board HTML snapshots into structured rows in a
relational store and keeps that store and an Airtable base reconciled in
both directions.`,
		SilenceUsage: true,

		// Runs after flags are parsed and before the subcommand's RunE;
		// builds the application and injects it for subcommands.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newAppFn(cfgFile)
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, app))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if app, ok := cmd.Context().Value(appKey).(*App); ok && app != nil {
				app.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default config/jobsync.yaml if present)")

	cmd.AddCommand(
		newExtractCmd(),
		newIngestCmd(),
		newSyncCmd(),
		newRunCmd(),
		newScheduleCmd(),
		newCleanupCmd(),
		newOpenURLsCmd(),
	)

	return cmd
}

func resolveApp(ctx context.Context) (*App, error) {
	app, ok := ctx.Value(appKey).(*App)
	if !ok || app == nil {
		return nil, errors.New("application services not initialized")
	}
	return app, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
