package cmd

import (
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the store with the Airtable base",
		Long: `Runs one bidirectional sync pass: externally curated statuses are
mirrored back into the store, terminal records and orphaned skills are
swept, existing records get refreshed scraped data, and jobs never pushed
before are created.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return app.runSync(cmd.Context())
		},
	}
}
