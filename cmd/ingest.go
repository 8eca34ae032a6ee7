package cmd

import (
	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Load JSON job dumps into the relational store",
		Long: `Parses every JSON dump in the processed directory, normalizes the raw
job records and upserts them into the store, recording per-file provenance
as scrape requests.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return app.runIngest(cmd.Context())
		},
	}
}
