package cmd

import (
	"github.com/spf13/cobra"
)

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Render saved HTML snapshots into JSON job dumps",
		Long: `Loads every saved snapshot in the raw HTML directory in a headless
browser, reads the page state the frontend leaves behind, and writes the
job array of each page as a JSON dump for ingestion.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return app.runExtract(cmd.Context())
		},
	}
}
