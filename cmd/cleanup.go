package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete processed snapshot and dump files",
		Long: `Removes the *.html files from the raw snapshot directory and the
*.json files from the processed directory. Run this after a successful
pass to reclaim disk space; archived dumps are unaffected.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			removedHTML, err := removeByExt(app.Config.Paths.RawHTMLDir, ".html")
			if err != nil {
				return err
			}
			removedJSON, err := removeByExt(app.Config.Paths.JSONDir, ".json")
			if err != nil {
				return err
			}

			app.Logger.Info("Cleanup complete",
				zap.Int("html_removed", removedHTML),
				zap.Int("json_removed", removedJSON),
			)
			return nil
		},
	}
}

// removeByExt deletes every file with the extension from the directory. A
// missing directory counts as nothing to clean.
func removeByExt(dir, ext string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read directory %s: %w", dir, err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}
