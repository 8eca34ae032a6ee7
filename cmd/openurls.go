package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// searchURLsFile is the YAML document listing the saved searches to open.
type searchURLsFile struct {
	URLs []string `yaml:"urls"`
}

func newOpenURLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open-urls",
		Short: "Open the configured search URLs in the default browser",
		Long: `Opens every saved-search URL from the configured YAML file as a
browser tab. Save each results page manually afterwards; the extract
command picks the snapshots up from the raw HTML directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			data, err := os.ReadFile(app.Config.Paths.SearchURLsFile)
			if err != nil {
				return fmt.Errorf("read search urls file: %w", err)
			}
			var doc searchURLsFile
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parse search urls file: %w", err)
			}
			if len(doc.URLs) == 0 {
				app.Logger.Warn("No URLs found in search urls file",
					zap.String("file", app.Config.Paths.SearchURLsFile))
				return nil
			}

			for i, url := range doc.URLs {
				if err := openInBrowser(url); err != nil {
					app.Logger.Error("Failed to open URL", zap.String("url", url), zap.Error(err))
					continue
				}
				app.Logger.Info("Opened URL", zap.String("url", url))
				// Give the browser time to settle before the next tab.
				if i < len(doc.URLs)-1 {
					time.Sleep(500 * time.Millisecond)
				}
			}
			return nil
		},
	}
}

func openInBrowser(url string) error {
	var c *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		c = exec.Command("open", url)
	case "windows":
		c = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		c = exec.Command("xdg-open", url)
	}
	return c.Start()
}
