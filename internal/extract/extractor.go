package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Extractor walks a directory of saved HTML snapshots and writes the job
// array of each page as <stem>.json into the output directory.
type Extractor struct {
	renderer Renderer
	logger   *zap.Logger
}

// NewExtractor wires a renderer into an extractor.
func NewExtractor(renderer Renderer, logger *zap.Logger) *Extractor {
	return &Extractor{renderer: renderer, logger: logger}
}

// Run processes every *.html file in lexicographic order, continuing past
// per-file failures. A missing input directory is fatal.
func (e *Extractor) Run(ctx context.Context, inputDir, outputDir string) error {
	names, err := listByExt(inputDir, ".html")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for _, name := range names {
		htmlPath := filepath.Join(inputDir, name)
		state, err := e.renderer.Render(ctx, htmlPath)
		if err != nil {
			e.logger.Error("Failed to render snapshot", zap.String("file", name), zap.Error(err))
			continue
		}

		jobList, ok := StateJobs(state)
		if !ok || len(jobList.Array()) == 0 {
			e.logger.Warn("No jobs found in snapshot", zap.String("file", name))
			continue
		}

		stem := strings.TrimSuffix(name, ".html")
		outPath := filepath.Join(outputDir, stem+".json")
		if err := os.WriteFile(outPath, []byte(jobList.Raw), 0o600); err != nil {
			e.logger.Error("Failed to write job dump", zap.String("file", outPath), zap.Error(err))
			continue
		}
		e.logger.Info("Extracted jobs",
			zap.String("file", name),
			zap.Int("jobs", len(jobList.Array())),
		)
	}
	return nil
}

// listByExt returns the sorted names of files with the given extension.
// An absent directory is an error; the caller treats it as fatal.
func listByExt(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
