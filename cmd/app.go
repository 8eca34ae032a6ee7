package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jslade/jobsync/internal/airtable"
	"github.com/jslade/jobsync/internal/archive"
	"github.com/jslade/jobsync/internal/config"
	"github.com/jslade/jobsync/internal/extract"
	"github.com/jslade/jobsync/internal/ingest"
	"github.com/jslade/jobsync/internal/logging"
	"github.com/jslade/jobsync/internal/metrics"
	"github.com/jslade/jobsync/internal/queue"
	"github.com/jslade/jobsync/internal/store"
	"github.com/jslade/jobsync/internal/sync"
)

const defaultConfigPath = "config/jobsync.yaml"

// App bundles the loaded configuration and shared services the subcommands
// use.
type App struct {
	Config config.Config
	Logger *zap.Logger
}

// newApp loads environment variables, configuration and the logger.
func newApp(cfgPath string) (*App, error) {
	// A missing .env file is fine; real deployments use the environment.
	_ = godotenv.Load()

	if cfgPath == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			cfgPath = defaultConfigPath
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development, logging.FileConfig{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return nil, err
	}

	metrics.Init()

	return &App{Config: cfg, Logger: logger}, nil
}

// Close flushes the logger.
func (a *App) Close() {
	_ = a.Logger.Sync()
}

func (a *App) buildStore(ctx context.Context) (store.Store, error) {
	switch a.Config.DB.Provider {
	case "postgres":
		return store.NewPostgres(ctx, store.PostgresConfig{
			DSN:      a.Config.DB.DSN,
			MaxConns: a.Config.DB.MaxConns,
		})
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown db.provider: %s", a.Config.DB.Provider)
	}
}

func (a *App) buildArchive(ctx context.Context) (archive.Provider, error) {
	switch a.Config.Archive.Provider {
	case "noop", "":
		return &archive.NoOpProvider{}, nil
	case "local":
		return archive.NewLocalProvider(a.Config.Archive.LocalDir)
	case "gcs":
		return archive.NewGCSProvider(ctx, a.Config.Archive.GCSBucket, a.Config.Archive.Prefix)
	default:
		return nil, fmt.Errorf("unknown archive.provider: %s", a.Config.Archive.Provider)
	}
}

func (a *App) buildEvents(ctx context.Context) (queue.Provider, error) {
	switch a.Config.Events.Provider {
	case "noop", "":
		return &queue.NoOpProvider{}, nil
	case "memory":
		return &queue.MemoryProvider{}, nil
	case "pubsub":
		return queue.NewPubSubProvider(ctx, a.Config.Events.ProjectID, a.Config.Events.TopicID)
	default:
		return nil, fmt.Errorf("unknown events.provider: %s", a.Config.Events.Provider)
	}
}

// runExtract renders every saved snapshot and writes the job dumps.
func (a *App) runExtract(ctx context.Context) error {
	renderer, err := extract.NewChromedpRenderer(extract.ChromedpConfig{
		Headless:   a.Config.Renderer.Headless,
		NavTimeout: time.Duration(a.Config.Renderer.NavTimeoutSec) * time.Second,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}
	defer func() {
		if cerr := renderer.Close(ctx); cerr != nil {
			a.Logger.Warn("Failed to close renderer", zap.Error(cerr))
		}
	}()

	extractor := extract.NewExtractor(renderer, a.Logger)
	return extractor.Run(ctx, a.Config.Paths.RawHTMLDir, a.Config.Paths.JSONDir)
}

// runIngest loads every job dump into the relational store.
func (a *App) runIngest(ctx context.Context) error {
	st, err := a.buildStore(ctx)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	arch, err := a.buildArchive(ctx)
	if err != nil {
		return fmt.Errorf("init archive: %w", err)
	}
	defer func() {
		if cerr := arch.Close(); cerr != nil {
			a.Logger.Warn("Failed to close archive", zap.Error(cerr))
		}
	}()

	events, err := a.buildEvents(ctx)
	if err != nil {
		return fmt.Errorf("init events: %w", err)
	}
	defer func() {
		if cerr := events.Close(); cerr != nil {
			a.Logger.Warn("Failed to close event publisher", zap.Error(cerr))
		}
	}()

	pipeline := ingest.NewPipeline(st, arch, events, a.Logger)
	return pipeline.Run(ctx, a.Config.Paths.JSONDir)
}

// runSync reconciles the relational store with the Airtable base.
func (a *App) runSync(ctx context.Context) error {
	if err := a.Config.ValidateAirtable(); err != nil {
		return err
	}

	st, err := a.buildStore(ctx)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	client := airtable.NewClient(airtable.Config{
		APIKey:  a.Config.Airtable.APIKey,
		BaseID:  a.Config.Airtable.BaseID,
		BaseURL: a.Config.Airtable.BaseURL,
	}, a.Logger)

	engine := sync.NewEngine(
		st,
		client.Table(a.Config.Airtable.JobsTable),
		client.Table(a.Config.Airtable.SkillsTable),
		a.Config.Airtable.SchemaPath,
		a.Logger,
	)
	return engine.Run(ctx)
}

// runAll executes one full pass: extract, ingest, sync.
func (a *App) runAll(ctx context.Context) error {
	if err := a.runExtract(ctx); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if err := a.runIngest(ctx); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if err := a.runSync(ctx); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}
