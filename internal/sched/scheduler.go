package sched

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler wraps robfig/cron around one recurring run function.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	run    func(ctx context.Context)
	lock   *Lock // nil disables locking
	logger *zap.Logger
}

// New builds a scheduler for the given cron spec, e.g. "@every 6h". A nil
// lock means runs are only serialized within this process.
func New(spec string, run func(ctx context.Context), lock *Lock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		spec:   spec,
		run:    run,
		lock:   lock,
		logger: logger,
	}
}

// Start registers the job and starts the cron loop. One run fires
// immediately so a fresh deployment does not wait for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("register cron spec %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.String("spec", s.spec))

	go s.tick(ctx)
	return nil
}

// Stop shuts the cron loop down; in-flight runs finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.lock != nil {
		release, ok, err := s.lock.TryAcquire(ctx)
		if err != nil {
			s.logger.Error("Failed to acquire run lock", zap.Error(err))
			return
		}
		if !ok {
			s.logger.Info("Another instance holds the run lock, skipping")
			return
		}
		defer release()
	}
	s.run(ctx)
}
