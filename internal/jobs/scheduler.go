// Package jobs runs periodic maintenance work.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const tokenCleanupJob = "oauth-token-cleanup"

// TokenPurger deletes expired tokens and authorization codes.
type TokenPurger interface {
	PurgeExpired(ctx context.Context) (tokens int64, codes int64, err error)
}

// Scheduler manages background jobs.
type Scheduler struct {
	scheduler gocron.Scheduler
	purger    TokenPurger
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
}

func NewScheduler(purger TokenPurger, cleanupInterval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		scheduler: scheduler,
		purger:    purger,
		logger:    logger.With("component", "jobs"),
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]gocron.Job),
	}

	job, err := scheduler.NewJob(
		gocron.DurationJob(cleanupInterval),
		gocron.NewTask(s.CleanupTokens, ctx),
		gocron.WithName(tokenCleanupJob),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("registering %s: %w", tokenCleanupJob, err)
	}
	s.jobs[tokenCleanupJob] = job

	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("starting background job scheduler", "jobs", len(s.jobs))
	s.scheduler.Start()
}

// Stop waits for running jobs to return.
func (s *Scheduler) Stop() error {
	s.logger.Info("stopping background job scheduler")
	s.cancel()
	return s.scheduler.Shutdown()
}

// Job returns a registered job by name.
func (s *Scheduler) Job(name string) (gocron.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[name]
	return job, ok
}

// CleanupTokens removes tokens whose access and refresh halves have both
// expired, plus expired authorization codes.
func (s *Scheduler) CleanupTokens(ctx context.Context) error {
	started := time.Now()
	tokens, codes, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("token cleanup failed", "error", err)
		return err
	}
	s.logger.Info("token cleanup finished",
		"tokens_deleted", tokens,
		"codes_deleted", codes,
		"duration", time.Since(started),
	)
	return nil
}
