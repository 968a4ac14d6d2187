package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DraftPurger deletes drafts last written before a cutoff
type DraftPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// DraftJanitorConfig configuration for the draft janitor
type DraftJanitorConfig struct {
	Schedule  string
	Retention time.Duration
	Timeout   time.Duration
}

// DefaultDraftJanitorConfig returns default configuration
func DefaultDraftJanitorConfig() DraftJanitorConfig {
	return DraftJanitorConfig{
		Schedule:  "0 3 * * *",
		Retention: 30 * 24 * time.Hour,
		Timeout:   5 * time.Minute,
	}
}

// DraftJanitor purges abandoned onboarding drafts on a cron schedule
type DraftJanitor struct {
	cron    *cron.Cron
	purger  DraftPurger
	logger  *zap.Logger
	config  DraftJanitorConfig
	now     func() time.Time
	mu      sync.Mutex
	running bool
}

// NewDraftJanitor creates a new draft janitor
func NewDraftJanitor(purger DraftPurger, logger *zap.Logger, config DraftJanitorConfig) *DraftJanitor {
	return &DraftJanitor{
		cron:   cron.New(),
		purger: purger,
		logger: logger,
		config: config,
		now:    time.Now,
	}
}

// Start schedules the purge job and runs it once immediately
func (j *DraftJanitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return fmt.Errorf("draft janitor already running")
	}

	if _, err := j.cron.AddFunc(j.config.Schedule, func() { j.run(ctx) }); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", j.config.Schedule, err)
	}

	j.logger.Info("Starting draft janitor",
		zap.String("schedule", j.config.Schedule),
		zap.Duration("retention", j.config.Retention))

	j.run(ctx)
	j.cron.Start()
	j.running = true
	return nil
}

// Stop stops the schedule and waits for a running purge to finish
func (j *DraftJanitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	<-j.cron.Stop().Done()
	j.running = false
	j.logger.Info("Draft janitor stopped")
}

func (j *DraftJanitor) run(ctx context.Context) {
	if _, err := j.RunOnce(ctx); err != nil {
		j.logger.Error("Failed to purge drafts", zap.Error(err))
	}
}

// RunOnce purges drafts older than the retention window
func (j *DraftJanitor) RunOnce(ctx context.Context) (int64, error) {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	cutoff := j.now().Add(-j.config.Retention)
	purged, err := j.purger.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge drafts before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if purged > 0 {
		j.logger.Info("Purged stale drafts", zap.Int64("count", purged), zap.Time("cutoff", cutoff))
	}
	return purged, nil
}
