package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Refresher periodically forces model rediscovery on the live gateway so the
// catalog picks up upstream changes without a client asking for a refresh.
type Refresher struct {
	schedule string
	current  func() *Gateway
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewRefresher creates a refresher for the gateway returned by current.
// Common schedules:
//   - "*/15 * * * *" - every 15 minutes
//   - "0 * * * *"    - hourly
//
// An empty schedule disables refreshing.
func NewRefresher(schedule string, current func() *Gateway, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		schedule: schedule,
		current:  current,
		cron:     cron.New(),
		logger:   logger.With("component", "gateway.refresher"),
	}
}

// ValidateSchedule reports whether a schedule is a valid cron expression.
// An empty schedule is valid.
func ValidateSchedule(schedule string) error {
	if schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// Start schedules refreshes until ctx is cancelled or Stop is called.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedule == "" {
		r.logger.Info("model refresh schedule not configured, skipping")
		return nil
	}
	if err := ValidateSchedule(r.schedule); err != nil {
		return err
	}

	if _, err := r.cron.AddFunc(r.schedule, func() { r.Refresh(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule model refresh: %w", err)
	}
	r.cron.Start()
	r.running = true

	r.logger.Info("model refresher started", "schedule", r.schedule)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Refresh forces rediscovery on every provider of the live gateway.
func (r *Refresher) Refresh(ctx context.Context) int {
	g := r.current()
	if g == nil {
		return 0
	}
	start := time.Now()
	models := g.ListAllModels(ctx, true)
	r.logger.Info("model catalog refreshed",
		"models", len(models),
		"duration", time.Since(start),
	)
	return len(models)
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		<-r.cron.Stop().Done()
		r.running = false
		r.logger.Info("model refresher stopped")
	}
}

// IsRunning reports whether refreshes are scheduled.
func (r *Refresher) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// NextRun returns the next scheduled refresh, or nil when not running.
func (r *Refresher) NextRun() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.cron.Entries()
	if !r.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
