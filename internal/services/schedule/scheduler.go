// Package schedule rescans configured listing URLs on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// DefaultSchedule rescans every 30 minutes
const DefaultSchedule = "0 */30 * * * *"

// ScanFunc scans one listing URL
type ScanFunc func(ctx context.Context, url string) error

// RunStats summarizes one scheduled run
type RunStats struct {
	URLs     int
	Scanned  int
	Failed   int
	Duration time.Duration
}

// Scheduler handles periodic rescans
type Scheduler struct {
	scan    ScanFunc
	urls    []string
	timeout time.Duration
	cron    *cron.Cron
	logger  arbor.ILogger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	runs    sync.WaitGroup
}

// NewScheduler creates a scheduler that calls scan for every url on each run.
// A run is bounded by timeout when it is positive and cancelled by Stop.
func NewScheduler(scan ScanFunc, urls []string, timeout time.Duration, logger arbor.ILogger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scan:    scan,
		urls:    urls,
		timeout: timeout,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins the scheduled rescans
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		s.run()
	}); err != nil {
		return fmt.Errorf("invalid rescan schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Int("urls", len(s.urls)).
		Msg("Rescan scheduler started")

	return nil
}

// Stop cancels a run in progress, stops the scheduler and waits for the
// cancelled run to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.runs.Wait()
	s.logger.Info().Msg("Rescan scheduler stopped")
}

// RunNow triggers an immediate run in the background
func (s *Scheduler) RunNow() {
	s.logger.Info().Msg("Triggering immediate rescan")
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		s.run()
	}()
}

// run scans every url once. A run that starts while another is still
// in progress is skipped.
func (s *Scheduler) run() RunStats {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous rescan still running, skipping")
		return RunStats{}
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	stats := RunStats{URLs: len(s.urls)}

	for _, url := range s.urls {
		if ctx.Err() != nil {
			stats.Failed += stats.URLs - stats.Scanned
			s.logger.Warn().Err(ctx.Err()).Int("skipped", stats.URLs-stats.Scanned).Msg("Rescan cancelled")
			break
		}
		stats.Scanned++
		if err := s.scan(ctx, url); err != nil {
			stats.Failed++
			s.logger.Error().
				Err(err).
				Str("url", url).
				Msg("Scheduled scan failed")
		}
	}
	stats.Duration = time.Since(start)

	s.logger.Info().
		Int("urls", stats.URLs).
		Int("failed", stats.Failed).
		Dur("duration", stats.Duration).
		Msg("Scheduled rescan completed")

	return stats
}
