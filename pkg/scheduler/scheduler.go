package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/verist/marketbrief/pkg/domain"
)

// Runner executes a pipeline pass and reports the outcome
type Runner interface {
	Run(ctx context.Context, window time.Duration) domain.PipelineResult
}

// Notifier delivers the bulletin to subscribers
type Notifier interface {
	Available() bool
	Broadcast(ctx context.Context, message string) error
}

// HealthChecker probes a collaborating component between broadcasts
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Config holds scheduling configuration
type Config struct {
	BroadcastTimes []string      // local wall-clock times in HH:MM form
	HealthInterval time.Duration // interval between health probes
	RunWindow      time.Duration // collection window for scheduled runs
}

// Scheduler fires pipeline runs at fixed local times of day and broadcasts
// the resulting bulletin. Concurrent runs are never allowed; a trigger that
// arrives while a run is in flight is skipped.
type Scheduler struct {
	runner   Runner
	notifier Notifier
	health   HealthChecker // may be nil
	cfg      Config
	now      func() time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc
	runMu  sync.Mutex
}

// New creates a scheduler; health may be nil
func New(runner Runner, notifier Notifier, health HealthChecker, cfg Config) (*Scheduler, error) {
	if len(cfg.BroadcastTimes) == 0 {
		cfg.BroadcastTimes = []string{"09:00", "13:00", "17:00"}
	}
	if cfg.HealthInterval == 0 {
		cfg.HealthInterval = time.Hour
	}
	if cfg.RunWindow == 0 {
		cfg.RunWindow = 3 * time.Hour
	}
	for _, t := range cfg.BroadcastTimes {
		if _, err := parseClock(t); err != nil {
			return nil, fmt.Errorf("invalid broadcast time %q: %w", t, err)
		}
	}

	return &Scheduler{
		runner:   runner,
		notifier: notifier,
		health:   health,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// Start launches the broadcast and health workers
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.broadcastWorker(ctx)

	if s.health != nil {
		s.wg.Add(1)
		go s.healthWorker(ctx)
	}

	lgr.Printf("[INFO] scheduler started, broadcast times %v, health interval %v",
		s.cfg.BroadcastTimes, s.cfg.HealthInterval)
}

// Stop gracefully stops the scheduler, waiting for any in-flight run
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

// RunNow triggers an immediate pipeline run and broadcast. Returns an error
// when another run is already in flight.
func (s *Scheduler) RunNow(ctx context.Context, window time.Duration) (domain.PipelineResult, error) {
	if !s.runMu.TryLock() {
		return domain.PipelineResult{}, fmt.Errorf("pipeline run already in progress")
	}
	defer s.runMu.Unlock()

	if window == 0 {
		window = s.cfg.RunWindow
	}
	return s.runAndDeliver(ctx, window), nil
}

// broadcastWorker sleeps until the next configured time of day and fires a run
func (s *Scheduler) broadcastWorker(ctx context.Context) {
	defer s.wg.Done()

	for {
		next := s.nextBroadcast(s.now())
		lgr.Printf("[INFO] next scheduled broadcast at %s", next.Format("2006-01-02 15:04:05"))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if !s.runMu.TryLock() {
			lgr.Printf("[WARN] scheduled run at %s skipped, another run in progress", next.Format("15:04"))
			continue
		}
		s.runAndDeliver(ctx, s.cfg.RunWindow)
		s.runMu.Unlock()
	}
}

// runAndDeliver executes one pipeline pass and broadcasts the bulletin. A
// delivery failure is logged but does not fail the run. Caller holds runMu.
func (s *Scheduler) runAndDeliver(ctx context.Context, window time.Duration) domain.PipelineResult {
	result := s.runner.Run(ctx, window)

	if result.Message == "" {
		return result
	}
	if !s.notifier.Available() {
		lgr.Printf("[WARN] delivery not configured, bulletin not sent")
		return result
	}
	if err := s.notifier.Broadcast(ctx, result.Message); err != nil {
		lgr.Printf("[ERROR] failed to broadcast bulletin: %v", err)
		return result
	}
	lgr.Printf("[INFO] bulletin broadcast, %d lines", result.Translated)
	return result
}

// healthWorker probes the health checker at the configured interval
func (s *Scheduler) healthWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.health.Ping(ctx); err != nil {
				lgr.Printf("[WARN] health check failed: %v", err)
				continue
			}
			lgr.Printf("[DEBUG] health check ok")
		}
	}
}

// nextBroadcast returns the earliest configured time of day strictly after now,
// rolling over to the next day when all of today's slots have passed
func (s *Scheduler) nextBroadcast(now time.Time) time.Time {
	candidates := make([]time.Time, 0, len(s.cfg.BroadcastTimes)*2)
	for _, spec := range s.cfg.BroadcastTimes {
		clock, _ := parseClock(spec) // validated in New
		today := time.Date(now.Year(), now.Month(), now.Day(), clock.hour, clock.minute, 0, 0, now.Location())
		candidates = append(candidates, today, today.AddDate(0, 0, 1))
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })

	for _, c := range candidates {
		if c.After(now) {
			return c
		}
	}
	return now.Add(24 * time.Hour) // unreachable, every slot has a tomorrow entry
}

type clockTime struct {
	hour, minute int
}

func parseClock(spec string) (clockTime, error) {
	t, err := time.Parse("15:04", spec)
	if err != nil {
		return clockTime{}, err
	}
	return clockTime{hour: t.Hour(), minute: t.Minute()}, nil
}
