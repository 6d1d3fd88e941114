package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"blackroad-os/carpool/pkg/config"
	"blackroad-os/carpool/pkg/ledger/chain"
)

// Verifier is the part of chain.Ledger the scheduler needs.
type Verifier interface {
	Tail(ctx context.Context) (int64, string, error)
	VerifyRange(ctx context.Context, from, to int64) (*chain.Report, error)
}

// Scheduler verifies the chain on a cron schedule. Runs never overlap: a
// tick that fires while the previous audit is still running is skipped.
type Scheduler struct {
	verifier    Verifier
	schedule    string
	window      int64
	onViolation func(*chain.Report)

	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
	stop    chan struct{}
	last    *chain.Report
}

// NewScheduler creates a scheduler from the ledger audit configuration.
// onViolation, if non-nil, is called with every failing report.
func NewScheduler(verifier Verifier, cfg config.AuditConfig, onViolation func(*chain.Report)) *Scheduler {
	return &Scheduler{
		verifier:    verifier,
		schedule:    cfg.Schedule,
		window:      cfg.Window,
		onViolation: onViolation,
		cron:        cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:      slog.Default().With("component", "ledger.audit"),
	}
}

// Start schedules audits using standard five-field cron syntax:
//   - "*/15 * * * *" - every 15 minutes
//   - "0 * * * *"    - hourly
//   - "0 4 * * *"    - daily at 4 AM
//
// An empty schedule leaves the scheduler idle. The scheduler stops when ctx
// is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("audit scheduler already running")
	}
	if s.schedule == "" {
		s.logger.Info("audit schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule audit: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.stop = make(chan struct{})

	s.logger.Info("audit scheduler started", "schedule", s.schedule, "window", s.window)

	stop := s.stop
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stop:
		}
	}()
	return nil
}

// RunOnce verifies the configured window below the current tail, or the
// whole chain when the window is zero.
func (s *Scheduler) RunOnce(ctx context.Context) (*chain.Report, error) {
	tail, _, err := s.verifier.Tail(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain tail: %w", err)
	}

	from := int64(1)
	if s.window > 0 && tail > s.window {
		from = tail - s.window + 1
	}

	report, err := s.verifier.VerifyRange(ctx, from, tail)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	if !report.Valid && s.onViolation != nil {
		s.onViolation(report)
	}
	return report, nil
}

func (s *Scheduler) run(ctx context.Context) {
	s.logger.Debug("starting scheduled chain audit")

	report, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("scheduled chain audit failed", "error", err)
		return
	}
	if !report.Valid {
		s.logger.Error("scheduled chain audit found a violation",
			"sequence", report.FirstInvalid,
			"reason", report.Failure.Reason,
		)
		return
	}
	s.logger.Info("scheduled chain audit completed", "from", report.From, "to", report.To, "checked", report.Checked)
}

// Stop stops the scheduler and waits for a running audit to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	// Waiting outside the lock lets an in-flight RunOnce record its report.
	<-s.cron.Stop().Done()
	s.logger.Info("audit scheduler stopped")
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled audit time, or nil when idle.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}

// LastReport returns the most recent audit result, or nil before the first.
func (s *Scheduler) LastReport() *chain.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
