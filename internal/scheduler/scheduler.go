// Package scheduler owns the daily trigger, the one-cycle-at-a-time guard,
// and the round-robin account selection.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"vidcourier/internal/models"
	"vidcourier/internal/pipeline"
)

// stuckCycleThreshold is how many consecutive dropped triggers are logged as
// an operational anomaly before the skip counter resets.
const stuckCycleThreshold = 3

// AccountSource selects accounts and probes storage connectivity.
type AccountSource interface {
	ListActiveByLastServed(ctx context.Context, limit int) ([]models.Account, error)
	Ping(ctx context.Context) error
}

// PipelineRunner executes one per-account transfer pass.
type PipelineRunner interface {
	Run(ctx context.Context, account *models.Account, result *pipeline.CycleResult)
}

// Reporter consumes the cycle result exactly once.
type Reporter interface {
	Report(result *pipeline.CycleResult)
}

type Scheduler struct {
	accounts    AccountSource
	runner      PipelineRunner
	reporter    Reporter
	logger      *zap.Logger
	cronSpec    string
	maxAccounts int

	cron *cron.Cron

	// The guard below is the only cross-cycle shared mutable state.
	mu      sync.Mutex
	running bool
	skips   int
}

func New(accounts AccountSource, runner PipelineRunner, reporter Reporter, cronSpec string, maxAccounts int, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		accounts:    accounts,
		runner:      runner,
		reporter:    reporter,
		logger:      logger,
		cronSpec:    cronSpec,
		maxAccounts: maxAccounts,
	}
}

// Start registers the recurring trigger and begins scheduling.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithSeconds())
	_, err := s.cron.AddFunc(s.cronSpec, func() {
		s.TryRunCycle(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.cronSpec))
	return nil
}

// Stop halts the trigger and waits for a live cycle to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// TryRunCycle runs one cycle unless one is already live. A dropped trigger is
// never queued; it only increments the skip counter.
func (s *Scheduler) TryRunCycle(ctx context.Context) {
	if !s.tryAcquire() {
		return
	}
	defer s.release()

	s.runCycle(ctx)
}

func (s *Scheduler) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.skips++
		s.logger.Warn("cycle trigger dropped, previous cycle still running",
			zap.Int("consecutiveSkips", s.skips))
		if s.skips >= stuckCycleThreshold {
			s.logger.Error("cycle appears stuck: three consecutive triggers dropped")
			s.skips = 0
		}
		return false
	}
	s.running = true
	s.skips = 0
	return true
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// runCycle is the cycle body. Whatever happens inside, exactly one report
// goes out and the running flag is cleared by the caller.
func (s *Scheduler) runCycle(ctx context.Context) {
	result := pipeline.NewCycleResult()
	reported := false

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("cycle body panicked", zap.Any("panic", rec))
			if !reported {
				result.FinishedAt = time.Now()
				s.reporter.Report(result)
			}
		}
	}()

	s.logger.Info("cycle starting")

	// Systemic precondition: never touch an account when storage is down.
	if err := s.accounts.Ping(ctx); err != nil {
		s.logger.Error("storage backend unreachable, aborting cycle", zap.Error(err))
		result.StorageUnavailable = true
		result.FinishedAt = time.Now()
		s.reporter.Report(result)
		reported = true
		return
	}

	accounts, err := s.accounts.ListActiveByLastServed(ctx, s.maxAccounts)
	if err != nil {
		s.logger.Error("failed to select accounts, aborting cycle", zap.Error(err))
		result.StorageUnavailable = true
		result.FinishedAt = time.Now()
		s.reporter.Report(result)
		reported = true
		return
	}

	result.AccountsConsidered = len(accounts)
	if len(accounts) == 0 {
		s.logger.Info("no active accounts qualify for this cycle")
	}

	// Strictly sequential: account i completes before account i+1 begins.
	for i := range accounts {
		s.runner.Run(ctx, &accounts[i], result)
	}

	result.FinishedAt = time.Now()
	s.reporter.Report(result)
	reported = true

	s.logger.Info("cycle finished",
		zap.Int("accountsConsidered", result.AccountsConsidered),
		zap.Int("published", len(result.Successes)),
		zap.Int("failed", len(result.Failures)),
		zap.Bool("noVideoAvailable", result.NoVideoAvailable),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)))
}
