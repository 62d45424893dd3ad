package payouts

import (
	"context"
	"fmt"
	"time"

	"deliveryhub/internal/xpkg/logger"

	"github.com/robfig/cron/v3"
)

const (
	schedulerLockKey = "payouts:scheduler"
	schedulerLockTTL = 10 * time.Minute
	runTimeout       = 5 * time.Minute

	// SchedulerActor is recorded as created_by on scheduled payouts.
	SchedulerActor = "payout-scheduler"
)

// ReferralSweeper re-evaluates pending referrals.
type ReferralSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Scheduler struct {
	payouts   *Service
	referrals ReferralSweeper
	locker    Locker
	spec      string
	mylog     logger.Logger
}

func NewScheduler(payouts *Service, referrals ReferralSweeper, locker Locker, spec string, mylog logger.Logger) *Scheduler {
	return &Scheduler{
		payouts:   payouts,
		referrals: referrals,
		locker:    locker,
		spec:      spec,
		mylog:     mylog,
	}
}

// RunResult is what one pass did. Skipped is set when another instance held the lock.
type RunResult struct {
	Skipped  bool
	Created  int
	Rewarded int
}

// RunOnce creates due payouts and then sweeps pending referrals, holding the
// global scheduler lock for the whole pass.
func (s *Scheduler) RunOnce(ctx context.Context) (RunResult, error) {
	mylog := s.mylog.Action("scheduler_run")

	release, ok, err := s.locker.TryAcquire(ctx, schedulerLockKey, schedulerLockTTL)
	if err != nil {
		return RunResult{}, fmt.Errorf("scheduler lock: %w", err)
	}
	if !ok {
		mylog.Info("another scheduler is running, skipping")
		return RunResult{Skipped: true}, nil
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	var res RunResult
	res.Created, err = s.payouts.CreateDue(ctx, SchedulerActor)
	if err != nil {
		return res, fmt.Errorf("create due payouts: %w", err)
	}
	if s.referrals != nil {
		res.Rewarded, err = s.referrals.Sweep(ctx)
		if err != nil {
			return res, fmt.Errorf("sweep referrals: %w", err)
		}
	}
	mylog.Info("scheduler pass finished", "payouts_created", res.Created, "referrals_rewarded", res.Rewarded)
	return res, nil
}

// Run executes RunOnce on the cron schedule until ctx is done. Overlapping runs are skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{s.mylog.Action("cron")}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.mylog.Action("scheduler_run").Error("Scheduler pass failed", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}

	c.Start()
	s.mylog.Action("scheduler_started").Info("payout scheduler started", "schedule", s.spec)

	<-ctx.Done()
	<-c.Stop().Done()
	s.mylog.Action("scheduler_stopped").Info("payout scheduler stopped")
	return nil
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, err, keysAndValues...)
}
