package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/inkhaven-social/warden/behavior"
	"github.com/inkhaven-social/warden/enforcement"

	"github.com/robfig/cron/v3"
)

// Sweeper owns the periodic maintenance jobs: retiring lapsed suspensions
// and scanning recently active accounts for behavioral anomalies.
type Sweeper struct {
	cron        *cron.Cron
	enforcement *enforcement.Service
	behavior    *behavior.Detector
	activity    behavior.ActivityStore
	logger      *slog.Logger
}

func NewSweeper(enf *enforcement.Service, det *behavior.Detector, activity behavior.ActivityStore, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		cron:        cron.New(cron.WithLocation(time.UTC)),
		enforcement: enf,
		behavior:    det,
		activity:    activity,
		logger:      logger.With("system", "sweeper"),
	}
}

func (s *Sweeper) Start() {
	// offset from the top of the hour so the jobs never fire together
	_, err := s.cron.AddFunc("7 * * * *", s.sweepSuspensions)
	if err != nil {
		s.logger.Error("failed to register suspension sweep", "err", err)
	}

	_, err = s.cron.AddFunc("20 */6 * * *", s.scanActiveAccounts)
	if err != nil {
		s.logger.Error("failed to register behavioral scan sweep", "err", err)
	}

	s.cron.Start()
	s.logger.Info("maintenance sweeps scheduled")
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("maintenance sweeps stopped")
}

func (s *Sweeper) sweepSuspensions() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sweepRunCount.WithLabelValues("suspensions").Inc()
	n, err := s.enforcement.ExpireSweep(ctx)
	if err != nil {
		sweepErrorCount.WithLabelValues("suspensions").Inc()
		s.logger.Error("suspension expiry sweep failed", "err", err)
		return
	}
	s.logger.Info("suspension expiry sweep complete", "expired", n)
}

func (s *Sweeper) scanActiveAccounts() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	sweepRunCount.WithLabelValues("behavior").Inc()
	accounts, err := s.activity.ActiveAccounts(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		sweepErrorCount.WithLabelValues("behavior").Inc()
		s.logger.Error("listing active accounts for scan", "err", err)
		return
	}

	flagged := 0
	for _, accountID := range accounts {
		flags, err := s.behavior.ScanAndRecord(ctx, accountID)
		if err != nil {
			s.logger.Warn("behavioral scan failed", "account", accountID, "err", err)
			continue
		}
		accountsScannedCount.Inc()
		if len(flags) > 0 {
			flagged++
		}
	}
	s.logger.Info("behavioral scan sweep complete", "scanned", len(accounts), "flagged", flagged)
}
