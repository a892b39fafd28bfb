package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/studypass/billing/internal/app/service/notifier"
	"github.com/studypass/billing/internal/app/service/subscription"
	"github.com/studypass/billing/internal/app/service/usage"
	"github.com/studypass/billing/internal/models"
	cfgpkg "github.com/studypass/billing/pkg/config"
	"github.com/studypass/billing/pkg/types"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// expireGrace is how long past the renewal date an active subscription may
// linger before the expire job moves it to expired.
const expireGrace = 72 * time.Hour

// Service owns the periodic billing jobs. Jobs run as independent
// invocations with no inter-job locking; reminder sends are gated by
// per-subscription flags so an overlapping run cannot double-send.
type Service struct {
	cfg    *cfgpkg.Config
	db     *gorm.DB
	log    *zap.SugaredLogger
	usage  *usage.Service
	ledger *subscription.Service
	notif  notifier.Notifier
	cron   *cron.Cron
}

func NewService(cfg *cfgpkg.Config, db *gorm.DB, log *zap.SugaredLogger, um *usage.Service, ledger *subscription.Service, notif notifier.Notifier) *Service {
	return &Service{cfg: cfg, db: db, log: log, usage: um, ledger: ledger, notif: notif, cron: cron.New()}
}

func (s *Service) register() error {
	type job struct {
		name string
		spec string
		run  func(context.Context)
	}
	jobs := []job{
		{"usage_reset", s.cfg.Scheduler.UsageResetSpec, s.RunUsageReset},
		{"renewal_reminders", s.cfg.Scheduler.ReminderSpec, s.RunRenewalReminders},
		{"external_sync", s.cfg.Scheduler.ExternalSyncSpec, s.RunExternalSync},
		{"expire_lapsed", s.cfg.Scheduler.ExpireSpec, s.RunExpireLapsed},
	}
	for _, j := range jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() {
			start := time.Now()
			j.run(context.Background())
			s.log.Infow("billing_job_done", "job", j.name, "elapsed_ms", time.Since(start).Milliseconds())
		}); err != nil {
			return fmt.Errorf("failed to register job %s: %w", j.name, err)
		}
	}
	return nil
}

// RunUsageReset zeroes expired usage counters for users holding an active
// subscription. Blanket semantics make a re-run harmless.
func (s *Service) RunUsageReset(ctx context.Context) {
	n, err := s.usage.ResetExpiredCounters(ctx, time.Now())
	if err != nil {
		s.log.Errorf("usage reset job failed: %v", err)
		return
	}
	s.log.Infow("usage counters reset", "rows", n)
}

// RunRenewalReminders sends the 7-day and 1-day renewal reminders for
// active, auto-renewing subscriptions. Each milestone flag is claimed with a
// conditional update before the send, guaranteeing at-most-once delivery
// without a separate dedup store.
func (s *Service) RunRenewalReminders(ctx context.Context) {
	now := time.Now()
	s.remindWindow(ctx, now, 7*24*time.Hour, "reminder7_sent", 7)
	s.remindWindow(ctx, now, 24*time.Hour, "reminder1_sent", 1)
}

func (s *Service) remindWindow(ctx context.Context, now time.Time, window time.Duration, flagColumn string, daysLeft int) {
	var subs []*models.Subscription
	err := s.db.WithContext(ctx).
		Where("status = ? AND auto_renew = true", types.SubscriptionStatusActive).
		Where(flagColumn+" = false").
		Where("renewal_date IS NOT NULL AND renewal_date > ? AND renewal_date <= ?", now, now.Add(window)).
		Find(&subs).Error
	if err != nil {
		s.log.Errorf("reminder query failed: %v", err)
		return
	}

	for _, sub := range subs {
		// Claim the flag first; a concurrent run loses the conditional update
		// and skips the send.
		res := s.db.WithContext(ctx).Model(&models.Subscription{}).
			Where("id = ? AND "+flagColumn+" = false", sub.ID).
			Update(flagColumn, true)
		if res.Error != nil {
			s.log.Errorf("failed to mark reminder sent for %s: %v", sub.ID, res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}
		s.notif.RenewalReminder(ctx, sub.UserID, *sub.RenewalDate, daysLeft)
	}
}

// RunExternalSync retries provider side effects that failed earlier.
func (s *Service) RunExternalSync(ctx context.Context) {
	n, err := s.ledger.RetryPendingSyncs(ctx)
	if err != nil {
		s.log.Errorf("external sync job failed: %v", err)
		return
	}
	if n > 0 {
		s.log.Infow("pending provider syncs cleared", "count", n)
	}
}

// RunExpireLapsed moves long-overdue active subscriptions to expired.
func (s *Service) RunExpireLapsed(ctx context.Context) {
	n, err := s.ledger.ExpireOverdue(ctx, time.Now(), expireGrace)
	if err != nil {
		s.log.Errorf("expire job failed: %v", err)
		return
	}
	if n > 0 {
		s.log.Infow("subscriptions expired", "count", n)
	}
}

func registerScheduler(lc fx.Lifecycle, s *Service) {
	if !s.cfg.Scheduler.Enabled {
		s.log.Infow("billing scheduler disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := s.register(); err != nil {
				return err
			}
			s.cron.Start()
			s.log.Infow("billing scheduler started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopCtx := s.cron.Stop()
			select {
			case <-stopCtx.Done():
			case <-ctx.Done():
			}
			s.log.Infow("billing scheduler stopped")
			return nil
		},
	})
}

// Module exposes the billing scheduler via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Invoke(registerScheduler),
)
