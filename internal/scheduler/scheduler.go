package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/subtrack/internal/audit/domain"
	auditcontext "github.com/smallbiznis/subtrack/internal/auditcontext"
	"github.com/smallbiznis/subtrack/internal/authorization"
	"github.com/smallbiznis/subtrack/internal/clock"
	"github.com/smallbiznis/subtrack/internal/cloudmetrics"
	"github.com/smallbiznis/subtrack/internal/config"
	notificationdomain "github.com/smallbiznis/subtrack/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/subtrack/internal/observability/metrics"
	cycledomain "github.com/smallbiznis/subtrack/internal/paymentcycle/domain"
	"github.com/smallbiznis/subtrack/internal/ratelimit"
	"github.com/smallbiznis/subtrack/internal/scheduler/guard"
	subscriptiondomain "github.com/smallbiznis/subtrack/internal/subscription/domain"
	pkgdb "github.com/smallbiznis/subtrack/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobCycleCreation      = "cycle_creation"
	JobAutoCancellation   = "auto_cancellation"
	JobSubscriptionExpiry = "subscription_expiry"
)

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	GenID            *snowflake.Node
	Clock            clock.Clock
	CycleRepo        cycledomain.Repository
	SubscriptionRepo subscriptiondomain.Repository
	AuthzSvc         authorization.Service
	AuditSvc         auditdomain.Service
	JobsConfig       *config.JobsConfigHolder

	Notifier notificationdomain.Service `optional:"true"`
	Locker   *ratelimit.Locker          `optional:"true"`
	Config   Config                     `optional:"true"`
}

type Scheduler struct {
	db               *gorm.DB
	log              *zap.Logger
	cfg              Config
	genID            *snowflake.Node
	clock            clock.Clock
	cycleRepo        cycledomain.Repository
	subscriptionRepo subscriptiondomain.Repository
	authzSvc         authorization.Service
	auditSvc         auditdomain.Service
	jobsConfig       *config.JobsConfigHolder
	notifier         notificationdomain.Service
	locker           *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil ||
		p.CycleRepo == nil || p.SubscriptionRepo == nil ||
		p.AuthzSvc == nil || p.AuditSvc == nil || p.JobsConfig == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:               p.DB,
		log:              p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:              p.Config.withDefaults(),
		genID:            p.GenID,
		clock:            p.Clock,
		cycleRepo:        p.CycleRepo,
		subscriptionRepo: p.SubscriptionRepo,
		authzSvc:         p.AuthzSvc,
		auditSvc:         p.AuditSvc,
		jobsConfig:       p.JobsConfig,
		notifier:         p.Notifier,
		locker:           p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")
	ctx = s.withLogContext(ctx)
	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A deadline hit is a soft failure; the next sweep resumes where the
	// keyset cursor left off.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	if s.locker != nil {
		token, ok, err := s.locker.TryLock(parent, s.cfg.LeaseKey, s.cfg.LeaseTTL)
		switch {
		case err != nil:
			// Every job is idempotent, so running without the lease is
			// safe; it only loses single-flight across replicas.
			s.log.Warn("scheduler lease acquire failed, running without lease", zap.Error(err))
		case !ok:
			s.log.Debug("scheduler lease held elsewhere, skipping sweep")
			return nil
		default:
			defer func() {
				if err := s.locker.Release(parent, s.cfg.LeaseKey, token); err != nil {
					s.log.Warn("scheduler lease release failed", zap.Error(err))
				}
			}()
		}
	}

	jobsCfg := s.jobsConfig.Get()
	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobCycleCreation, jobsCfg.CycleCreation.Enabled, func(ctx context.Context) error {
			return s.runJob(ctx, JobCycleCreation, s.jobBatchSize(jobsCfg.CycleCreation), s.cfg.JobTimeout, s.cycleCreationJob)
		}},
		{JobAutoCancellation, jobsCfg.AutoCancellation.Enabled, func(ctx context.Context) error {
			return s.runJob(ctx, JobAutoCancellation, s.jobBatchSize(jobsCfg.AutoCancellation), s.cfg.JobTimeout, s.autoCancellationJob)
		}},
		{JobSubscriptionExpiry, jobsCfg.SubscriptionExpiry.Enabled, func(ctx context.Context) error {
			return s.runJob(ctx, JobSubscriptionExpiry, s.jobBatchSize(jobsCfg.SubscriptionExpiry), s.cfg.JobTimeout, s.subscriptionExpiryJob)
		}},
	}

	var err error
	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) cycleCreationJob(ctx context.Context) error {
	return jobResult(ctx, s.RunCycleCreation(ctx, s.clock.Now()).Errors)
}

func (s *Scheduler) autoCancellationJob(ctx context.Context) error {
	return jobResult(ctx, s.RunAutoCancellation(ctx, s.clock.Now()).Errors)
}

func (s *Scheduler) subscriptionExpiryJob(ctx context.Context) error {
	return jobResult(ctx, s.RunSubscriptionExpiry(ctx, s.clock.Now()).Errors)
}

// jobResult folds the summary errors into one error. Summaries carry plain
// strings, so the context error must be rejoined here for a deadline hit to
// classify as a timeout.
func jobResult(ctx context.Context, errs []string) error {
	err := summaryError(errs)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(ctxErr, err)
	}
	return err
}

// RunCycleCreation opens the next payment cycle for every active
// subscription whose renewal start falls within the creation window. The
// unique (subscription_id, cycle_number) constraint makes re-runs and
// concurrent runs idempotent.
func (s *Scheduler) RunCycleCreation(ctx context.Context, now time.Time) CycleCreationSummary {
	summary := CycleCreationSummary{Errors: []string{}, Created: []CreatedCycle{}}
	ctx, run, owner := s.ensureJobRun(ctx, JobCycleCreation, s.jobBatchSize(s.jobsConfig.Get().CycleCreation))
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	if err := s.authorizeSystem(ctx); err != nil {
		s.logSchedulerError(ctx, run, "scheduler.authorize.failed", JobCycleCreation, err)
		summary.Errors = append(summary.Errors, err.Error())
		return summary
	}

	now = now.UTC()
	today := cycledomain.NormalizeDate(now)
	batch := run.batchSize
	schedMetrics := obsmetrics.Scheduler()

	var afterID snowflake.ID
	for {
		if ctx.Err() != nil {
			summary.Errors = append(summary.Errors, ctx.Err().Error())
			break
		}

		subscriptions, err := s.subscriptionRepo.ListActive(ctx, s.db, afterID, batch)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.subscription.list.failed", JobCycleCreation, err)
			summary.Errors = append(summary.Errors, fmt.Sprintf("list subscriptions: %v", err))
			break
		}
		if len(subscriptions) == 0 {
			break
		}

		for _, sub := range subscriptions {
			summary.TotalChecked++
			cycle, err := s.createNextCycle(ctx, sub, today, now)
			if err != nil {
				if isSkip(err) {
					continue
				}
				schedMetrics.IncCycleError(obsmetrics.CycleStageCreation, err)
				s.logSchedulerError(ctx, run, "scheduler.cycle.create.failed", JobCycleCreation, err,
					zap.String("subscription_id", idString(sub.ID)),
				)
				summary.Errors = append(summary.Errors, fmt.Sprintf("subscription %s: %v", sub.ID, err))
				continue
			}
			if cycle == nil {
				// Another run already created this cycle number.
				schedMetrics.IncBatchDeferred(JobCycleCreation, obsmetrics.SchedulerJobReasonUniqueViolation)
				continue
			}

			run.AddProcessed(1)
			summary.CyclesCreated++
			summary.Created = append(summary.Created, CreatedCycle{
				SubscriptionID: sub.ID.String(),
				CycleNumber:    cycle.CycleNumber,
				StartDate:      cycle.CycleStartDate.Format("2006-01-02"),
				EndDate:        cycle.CycleEndDate.Format("2006-01-02"),
			})
			s.logCycleCreated(ctx, cycle)
			schedMetrics.IncCycleTransition("none", string(cycle.CycleStatus))
			cloudmetrics.RecordCycleEvent("create")
			s.auditSystem(ctx, "payment_cycle.create", "payment_cycle", cycle.ID.String(), map[string]any{
				"subscription_id":  sub.ID.String(),
				"cycle_number":     cycle.CycleNumber,
				"cycle_start_date": cycle.CycleStartDate.Format("2006-01-02"),
				"cycle_end_date":   cycle.CycleEndDate.Format("2006-01-02"),
			})
			s.notifyRenewalPending(ctx, sub, cycle)
		}

		schedMetrics.AddBatchProcessed(JobCycleCreation, "subscriptions", len(subscriptions))
		afterID = subscriptions[len(subscriptions)-1].ID
		if len(subscriptions) < batch {
			break
		}
	}

	summary.Success = len(summary.Errors) == 0
	return summary
}

// RunAutoCancellation cancels cycles whose invoice deadline has strictly
// passed without an upload. Rows are claimed and cancelled inside one
// transaction; notifications go out after commit and are never unwound.
func (s *Scheduler) RunAutoCancellation(ctx context.Context, now time.Time) AutoCancellationSummary {
	summary := AutoCancellationSummary{Errors: []string{}, Cancelled: []CancelledCycle{}}
	ctx, run, owner := s.ensureJobRun(ctx, JobAutoCancellation, s.jobBatchSize(s.jobsConfig.Get().AutoCancellation))
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	if err := s.authorizeSystem(ctx); err != nil {
		s.logSchedulerError(ctx, run, "scheduler.authorize.failed", JobAutoCancellation, err)
		summary.Errors = append(summary.Errors, err.Error())
		return summary
	}

	now = now.UTC()
	today := cycledomain.NormalizeDate(now)
	batch := run.batchSize
	schedMetrics := obsmetrics.Scheduler()

	for {
		if ctx.Err() != nil {
			summary.Errors = append(summary.Errors, ctx.Err().Error())
			break
		}

		var cancelled []*cycledomain.PaymentCycle
		claimedCount := 0
		lockStart := time.Now()
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			cycles, err := s.cycleRepo.ClaimOverdue(ctx, tx, today, batch)
			if err != nil {
				return fmt.Errorf("claim overdue cycles: %w", err)
			}
			claimedCount = len(cycles)
			for _, cycle := range cycles {
				s.logCycleClaimed(ctx, JobAutoCancellation, cycle)
				if err := guard.EnsureCycleOverdue(cycle, today); err != nil {
					continue
				}
				rows, err := s.cycleRepo.CancelOverdue(ctx, tx, cycle.ID, cycledomain.AutoCancelReason, now)
				if err != nil {
					return fmt.Errorf("cancel cycle %s: %w", cycle.ID, err)
				}
				if rows == 0 {
					continue
				}
				cancelled = append(cancelled, cycle)
			}
			return nil
		})
		schedMetrics.ObserveDBLockWait(obsmetrics.LockResourceOverdueCycles, time.Since(lockStart))
		if err != nil {
			schedMetrics.IncCycleError(obsmetrics.CycleStageCancellation, err)
			s.logSchedulerError(ctx, run, "scheduler.cycle.cancel.failed", JobAutoCancellation, err)
			summary.Errors = append(summary.Errors, err.Error())
			break
		}

		summary.TotalOverdue += claimedCount
		for _, cycle := range cancelled {
			run.AddProcessed(1)
			summary.CancelledCount++
			summary.Cancelled = append(summary.Cancelled, CancelledCycle{
				CycleID:         cycle.ID.String(),
				SubscriptionID:  cycle.SubscriptionID.String(),
				CycleNumber:     cycle.CycleNumber,
				InvoiceDeadline: cycle.InvoiceDeadline.Format("2006-01-02"),
			})
			s.logCycleCancelled(ctx, cycle)
			schedMetrics.IncCycleTransition(
				string(cycledomain.CycleStatusPaymentRecorded),
				string(cycledomain.CycleStatusCancelled),
			)
			cloudmetrics.RecordCycleEvent(string(cycledomain.ActionAutoCancel))
			s.auditSystem(ctx, "payment_cycle.auto_cancel", "payment_cycle", cycle.ID.String(), map[string]any{
				"subscription_id":  cycle.SubscriptionID.String(),
				"cycle_number":     cycle.CycleNumber,
				"invoice_deadline": cycle.InvoiceDeadline.Format("2006-01-02"),
				"reason":           cycledomain.AutoCancelReason,
			})
			summary.NotificationsSent += s.notifyAutoCancelled(ctx, cycle)
		}

		schedMetrics.AddBatchProcessed(JobAutoCancellation, "payment_cycles", claimedCount)
		if claimedCount < batch {
			break
		}
	}

	summary.Success = len(summary.Errors) == 0
	return summary
}

// RunSubscriptionExpiry moves active subscriptions whose end date has
// strictly passed to EXPIRED. Expired subscriptions drop out of the cycle
// creation sweep.
func (s *Scheduler) RunSubscriptionExpiry(ctx context.Context, now time.Time) SubscriptionExpirySummary {
	summary := SubscriptionExpirySummary{Errors: []string{}}
	ctx, run, owner := s.ensureJobRun(ctx, JobSubscriptionExpiry, s.jobBatchSize(s.jobsConfig.Get().SubscriptionExpiry))
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	if err := s.authorizeSystem(ctx); err != nil {
		s.logSchedulerError(ctx, run, "scheduler.authorize.failed", JobSubscriptionExpiry, err)
		summary.Errors = append(summary.Errors, err.Error())
		return summary
	}

	now = now.UTC()
	today := cycledomain.NormalizeDate(now)
	batch := run.batchSize
	schedMetrics := obsmetrics.Scheduler()

	var afterID snowflake.ID
	for {
		if ctx.Err() != nil {
			summary.Errors = append(summary.Errors, ctx.Err().Error())
			break
		}

		subscriptions, err := s.subscriptionRepo.ListActiveEndingBefore(ctx, s.db, today, afterID, batch)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.subscription.list.failed", JobSubscriptionExpiry, err)
			summary.Errors = append(summary.Errors, fmt.Sprintf("list subscriptions: %v", err))
			break
		}
		if len(subscriptions) == 0 {
			break
		}

		for _, sub := range subscriptions {
			summary.TotalChecked++
			if err := guard.EnsureSubscriptionExpired(sub.EndDate, today); err != nil {
				continue
			}
			rows, err := s.subscriptionRepo.UpdateStatus(
				ctx, s.db, sub.ID,
				subscriptiondomain.SubscriptionStatusActive,
				subscriptiondomain.SubscriptionStatusExpired,
				nil, now,
			)
			if err != nil {
				schedMetrics.IncCycleError(obsmetrics.CycleStageExpiry, err)
				s.logSchedulerError(ctx, run, "scheduler.subscription.expire.failed", JobSubscriptionExpiry, err,
					zap.String("subscription_id", idString(sub.ID)),
				)
				summary.Errors = append(summary.Errors, fmt.Sprintf("subscription %s: %v", sub.ID, err))
				continue
			}
			if rows == 0 {
				// Status changed between listing and update.
				continue
			}
			run.AddProcessed(1)
			summary.ExpiredCount++
			metadata := map[string]any{"tool_name": sub.ToolName}
			if sub.EndDate != nil {
				metadata["end_date"] = sub.EndDate.Format("2006-01-02")
			}
			s.auditSystem(ctx, "subscription.expire", "subscription", sub.ID.String(), metadata)
		}

		schedMetrics.AddBatchProcessed(JobSubscriptionExpiry, "subscriptions", len(subscriptions))
		afterID = subscriptions[len(subscriptions)-1].ID
		if len(subscriptions) < batch {
			break
		}
	}

	summary.Success = len(summary.Errors) == 0
	return summary
}

func (s *Scheduler) createNextCycle(ctx context.Context, sub *subscriptiondomain.Subscription, today, now time.Time) (*cycledomain.PaymentCycle, error) {
	if err := guard.EnsureSubscriptionCanSpawnCycle(sub.Status); err != nil {
		return nil, err
	}

	latest, err := s.cycleRepo.FindLatestBySubscription(ctx, s.db, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("find latest cycle: %w", err)
	}
	if latest == nil {
		// Cycle #1 opens at activation; with no history there is nothing
		// to renew from.
		return nil, guard.ErrNoCycleHistory
	}

	nextStart := cycledomain.NormalizeDate(latest.CycleEndDate).AddDate(0, 0, 1)
	if err := guard.EnsureCycleWithinCreationWindow(today, nextStart, s.cfg.CreationWindowDays); err != nil {
		return nil, err
	}

	end := nextStart.AddDate(0, 0, sub.BillingFrequency.CycleLengthDays()-1)
	cycle := &cycledomain.PaymentCycle{
		ID:                s.genID.Generate(),
		SubscriptionID:    sub.ID,
		CycleNumber:       latest.CycleNumber + 1,
		CycleStartDate:    nextStart,
		CycleEndDate:      end,
		InvoiceDeadline:   end,
		CycleStatus:       cycledomain.CycleStatusPendingApproval,
		POCApprovalStatus: cycledomain.ApprovalStatusPending,
		PaymentStatus:     cycledomain.PaymentStatusInProgress,
		AccountingStatus:  cycledomain.AccountingStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.cycleRepo.Insert(ctx, s.db, cycle); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("insert cycle: %w", err)
	}
	return cycle, nil
}

func (s *Scheduler) notifyRenewalPending(ctx context.Context, sub *subscriptiondomain.Subscription, cycle *cycledomain.PaymentCycle) {
	if s.notifier == nil {
		return
	}
	subscriptionID := sub.ID
	message := fmt.Sprintf("%s cycle #%d (%s to %s) is awaiting your approval.",
		sub.ToolName,
		cycle.CycleNumber,
		cycle.CycleStartDate.Format("2006-01-02"),
		cycle.CycleEndDate.Format("2006-01-02"),
	)
	if err := s.notifier.NotifyPOC(ctx, sub.POCEmail, "Subscription renewal pending", message, &subscriptionID); err != nil {
		obsmetrics.Scheduler().IncCycleError(obsmetrics.CycleStageNotification, err)
		s.logger(ctx).Warn("poc notification failed",
			zap.String("subscription_id", idString(sub.ID)),
			zap.Error(err),
		)
	}
}

func (s *Scheduler) notifyAutoCancelled(ctx context.Context, cycle *cycledomain.PaymentCycle) int {
	if s.notifier == nil {
		return 0
	}

	sub, err := s.subscriptionRepo.FindByID(ctx, s.db, cycle.SubscriptionID)
	if err != nil || sub == nil {
		obsmetrics.Scheduler().IncCycleError(obsmetrics.CycleStageNotification, err)
		s.logger(ctx).Warn("cancelled cycle subscription lookup failed",
			zap.String("subscription_id", idString(cycle.SubscriptionID)),
			zap.Error(err),
		)
		return 0
	}

	sent := 0
	subscriptionID := sub.ID
	title := "Payment cycle auto-cancelled"
	message := fmt.Sprintf("%s cycle #%d was cancelled because no invoice was uploaded by %s.",
		sub.ToolName,
		cycle.CycleNumber,
		cycle.InvoiceDeadline.Format("2006-01-02"),
	)

	if err := s.notifier.NotifyPOC(ctx, sub.POCEmail, title, message, &subscriptionID); err != nil {
		obsmetrics.Scheduler().IncCycleError(obsmetrics.CycleStageNotification, err)
		s.logger(ctx).Warn("poc notification failed",
			zap.String("subscription_id", idString(sub.ID)),
			zap.Error(err),
		)
	} else {
		sent++
	}

	count, err := s.notifier.NotifyFinanceTeam(ctx, title, message, &subscriptionID)
	sent += count
	if err != nil {
		obsmetrics.Scheduler().IncCycleError(obsmetrics.CycleStageNotification, err)
		s.logger(ctx).Warn("finance notification failed",
			zap.String("subscription_id", idString(sub.ID)),
			zap.Error(err),
		)
	}
	return sent
}

func (s *Scheduler) authorizeSystem(ctx context.Context) error {
	return s.authzSvc.Authorize(ctx, "system", "*", authorization.ObjectJob, authorization.ActionJobTrigger)
}

func (s *Scheduler) auditSystem(ctx context.Context, action, targetType, targetID string, metadata map[string]any) {
	actorID := "scheduler"
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeSystem), &actorID, action, targetType, &targetID, metadata); err != nil {
		s.logger(ctx).Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Scheduler) jobBatchSize(toggle config.JobToggle) int {
	if toggle.BatchSize > 0 {
		return toggle.BatchSize
	}
	return s.cfg.BatchSize
}

func isSkip(err error) bool {
	return errors.Is(err, guard.ErrNoCycleHistory) ||
		errors.Is(err, guard.ErrOutsideCreationWindow) ||
		errors.Is(err, guard.ErrSubscriptionNotActive)
}

func summaryError(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%d errors, first: %s", len(errs), errs[0])
}
