package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	auditcontext "github.com/smallbiznis/subtrack/internal/auditcontext"
	obscontext "github.com/smallbiznis/subtrack/internal/observability/context"
	"github.com/smallbiznis/subtrack/internal/observability/correlation"
	obslogger "github.com/smallbiznis/subtrack/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/subtrack/internal/observability/metrics"
	cycledomain "github.com/smallbiznis/subtrack/internal/paymentcycle/domain"
	"go.uber.org/zap"
)

type jobRun struct {
	job            string
	runID          string
	batchSize      int
	startedAt      time.Time
	processedCount int
	errorCount     int
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processedCount += count
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

func (s *Scheduler) ensureJobRun(ctx context.Context, job string, batchSize int) (context.Context, *jobRun, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing := jobRunFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	// The run ID doubles as the correlation ID, so the trigger request, the
	// job log lines, and the audit rows written by the sweep share one key.
	ctx, runID := correlation.Ensure(ctx)
	run := &jobRun{
		job:       job,
		runID:     runID,
		batchSize: batchSize,
		startedAt: time.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = auditcontext.WithRequestID(ctx, runID)
	ctx = s.withLogContext(ctx)
	return ctx, run, true
}

func jobRunFromContext(ctx context.Context) *jobRun {
	if ctx == nil {
		return nil
	}
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok {
		return run
	}
	return nil
}

func (s *Scheduler) withLogContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return obscontext.WithActor(ctx, "system", "scheduler")
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int("batch_size", run.batchSize),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processedCount),
		zap.Int("error_count", run.errorCount),
	}
	log := s.logger(ctx)
	if run.errorCount > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logSchedulerError(ctx context.Context, run *jobRun, msg string, job string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	if run != nil {
		run.IncError()
	}
	ctx = s.withLogContext(ctx)
	errorType := obsmetrics.ClassifySchedulerErrorType(err)
	retryable := obsmetrics.IsSchedulerErrorRetryable(err)
	baseFields := []zap.Field{
		zap.String("job", job),
		zap.String("error_type", errorType),
		zap.String("error", err.Error()),
		zap.Bool("retryable", retryable),
	}
	s.logger(ctx).Error(msg, append(baseFields, fields...)...)
}

func (s *Scheduler) logCycleClaimed(ctx context.Context, job string, cycle *cycledomain.PaymentCycle) {
	if cycle == nil {
		return
	}
	s.logger(ctx).Debug("scheduler.cycle.claimed",
		zap.String("job", job),
		zap.String("cycle_id", idString(cycle.ID)),
		zap.String("subscription_id", idString(cycle.SubscriptionID)),
		zap.Int("cycle_number", cycle.CycleNumber),
		zap.String("status", string(cycle.CycleStatus)),
	)
}

func (s *Scheduler) logCycleCreated(ctx context.Context, cycle *cycledomain.PaymentCycle) {
	if cycle == nil {
		return
	}
	s.logger(ctx).Info("scheduler.cycle.created",
		zap.String("cycle_id", idString(cycle.ID)),
		zap.String("subscription_id", idString(cycle.SubscriptionID)),
		zap.Int("cycle_number", cycle.CycleNumber),
		zap.Time("cycle_start_date", cycle.CycleStartDate),
		zap.Time("cycle_end_date", cycle.CycleEndDate),
	)
}

func (s *Scheduler) logCycleCancelled(ctx context.Context, cycle *cycledomain.PaymentCycle) {
	if cycle == nil {
		return
	}
	s.logger(ctx).Info("scheduler.cycle.cancelled",
		zap.String("cycle_id", idString(cycle.ID)),
		zap.String("subscription_id", idString(cycle.SubscriptionID)),
		zap.Int("cycle_number", cycle.CycleNumber),
		zap.Time("invoice_deadline", cycle.InvoiceDeadline),
	)
}

func idString(id snowflake.ID) string {
	if id == 0 {
		return ""
	}
	return id.String()
}
