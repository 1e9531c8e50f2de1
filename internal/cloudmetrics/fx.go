package cloudmetrics

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/smallbiznis/subtrack/internal/config"
	cycledomain "github.com/smallbiznis/subtrack/internal/paymentcycle/domain"
	subscriptiondomain "github.com/smallbiznis/subtrack/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const pushInterval = 30 * time.Minute

var Module = fx.Module("cloud.metrics",
	fx.Provide(NewPusher),
	fx.Provide(func(cfg config.Config, pusher Pusher, logger *zap.Logger) *CloudMetrics {
		if !cfg.MetricsPush.Enabled {
			return nil
		}
		return New(nil, pusher, instanceName(cfg), cfg.AppVersion, logger)
	}),
	fx.Invoke(runPushWorker),
)

func runPushWorker(lc fx.Lifecycle, c *CloudMetrics, logger *zap.Logger, db *gorm.DB) {
	if c == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting metrics push worker")
			go func() {
				ticker := time.NewTicker(pushInterval)
				defer ticker.Stop()

				refreshAndPush(ctx, c, db, logger)
				for {
					select {
					case <-ticker.C:
						refreshAndPush(ctx, c, db, logger)
					case <-ctx.Done():
						logger.Info("stopping metrics push worker")
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func refreshAndPush(ctx context.Context, c *CloudMetrics, db *gorm.DB, logger *zap.Logger) {
	updateSystemMetrics(c)
	updateFleetGauges(ctx, c, db)
	if err := c.Push(ctx); err != nil {
		logger.Error("metrics push failed", zap.Error(err))
	}
}

func updateSystemMetrics(c *CloudMetrics) {
	if c == nil {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.SetMemoryUsage(m.Sys)
}

// updateFleetGauges refreshes the DB-sourced gauges. A failed query leaves
// the previous value in place.
func updateFleetGauges(ctx context.Context, c *CloudMetrics, db *gorm.DB) {
	if c == nil || db == nil {
		return
	}

	var active int64
	if err := db.WithContext(ctx).Table("subscriptions").
		Where("status = ?", subscriptiondomain.SubscriptionStatusActive).
		Count(&active).Error; err == nil {
		c.SetActiveSubscriptions(active)
	}

	type statusCount struct {
		CycleStatus string
		Total       int64
	}
	var counts []statusCount
	if err := db.WithContext(ctx).Table("payment_cycles").
		Select("cycle_status, COUNT(*) AS total").
		Group("cycle_status").
		Scan(&counts).Error; err == nil {
		c.ResetCycleStatusCounts()
		for _, row := range counts {
			c.SetCycleStatusCount(row.CycleStatus, row.Total)
		}
	}

	var overdue int64
	if err := db.WithContext(ctx).Table("payment_cycles").
		Where("cycle_status = ?", cycledomain.CycleStatusPaymentRecorded).
		Where("invoice_file_id IS NULL").
		Where("invoice_deadline < ?", time.Now().UTC()).
		Count(&overdue).Error; err == nil {
		c.SetOverdueCycles(overdue)
	}
}

func instanceName(cfg config.Config) string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return cfg.AppName
}
