package cloudmetrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// CloudMetrics aggregates fleet-level operational series on a private
// registry and ships them through the configured Pusher. Nothing here is
// served on /metrics; the push path exists for deployments that cannot
// be scraped.
type CloudMetrics struct {
	registry *prometheus.Registry
	pusher   Pusher
	log      *zap.Logger

	instanceInfo        *prometheus.GaugeVec
	memoryBytes         prometheus.Gauge
	activeSubscriptions prometheus.Gauge
	cyclesByStatus      *prometheus.GaugeVec
	overdueCycles       prometheus.Gauge
	cycleEvents         *prometheus.CounterVec
	notificationsSent   *prometheus.CounterVec
}

// New builds the metric set on registry (a fresh private registry when nil)
// and installs the package recorder so domain code can count events without
// carrying a *CloudMetrics.
func New(registry *prometheus.Registry, pusher Pusher, instance, version string, log *zap.Logger) *CloudMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}

	c := &CloudMetrics{
		registry: registry,
		pusher:   pusher,
		log:      log,
		instanceInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "subtrack_instance_info",
			Help: "Static instance descriptor, always 1.",
		}, []string{"instance", "version"}),
		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "subtrack_memory_sys_bytes",
			Help: "Bytes of memory obtained from the OS.",
		}),
		activeSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "subtrack_active_subscriptions",
			Help: "Subscriptions currently in ACTIVE status.",
		}),
		cyclesByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "subtrack_payment_cycles",
			Help: "Payment cycles by lifecycle status.",
		}, []string{"status"}),
		overdueCycles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "subtrack_overdue_payment_cycles",
			Help: "Cycles past their invoice deadline with no invoice on file.",
		}),
		cycleEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subtrack_cycle_events_total",
			Help: "Lifecycle mutations applied to payment cycles.",
		}, []string{"event"}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subtrack_notifications_sent_total",
			Help: "In-app notifications written, by audience.",
		}, []string{"audience"}),
	}

	registry.MustRegister(
		c.instanceInfo,
		c.memoryBytes,
		c.activeSubscriptions,
		c.cyclesByStatus,
		c.overdueCycles,
		c.cycleEvents,
		c.notificationsSent,
	)
	c.instanceInfo.WithLabelValues(normalizeLabel(instance), normalizeLabel(version)).Set(1)
	setRecorder(&recorder{metrics: c})
	return c
}

// SetMemoryUsage records bytes of memory obtained from the OS.
func (c *CloudMetrics) SetMemoryUsage(bytes uint64) {
	if c == nil {
		return
	}
	c.memoryBytes.Set(float64(bytes))
}

// SetActiveSubscriptions records the current ACTIVE subscription count.
func (c *CloudMetrics) SetActiveSubscriptions(count int64) {
	if c == nil {
		return
	}
	c.activeSubscriptions.Set(float64(count))
}

// ResetCycleStatusCounts clears the per-status gauge so statuses that drained
// to zero do not keep their last value.
func (c *CloudMetrics) ResetCycleStatusCounts() {
	if c == nil {
		return
	}
	c.cyclesByStatus.Reset()
}

// SetCycleStatusCount records the cycle count for one lifecycle status.
func (c *CloudMetrics) SetCycleStatusCount(status string, count int64) {
	if c == nil {
		return
	}
	c.cyclesByStatus.WithLabelValues(normalizeLabel(status)).Set(float64(count))
}

// SetOverdueCycles records how many cycles are past deadline without an invoice.
func (c *CloudMetrics) SetOverdueCycles(count int64) {
	if c == nil {
		return
	}
	c.overdueCycles.Set(float64(count))
}

// Push ships the current registry contents through the configured pusher.
func (c *CloudMetrics) Push(ctx context.Context) error {
	if c == nil || c.pusher == nil {
		return nil
	}
	return c.pusher.Push(ctx, c.registry)
}

func (c *CloudMetrics) recordCycleEvent(event string) {
	if c == nil {
		return
	}
	c.cycleEvents.WithLabelValues(normalizeLabel(event)).Inc()
}

func (c *CloudMetrics) recordNotification(audience string) {
	if c == nil {
		return
	}
	c.notificationsSent.WithLabelValues(normalizeLabel(audience)).Inc()
}
