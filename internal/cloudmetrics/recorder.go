package cloudmetrics

import (
	"strings"
	"sync"
)

// Recorder counts domain events into the push registry. Domain code calls
// the package-level functions; with no push pipeline configured they fall
// through to a no-op.
type Recorder interface {
	RecordCycleEvent(event string)
	RecordNotificationSent(audience string)
}

type recorder struct {
	metrics *CloudMetrics
}

type noopRecorder struct{}

func (noopRecorder) RecordCycleEvent(string)       {}
func (noopRecorder) RecordNotificationSent(string) {}

var (
	activeRecorder Recorder = noopRecorder{}
	recorderMu     sync.RWMutex
)

func setRecorder(rec Recorder) {
	if rec == nil {
		return
	}
	recorderMu.Lock()
	activeRecorder = rec
	recorderMu.Unlock()
}

// RecordCycleEvent counts one payment-cycle lifecycle mutation.
func RecordCycleEvent(event string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordCycleEvent(event)
}

// RecordNotificationSent counts one notification write for an audience.
func RecordNotificationSent(audience string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordNotificationSent(audience)
}

func (r *recorder) RecordCycleEvent(event string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.recordCycleEvent(event)
}

func (r *recorder) RecordNotificationSent(audience string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.recordNotification(audience)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
