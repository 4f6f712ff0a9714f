package metrics

import (
	"sync/atomic"
	"time"
)

// Collector counts HTTP traffic and the outcomes of the two background sweeps.
// All counters are monotonic since process start.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	totalDurationMs uint64

	autoApprovals uint64
	remindersSent uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) RecordAutoApprovals(n int) {
	if n > 0 {
		atomic.AddUint64(&c.autoApprovals, uint64(n))
	}
}

func (c *Collector) RecordRemindersSent(n int) {
	if n > 0 {
		atomic.AddUint64(&c.remindersSent, uint64(n))
	}
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":      total,
		"errorsTotal":        errs,
		"avgDurationMs":      avg,
		"totalDurationMs":    totalMs,
		"autoApprovalsTotal": atomic.LoadUint64(&c.autoApprovals),
		"remindersSentTotal": atomic.LoadUint64(&c.remindersSent),
	}
}
