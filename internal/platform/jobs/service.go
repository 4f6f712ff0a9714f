// Package jobs runs the periodic sweeps: auto-approval of elapsed requests and
// reminders for stale pending ones. Sweeps funnel through a single worker so
// two tickers never run the same sweep concurrently.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/vivektakcode/leave-tracker/internal/domain/leave"
	"github.com/vivektakcode/leave-tracker/internal/platform/config"
	"github.com/vivektakcode/leave-tracker/internal/platform/metrics"
)

const (
	JobAutoApproval = "auto_approval"
	JobReminders    = "reminders"
)

type Service struct {
	Leave   *leave.Service
	Metrics *metrics.Collector
	Cfg     config.Config
	queue   chan job
}

type job struct {
	Type string
	Run  func(context.Context) (leave.SweepSummary, error)
}

func New(leaveSvc *leave.Service, collector *metrics.Collector, cfg config.Config) *Service {
	return &Service{
		Leave:   leaveSvc,
		Metrics: collector,
		Cfg:     cfg,
		queue:   make(chan job, 16),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.AutoApprovalInterval > 0 {
		go s.schedule(ctx, JobAutoApproval, s.Cfg.AutoApprovalInterval)
	}
	if s.Cfg.ReminderInterval > 0 {
		go s.schedule(ctx, JobReminders, s.Cfg.ReminderInterval)
	}
}

// RunNow executes a sweep synchronously, bypassing the queue. Admin endpoints
// use it so the caller sees the summary.
func (s *Service) RunNow(ctx context.Context, jobType string) (leave.SweepSummary, error) {
	return s.runJob(ctx, job{Type: jobType, Run: s.sweep(jobType)})
}

func (s *Service) enqueue(jobType string) {
	select {
	case s.queue <- job{Type: jobType, Run: s.sweep(jobType)}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) sweep(jobType string) func(context.Context) (leave.SweepSummary, error) {
	switch jobType {
	case JobReminders:
		return func(ctx context.Context) (leave.SweepSummary, error) {
			return s.Leave.RunReminderSweep(ctx, time.Now())
		}
	default:
		return func(ctx context.Context) (leave.SweepSummary, error) {
			return s.Leave.RunAutoApprovalSweep(ctx, time.Now())
		}
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (leave.SweepSummary, error) {
	started := time.Now()
	summary, err := j.Run(ctx)
	if err != nil {
		return summary, err
	}

	switch j.Type {
	case JobAutoApproval:
		s.Metrics.RecordAutoApprovals(summary.Applied)
	case JobReminders:
		s.Metrics.RecordRemindersSent(summary.Enqueued)
	}

	slog.Info("job run completed",
		"jobType", j.Type,
		"scanned", summary.Scanned,
		"applied", summary.Applied,
		"enqueued", summary.Enqueued,
		"skipped", summary.Skipped,
		"durationMs", time.Since(started).Milliseconds())
	return summary, nil
}

func (s *Service) schedule(ctx context.Context, jobType string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueue(jobType)
		}
	}
}
