package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vivektakcode/leave-tracker/internal/domain/auth"
	"github.com/vivektakcode/leave-tracker/internal/domain/balance"
	"github.com/vivektakcode/leave-tracker/internal/domain/calendar"
	"github.com/vivektakcode/leave-tracker/internal/domain/core"
	"github.com/vivektakcode/leave-tracker/internal/domain/notify"
)

const (
	dayFormat = "2006-01-02"

	// Pending requests older than this get a reminder, at most once per
	// window.
	reminderAge = 3 * 24 * time.Hour

	autoApproveComment = "Auto-approved: leave period already elapsed"
)

type Service struct {
	Requests   Store
	Workers    WorkerDirectory
	Balances   balance.Store
	Calendar   *calendar.Service
	Dispatcher *notify.Dispatcher

	mu                sync.Mutex
	remindersInFlight map[string]struct{}
}

func NewService(requests Store, workers WorkerDirectory, balances balance.Store, cal *calendar.Service, dispatcher *notify.Dispatcher) *Service {
	return &Service{
		Requests:          requests,
		Workers:           workers,
		Balances:          balances,
		Calendar:          cal,
		Dispatcher:        dispatcher,
		remindersInFlight: make(map[string]struct{}),
	}
}

// CreateRequest validates and persists a new pending request. Every rule is
// evaluated; a failure returns the complete list of violations. The
// request-created notification is fire-and-forget: its outcome never affects
// the caller.
func (s *Service) CreateRequest(ctx context.Context, input CreateRequestInput) (string, error) {
	worker, err := s.Workers.GetWorker(ctx, input.WorkerID)
	if err != nil {
		return "", err
	}

	var issues []Issue

	if input.StartDate.IsZero() {
		issues = append(issues, Issue{Field: "startDate", Code: CodeRequired, Reason: "start date is required"})
	}
	if input.EndDate.IsZero() {
		issues = append(issues, Issue{Field: "endDate", Code: CodeRequired, Reason: "end date is required"})
	}
	if strings.TrimSpace(input.Justification) == "" {
		issues = append(issues, Issue{Field: "justification", Code: CodeRequired, Reason: "justification is required"})
	}
	if !balance.ValidCategory(input.Category) {
		issues = append(issues, Issue{Field: "category", Code: CodeUnknownCategory, Reason: "category must be casual, sick or privilege"})
	}

	start, end := Day(input.StartDate), Day(input.EndDate)
	datesOK := !input.StartDate.IsZero() && !input.EndDate.IsZero()
	if datesOK && end.Before(start) {
		issues = append(issues, Issue{Field: "endDate", Code: CodeDateOrder, Reason: "end date must be on or after start date"})
		datesOK = false
	}

	days := halfDay
	if datesOK {
		for _, endpoint := range []struct {
			field string
			date  time.Time
		}{{"startDate", start}, {"endDate", end}} {
			business, err := s.Calendar.IsBusinessDay(ctx, endpoint.date, worker.Jurisdiction)
			if err != nil {
				return "", fmt.Errorf("calendar lookup: %w", err)
			}
			if !business {
				issues = append(issues, Issue{Field: endpoint.field, Code: CodeNonBusinessDay, Reason: "date falls on a weekend or holiday"})
			}
		}

		sameDay := start.Equal(end)
		if input.HalfDay && !sameDay {
			issues = append(issues, Issue{Field: "halfDay", Code: CodeHalfDayRange, Reason: "a half-day request must start and end on the same date"})
		}
		workingDays := 0
		if !sameDay {
			workingDays, err = s.Calendar.WorkingDaysBetween(ctx, worker.Jurisdiction, start, end)
			if err != nil {
				return "", fmt.Errorf("calendar lookup: %w", err)
			}
		}
		days = ComputeDays(workingDays, sameDay, input.HalfDay)

		if balance.ValidCategory(input.Category) {
			record, err := s.Balances.Get(ctx, worker.ID)
			if err != nil {
				return "", fmt.Errorf("balance lookup: %w", err)
			}
			if days.GreaterThan(record.For(input.Category)) {
				issues = append(issues, Issue{Field: "category", Code: CodeInsufficientBalance,
					Reason: fmt.Sprintf("requested %s days but only %s remain", days, record.For(input.Category))})
			}
		}

		if NeedsDocument(input.Category, days) && strings.TrimSpace(input.DocumentRef) == "" {
			issues = append(issues, Issue{Field: "documentRef", Code: CodeDocumentRequired, Reason: "sick leave over 2 days needs a supporting document"})
		}
	}

	var approver core.Worker
	if !worker.Managed() {
		issues = append(issues, Issue{Field: "workerId", Code: CodeNoApprover, Reason: "worker has no assigned approver"})
	} else {
		approver, err = s.Workers.GetWorker(ctx, *worker.ApproverID)
		if errors.Is(err, core.ErrNotFound) {
			issues = append(issues, Issue{Field: "workerId", Code: CodeNoApprover, Reason: "worker has no assigned approver"})
		} else if err != nil {
			return "", err
		}
	}

	if datesOK {
		existing, err := s.Requests.ListActiveForWorker(ctx, worker.ID)
		if err != nil {
			return "", fmt.Errorf("overlap check: %w", err)
		}
		duplicate, overlap := false, false
		for _, ex := range existing {
			if !Overlaps(Day(ex.StartDate), Day(ex.EndDate), start, end) {
				continue
			}
			if Day(ex.StartDate).Equal(start) && Day(ex.EndDate).Equal(end) && ex.Category == input.Category {
				duplicate = true
			} else {
				overlap = true
			}
		}
		// An exact duplicate is also an overlap; report it once, by the more
		// specific message.
		if duplicate {
			issues = append(issues, Issue{Field: "startDate", Code: CodeDuplicateRequest, Reason: "an identical request already exists"})
		} else if overlap {
			issues = append(issues, Issue{Field: "startDate", Code: CodeOverlappingRequest, Reason: "dates overlap an existing pending or approved request"})
		}
	}

	if len(issues) > 0 {
		return "", &ValidationError{Issues: issues}
	}

	req := Request{
		ID:            uuid.NewString(),
		WorkerID:      worker.ID,
		Category:      input.Category,
		StartDate:     start,
		EndDate:       end,
		HalfDay:       input.HalfDay,
		Justification: strings.TrimSpace(input.Justification),
		DocumentRef:   strings.TrimSpace(input.DocumentRef),
		Days:          days,
		Status:        StatusPending,
		ApproverID:    approver.ID,
		ApproverName:  approver.Name,
		CreatedAt:     time.Now(),
	}
	if err := s.Requests.CreateRequest(ctx, req); err != nil {
		return "", fmt.Errorf("persist request: %w", err)
	}

	s.Dispatcher.Enqueue(notify.RequestCreated{
		RequestID:     req.ID,
		WorkerName:    worker.Name,
		ApproverEmail: approver.Email,
		Category:      string(req.Category),
		StartDate:     start.Format(dayFormat),
		EndDate:       end.Format(dayFormat),
		Days:          days.String(),
	}, 0)

	return req.ID, nil
}

// ProcessRequest applies an approver's decision. The engine re-checks the
// management relationship itself; trusting the transport layer here would
// turn an authorization bug into a balance bug.
func (s *Service) ProcessRequest(ctx context.Context, requestID, approverID string, decision Decision, comments string) error {
	if decision != DecisionApproved && decision != DecisionRejected {
		return ErrInvalidDecision
	}

	req, err := s.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status != StatusPending {
		return ErrNotPending
	}

	worker, err := s.Workers.GetWorker(ctx, req.WorkerID)
	if err != nil {
		return err
	}
	if !worker.Managed() || *worker.ApproverID != approverID {
		return ErrForbidden
	}

	var commentsPtr *string
	if trimmed := strings.TrimSpace(comments); trimmed != "" {
		commentsPtr = &trimmed
	}
	now := time.Now()

	if decision == DecisionRejected {
		return s.Requests.MarkProcessed(ctx, req.ID, StatusRejected, approverID, commentsPtr, now)
	}

	// Reserve before stamping: the ledger is the arbiter when approvals race
	// a shrinking balance.
	if err := s.Balances.Reserve(ctx, worker.ID, req.Category, req.Days); err != nil {
		return err
	}
	if err := s.Requests.MarkProcessed(ctx, req.ID, StatusApproved, approverID, commentsPtr, now); err != nil {
		// Lost the pending race after reserving; give the days back.
		if restoreErr := s.Balances.Restore(ctx, worker.ID, req.Category, req.Days); restoreErr != nil {
			slog.Error("failed to restore reservation after lost approval race",
				"requestId", req.ID, "workerId", worker.ID, "err", restoreErr)
		}
		return err
	}
	return nil
}

// CancelRequest deletes a request that is still pending. Nothing was ever
// reserved, so the ledger is untouched.
func (s *Service) CancelRequest(ctx context.Context, requestID string) error {
	req, err := s.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status != StatusPending {
		return ErrNotPending
	}
	return s.Requests.DeletePending(ctx, requestID)
}

type SweepSummary struct {
	Scanned  int `json:"scanned"`
	Applied  int `json:"applied"`
	Enqueued int `json:"enqueued"`
	Skipped  int `json:"skipped"`
}

// RunAutoApprovalSweep approves pending requests whose leave already lies in
// the past, except sick leave. Each approval goes through the same
// reservation and stamping as a manual one, attributed to the requester.
func (s *Service) RunAutoApprovalSweep(ctx context.Context, now time.Time) (SweepSummary, error) {
	var summary SweepSummary

	pending, err := s.Requests.ListPending(ctx)
	if err != nil {
		return summary, err
	}

	comment := autoApproveComment
	for _, req := range pending {
		summary.Scanned++
		if !ShouldAutoApprove(req.StartDate, req.Category, now) {
			continue
		}

		if err := s.Balances.Reserve(ctx, req.WorkerID, req.Category, req.Days); err != nil {
			if errors.Is(err, balance.ErrInsufficientBalance) {
				slog.Warn("auto-approval skipped, insufficient balance", "requestId", req.ID, "workerId", req.WorkerID)
				summary.Skipped++
				continue
			}
			return summary, err
		}
		if err := s.Requests.MarkProcessed(ctx, req.ID, StatusApproved, req.WorkerID, &comment, now); err != nil {
			if restoreErr := s.Balances.Restore(ctx, req.WorkerID, req.Category, req.Days); restoreErr != nil {
				slog.Error("failed to restore reservation after auto-approval race",
					"requestId", req.ID, "err", restoreErr)
			}
			if errors.Is(err, ErrNotPending) || errors.Is(err, ErrNotFound) {
				summary.Skipped++
				continue
			}
			return summary, err
		}
		summary.Applied++
	}
	return summary, nil
}

// RunReminderSweep nudges approvers about requests pending for more than
// three days. Bookkeeping is only stamped after the notifier confirms
// delivery, so a failed send stays eligible for the next sweep; an in-flight
// guard keeps back-to-back sweeps from double-sending meanwhile.
func (s *Service) RunReminderSweep(ctx context.Context, now time.Time) (SweepSummary, error) {
	var summary SweepSummary

	eligible, err := s.Requests.ListReminderEligible(ctx, now.Add(-reminderAge))
	if err != nil {
		return summary, err
	}

	for _, req := range eligible {
		summary.Scanned++

		s.mu.Lock()
		if _, busy := s.remindersInFlight[req.ID]; busy {
			s.mu.Unlock()
			summary.Skipped++
			continue
		}
		s.remindersInFlight[req.ID] = struct{}{}
		s.mu.Unlock()

		approver, err := s.Workers.GetWorker(ctx, req.ApproverID)
		if err != nil {
			s.clearReminderGuard(req.ID)
			if errors.Is(err, core.ErrNotFound) {
				slog.Warn("reminder skipped, approver missing", "requestId", req.ID, "approverId", req.ApproverID)
				summary.Skipped++
				continue
			}
			return summary, err
		}
		worker, err := s.Workers.GetWorker(ctx, req.WorkerID)
		if err != nil {
			s.clearReminderGuard(req.ID)
			return summary, err
		}

		requestID := req.ID
		s.Dispatcher.EnqueueWithDone(notify.Reminder{
			RequestID:     requestID,
			WorkerName:    worker.Name,
			ApproverEmail: approver.Email,
			PendingSince:  req.CreatedAt,
		}, 0, func(sendErr error) {
			defer s.clearReminderGuard(requestID)
			if sendErr != nil {
				slog.Warn("reminder delivery failed, will retry next sweep", "requestId", requestID, "err", sendErr)
				return
			}
			if err := s.Requests.RecordReminderSent(context.Background(), requestID, time.Now()); err != nil {
				slog.Warn("failed to record reminder bookkeeping", "requestId", requestID, "err", err)
			}
		})
		summary.Enqueued++
	}
	return summary, nil
}

func (s *Service) clearReminderGuard(requestID string) {
	s.mu.Lock()
	delete(s.remindersInFlight, requestID)
	s.mu.Unlock()
}

// ReassignApprover moves a worker to a new approver. The cached approver
// fields on every pending request follow in the same pass; a partial rewrite
// is a failure of the whole operation.
func (s *Service) ReassignApprover(ctx context.Context, workerID, approverID string) error {
	worker, err := s.Workers.GetWorker(ctx, workerID)
	if err != nil {
		return err
	}
	approver, err := s.Workers.GetWorker(ctx, approverID)
	if err != nil {
		return err
	}
	if approver.Role != auth.RoleApprover && approver.Role != auth.RoleAdmin {
		return ErrInvalidApprover
	}

	if err := s.Requests.ReassignApprover(ctx, worker.ID, approver.ID, approver.Name); err != nil {
		return fmt.Errorf("reassign approver: %w", err)
	}

	s.Dispatcher.Enqueue(notify.ApproverChanged{
		WorkerEmail:  worker.Email,
		ApproverName: approver.Name,
	}, 0)
	return nil
}
